package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/solo"
	"github.com/arloliu/solo/internal/logging"
	"github.com/arloliu/solo/store"
)

// settings is everything the run command needs. The YAML layout keeps the
// election keys at the top level, next to the store, log and metrics sections.
type settings struct {
	Election       solo.Config  `yaml:",inline"`
	Store          store.Config `yaml:"store"`
	Log            logSettings  `yaml:"log"`
	MetricsAddress string       `yaml:"metricsAddress"`
}

type logSettings struct {
	// Format is "text", "json" or "klog".
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

const formatKlog = "klog"

func defaultSettings() settings {
	return settings{
		Election: solo.DefaultConfig(),
		Store:    store.DefaultConfig(),
		Log:      logSettings{Format: logging.FormatText, Level: "info"},
	}
}

// loadSettings returns the defaults overlaid with the YAML file at path, if any.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	solo.SetDefaults(&s.Election)

	return s, nil
}

// flagValues receives command line flags. Only flags the user actually set
// override the file configuration.
type flagValues struct {
	configPath string

	leaseName        string
	namespace        string
	identity         string
	leaseDuration    time.Duration
	pollInterval     time.Duration
	operationTimeout time.Duration
	releaseOnStop    bool

	storeType     string
	natsURL       string
	natsBucket    string
	kubeconfig    string
	boltPath      string
	etcdEndpoints string
	mongoURI      string
	azureAccount  string
	azureKey      string
	azureTable    string
	azureEmulator bool

	metricsAddress string
	logFormat      string
	logLevel       string
}

// apply copies every flag for which isSet reports true into s.
func (f *flagValues) apply(s *settings, isSet func(name string) bool) {
	strOverrides := []struct {
		name string
		dst  *string
		val  string
	}{
		{"lease-name", &s.Election.LeaseName, f.leaseName},
		{"namespace", &s.Election.Namespace, f.namespace},
		{"identity", &s.Election.Identity, f.identity},
		{"nats-url", &s.Store.NATS.URL, f.natsURL},
		{"nats-bucket", &s.Store.NATS.Bucket, f.natsBucket},
		{"kubeconfig", &s.Store.Kubernetes.Kubeconfig, f.kubeconfig},
		{"bolt-path", &s.Store.Bolt.Path, f.boltPath},
		{"mongo-uri", &s.Store.Mongo.URI, f.mongoURI},
		{"azure-account", &s.Store.AzureTable.AccountName, f.azureAccount},
		{"azure-key", &s.Store.AzureTable.AccountKey, f.azureKey},
		{"azure-table", &s.Store.AzureTable.Table, f.azureTable},
		{"metrics-address", &s.MetricsAddress, f.metricsAddress},
		{"log-format", &s.Log.Format, f.logFormat},
		{"log-level", &s.Log.Level, f.logLevel},
	}
	for _, o := range strOverrides {
		if isSet(o.name) {
			*o.dst = o.val
		}
	}

	durOverrides := []struct {
		name string
		dst  *time.Duration
		val  time.Duration
	}{
		{"lease-duration", &s.Election.LeaseDuration, f.leaseDuration},
		{"poll-interval", &s.Election.PollInterval, f.pollInterval},
		{"operation-timeout", &s.Election.OperationTimeout, f.operationTimeout},
	}
	for _, o := range durOverrides {
		if isSet(o.name) {
			*o.dst = o.val
		}
	}

	if isSet("release-on-stop") {
		s.Election.ReleaseOnStop = f.releaseOnStop
	}
	if isSet("azure-emulator") {
		s.Store.AzureTable.UseEmulator = f.azureEmulator
	}
	if isSet("store") {
		s.Store.Type = store.Type(f.storeType)
	}
	if isSet("etcd-endpoints") {
		s.Store.Etcd.Endpoints = splitList(f.etcdEndpoints)
	}
}

// finalize fills values that depend on the environment.
func (s *settings) finalize() {
	if s.Election.Identity == "" {
		s.Election.Identity = solo.DefaultIdentity()
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
