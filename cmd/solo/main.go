// Command solo runs a leader election agent against a configurable lease store.
//
// Every replica runs "solo run" with the same lease name and namespace and a
// unique identity. Exactly one replica reports "is the leader" per poll
// interval; the others report "is a follower".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"k8s.io/klog/v2"
)

// version mgmt, set via -ldflags
var (
	Version   = "dev"
	Buildtime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		klog.Errorf("solo failed: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	flags := &flagValues{}

	app := cli.NewApp()
	app.Name = "solo"
	app.Usage = "leader election over a shared lease record"
	app.Version = Version
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "contends for the lease until interrupted",
			Flags: getRunFlags(flags),
			Action: func(c *cli.Context) error {
				s, err := loadSettings(flags.configPath)
				if err != nil {
					return err
				}
				flags.apply(&s, c.IsSet)
				s.finalize()

				ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				return run(ctx, s, os.Stderr)
			},
		},
		{
			Name:  "version",
			Usage: "prints version and build time of this binary",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "Version: %s\n", Version)
				fmt.Fprintf(c.App.Writer, "BuildTime: %s\n", Buildtime)

				return nil
			},
		},
	}

	return app
}

func getRunFlags(f *flagValues) []cli.Flag {
	defaults := defaultSettings()

	return []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "YAML configuration file; flags override its values",
			Destination: &f.configPath,
		},

		// election
		cli.StringFlag{
			Name:        "lease-name",
			Usage:       "name of the lease record",
			Value:       defaults.Election.LeaseName,
			Destination: &f.leaseName,
		},
		cli.StringFlag{
			Name:        "namespace",
			Usage:       "namespace (scope) of the lease record",
			Value:       defaults.Election.Namespace,
			EnvVar:      "POD_NAMESPACE",
			Destination: &f.namespace,
		},
		cli.StringFlag{
			Name:        "identity",
			Usage:       "holder identity of this replica (default: hostname with random suffix)",
			EnvVar:      "POD_NAME",
			Destination: &f.identity,
		},
		cli.DurationFlag{
			Name:        "lease-duration",
			Usage:       "lease validity without renewal, whole seconds",
			Value:       defaults.Election.LeaseDuration,
			Destination: &f.leaseDuration,
		},
		cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "delay between election ticks",
			Value:       defaults.Election.PollInterval,
			Destination: &f.pollInterval,
		},
		cli.DurationFlag{
			Name:        "operation-timeout",
			Usage:       "bound on each lease store call",
			Value:       defaults.Election.OperationTimeout,
			Destination: &f.operationTimeout,
		},
		cli.BoolFlag{
			Name:        "release-on-stop",
			Usage:       "clear the holder on shutdown so a successor takes over immediately",
			Destination: &f.releaseOnStop,
		},

		// store
		cli.StringFlag{
			Name:        "store",
			Usage:       "lease store: memory, nats, kubernetes, bolt, etcd, mongo, aztable",
			Value:       string(defaults.Store.Type),
			Destination: &f.storeType,
		},
		cli.StringFlag{
			Name:        "nats-url",
			Value:       defaults.Store.NATS.URL,
			EnvVar:      "NATS_URL",
			Destination: &f.natsURL,
		},
		cli.StringFlag{
			Name:        "nats-bucket",
			Usage:       "JetStream KV bucket (default: solo-leases)",
			Destination: &f.natsBucket,
		},
		cli.StringFlag{
			Name:        "kubeconfig",
			Usage:       "kubeconfig path; empty means in-cluster",
			EnvVar:      "KUBECONFIG",
			Destination: &f.kubeconfig,
		},
		cli.StringFlag{
			Name:        "bolt-path",
			Usage:       "bbolt database file",
			Destination: &f.boltPath,
		},
		cli.StringFlag{
			Name:        "etcd-endpoints",
			Usage:       "comma separated etcd endpoints",
			Destination: &f.etcdEndpoints,
		},
		cli.StringFlag{
			Name:        "mongo-uri",
			EnvVar:      "MONGO_URI",
			Destination: &f.mongoURI,
		},
		cli.StringFlag{
			Name:        "azure-account",
			EnvVar:      "AZURE_STORAGE_ACCOUNT",
			Destination: &f.azureAccount,
		},
		cli.StringFlag{
			Name:        "azure-key",
			EnvVar:      "AZURE_STORAGE_KEY",
			Destination: &f.azureKey,
		},
		cli.StringFlag{
			Name:        "azure-table",
			Destination: &f.azureTable,
		},
		cli.BoolFlag{
			Name:        "azure-emulator",
			Usage:       "use the local storage emulator",
			Destination: &f.azureEmulator,
		},

		// observability
		cli.StringFlag{
			Name:        "metrics-address",
			Usage:       "serve /metrics and /leader on this address (disabled if empty)",
			Destination: &f.metricsAddress,
		},
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "text, json or klog",
			Value:       defaults.Log.Format,
			Destination: &f.logFormat,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error (text and json formats)",
			Value:       defaults.Log.Level,
			Destination: &f.logLevel,
		},
	}
}
