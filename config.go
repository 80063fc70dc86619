package solo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/solo/internal/election"
)

// Config is the election configuration for an Agent.
//
// Every contender sharing a lease must agree on LeaseName and Namespace.
// LeaseDuration is only used when the agent creates the record; afterwards
// the duration stored in the record is authoritative.
type Config struct {
	// LeaseName identifies the lease record within its namespace.
	LeaseName string `yaml:"leaseName"`

	// Namespace scopes the lease record. Stores map it to their own
	// partitioning concept (Kubernetes namespace, key prefix, partition key).
	Namespace string `yaml:"namespace"`

	// Identity is this agent's holder identity. It must be unique among
	// contenders; see DefaultIdentity.
	Identity string `yaml:"identity"`

	// LeaseDuration is how long a lease stays valid without renewal.
	// Must be a whole number of seconds, at least one.
	//
	// Default: 15 seconds
	LeaseDuration time.Duration `yaml:"leaseDuration"`

	// PollInterval is the delay between ticks. It must be shorter than
	// LeaseDuration or the leader cannot renew in time.
	//
	// Default: 5 seconds
	PollInterval time.Duration `yaml:"pollInterval"`

	// OperationTimeout bounds each individual lease store call.
	// A zero value is replaced by the default.
	//
	// Default: 10 seconds
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ReleaseOnStop makes a leading agent clear the holder when it stops,
	// so a successor can take over without waiting for expiry.
	//
	// Default: false
	ReleaseOnStop bool `yaml:"releaseOnStop"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Identity is left empty; callers usually fill it from DefaultIdentity.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LeaseName:        "leader-election-lease",
		Namespace:        "default",
		LeaseDuration:    15 * time.Second,
		PollInterval:     5 * time.Second,
		OperationTimeout: 10 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.LeaseName == "" {
		cfg.LeaseName = defaults.LeaseName
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = defaults.LeaseDuration
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
}

// Validate checks configuration for consistency.
//
// Validation rules:
//   - LeaseName and Identity are required
//   - LeaseDuration >= 1s and a whole number of seconds (records store seconds)
//   - 0 < PollInterval < LeaseDuration (leader must renew before expiry)
//   - OperationTimeout >= 0
//
// Returns:
//   - error: Wrapped ErrInvalidConfig with an explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.LeaseName == "" {
		return fmt.Errorf("%w: LeaseName is required", ErrInvalidConfig)
	}

	if cfg.Identity == "" {
		return fmt.Errorf("%w: Identity is required", ErrInvalidConfig)
	}

	if cfg.LeaseDuration < time.Second || cfg.LeaseDuration%time.Second != 0 {
		return fmt.Errorf("%w: LeaseDuration (%v) must be a whole number of seconds >= 1s",
			ErrInvalidConfig, cfg.LeaseDuration)
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("%w: PollInterval must be > 0, got %v", ErrInvalidConfig, cfg.PollInterval)
	}

	if cfg.PollInterval >= cfg.LeaseDuration {
		return fmt.Errorf(
			"%w: PollInterval (%v) must be < LeaseDuration (%v) so the leader can renew",
			ErrInvalidConfig, cfg.PollInterval, cfg.LeaseDuration,
		)
	}

	if cfg.OperationTimeout < 0 {
		return fmt.Errorf("%w: OperationTimeout must be >= 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewAgent() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// One failed renewal should not cost the leader its lease.
	if cfg.PollInterval > cfg.LeaseDuration/3 {
		logger.Warn(
			"PollInterval leaves little room for a missed renewal",
			"pollInterval", cfg.PollInterval,
			"leaseDuration", cfg.LeaseDuration,
			"recommended", cfg.LeaseDuration/3,
		)
	}

	if cfg.OperationTimeout >= cfg.PollInterval {
		logger.Warn(
			"OperationTimeout is not shorter than PollInterval, a stuck store call delays ticks",
			"operationTimeout", cfg.OperationTimeout,
			"pollInterval", cfg.PollInterval,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Use DefaultConfig() for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := solo.TestConfig()
//	cfg.Identity = "pod-a"
//	agent, err := solo.NewAgent(cfg, memory.New())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.LeaseDuration = 3 * time.Second
	cfg.PollInterval = 500 * time.Millisecond
	cfg.OperationTimeout = 250 * time.Millisecond

	return cfg
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Durations are written as Go duration strings ("15s", "500ms").
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied (not validated)
//   - error: Read or parse error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	SetDefaults(&cfg)

	return cfg, nil
}

func (cfg *Config) electionConfig() election.Config {
	return election.Config{
		Name:             cfg.LeaseName,
		Scope:            cfg.Namespace,
		Identity:         cfg.Identity,
		LeaseDuration:    cfg.LeaseDuration,
		OperationTimeout: cfg.OperationTimeout,
	}
}
