package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Store    Store  `yaml:"store"`
	Upload   Upload `yaml:"upload"`
	LogLevel string `yaml:"log_level"`
}

// Store represents the target store configuration. Backend selects between
// the memory service ("memory") and an S3-compatible store ("s3").
type Store struct {
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Upload represents upload-specific configuration
type Upload struct {
	Input                string `yaml:"input"`
	MaxWorkers           int    `yaml:"max_workers"`
	BatchSize            int    `yaml:"batch_size"`
	MaxConcurrentBatches int    `yaml:"max_concurrent_batches"`
	RetryAttempts        int    `yaml:"retry_attempts"`
	RetryDelayMs         int    `yaml:"retry_delay_ms"`
	MaxRetryDelayMs      int    `yaml:"max_retry_delay_ms"`
	TimeoutPerItemMs     int    `yaml:"timeout_per_item_ms"`
	DedupEnabled         bool   `yaml:"dedup"`
	ProgressIntervalMs   int    `yaml:"progress_interval_ms"`
	RetryUnknown         bool   `yaml:"retry_unknown"`
	DrainOnCancel        bool   `yaml:"drain_on_cancel"`
	DryRun               bool   `yaml:"dry_run"`
	Journal              string `yaml:"journal"`
	RetryFailed          string `yaml:"retry_failed"`
	Report               string `yaml:"report"`
	MetricsAddr          string `yaml:"metrics_addr"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Store: Store{
			Backend: "memory",
			Secure:  true,
		},
		Upload: Upload{
			MaxWorkers:           5,
			BatchSize:            100,
			MaxConcurrentBatches: 4,
			RetryAttempts:        3,
			RetryDelayMs:         500,
			MaxRetryDelayMs:      30000,
			TimeoutPerItemMs:     30000,
			DedupEnabled:         true,
			ProgressIntervalMs:   30000,
			DrainOnCancel:        true,
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("store") {
		cfg.Store.Backend, _ = flags.GetString("store")
	}
	if flags.Changed("endpoint") {
		cfg.Store.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("api-key") {
		cfg.Store.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("access-key") {
		cfg.Store.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Store.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("secure") {
		cfg.Store.Secure, _ = flags.GetBool("secure")
	}
	if flags.Changed("bucket") {
		cfg.Store.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("prefix") {
		cfg.Store.Prefix, _ = flags.GetString("prefix")
	}

	if flags.Changed("input") {
		cfg.Upload.Input, _ = flags.GetString("input")
	}
	if flags.Changed("max-workers") {
		cfg.Upload.MaxWorkers, _ = flags.GetInt("max-workers")
	}
	if flags.Changed("batch-size") {
		cfg.Upload.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("max-concurrent-batches") {
		cfg.Upload.MaxConcurrentBatches, _ = flags.GetInt("max-concurrent-batches")
	}
	if flags.Changed("retry-attempts") {
		cfg.Upload.RetryAttempts, _ = flags.GetInt("retry-attempts")
	}
	if flags.Changed("retry-delay-ms") {
		cfg.Upload.RetryDelayMs, _ = flags.GetInt("retry-delay-ms")
	}
	if flags.Changed("max-retry-delay-ms") {
		cfg.Upload.MaxRetryDelayMs, _ = flags.GetInt("max-retry-delay-ms")
	}
	if flags.Changed("timeout-per-item-ms") {
		cfg.Upload.TimeoutPerItemMs, _ = flags.GetInt("timeout-per-item-ms")
	}
	if flags.Changed("dedup") {
		cfg.Upload.DedupEnabled, _ = flags.GetBool("dedup")
	}
	if flags.Changed("progress-interval-ms") {
		cfg.Upload.ProgressIntervalMs, _ = flags.GetInt("progress-interval-ms")
	}
	if flags.Changed("retry-unknown") {
		cfg.Upload.RetryUnknown, _ = flags.GetBool("retry-unknown")
	}
	if flags.Changed("drain-on-cancel") {
		cfg.Upload.DrainOnCancel, _ = flags.GetBool("drain-on-cancel")
	}
	if flags.Changed("dry-run") {
		cfg.Upload.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("journal") {
		cfg.Upload.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("retry-failed") {
		cfg.Upload.RetryFailed, _ = flags.GetString("retry-failed")
	}
	if flags.Changed("report") {
		cfg.Upload.Report, _ = flags.GetString("report")
	}
	if flags.Changed("metrics-addr") {
		cfg.Upload.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store endpoint is required")
		}
	case "s3":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store endpoint is required")
		}
		if c.Store.AccessKey == "" {
			return fmt.Errorf("access key is required for s3 backend")
		}
		if c.Store.SecretKey == "" {
			return fmt.Errorf("secret key is required for s3 backend")
		}
		if c.Store.Bucket == "" {
			return fmt.Errorf("bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (expected memory or s3)", c.Store.Backend)
	}

	if c.Upload.RetryFailed != "" {
		if c.Upload.Journal == "" {
			return fmt.Errorf("retry-failed requires a journal file")
		}
	} else if c.Upload.Input == "" {
		return fmt.Errorf("input file is required")
	}

	if c.Upload.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive")
	}
	if c.Upload.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Upload.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("max concurrent batches must be positive")
	}
	if c.Upload.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}

	return nil
}
