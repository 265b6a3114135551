package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Ingestion    IngestionConfig    `mapstructure:"ingestion"`
	Organization OrganizationConfig `mapstructure:"organization"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Oracle       OracleConfig       `mapstructure:"oracle"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type IngestionConfig struct {
	QueueSize      int    `mapstructure:"queue_size"`
	Workers        int    `mapstructure:"workers"`
	FlushThreshold int    `mapstructure:"flush_threshold"`
	MaxRecords     int    `mapstructure:"max_records"` // 0 processes everything
	Mode           string `mapstructure:"mode"`        // "batch" or "incremental"
	ArrayPolicy    string `mapstructure:"array_policy"` // "strict" or "lenient"
	Channel        string `mapstructure:"channel"`
}

type OrganizationConfig struct {
	Domain string `mapstructure:"domain"`
}

type ClassifierConfig struct {
	RulesFile string `mapstructure:"rules_file"` // optional YAML override of the rule tables
}

type OracleConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxCalls int           `mapstructure:"max_calls"`
	Workers  int           `mapstructure:"workers"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite", "postgres" or "memory"
	Path   string `mapstructure:"path"`   // sqlite database path
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("ingestion.queue_size", 1024)
	v.SetDefault("ingestion.workers", 4)
	v.SetDefault("ingestion.flush_threshold", 1000)
	v.SetDefault("ingestion.max_records", 0)
	v.SetDefault("ingestion.mode", "batch")
	v.SetDefault("ingestion.array_policy", "strict")
	v.SetDefault("ingestion.channel", "email")
	v.SetDefault("organization.domain", "acme.com")
	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.base_url", "https://api.openai.com/v1")
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("oracle.timeout", "10s")
	v.SetDefault("oracle.max_calls", 100)
	v.SetDefault("oracle.workers", 2)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data/orgmesh.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/orgmesh")
	}

	// Environment variables override
	v.SetEnvPrefix("ORGMESH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			QueueSize:      1024,
			Workers:        4,
			FlushThreshold: 1000,
			Mode:           "batch",
			ArrayPolicy:    "strict",
			Channel:        "email",
		},
		Organization: OrganizationConfig{Domain: "acme.com"},
		Oracle: OracleConfig{
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  10 * time.Second,
			MaxCalls: 100,
			Workers:  2,
		},
		Storage: StorageConfig{Driver: "sqlite", Path: "data/orgmesh.db"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Ingestion.Mode {
	case "batch", "incremental":
	default:
		return fmt.Errorf("invalid ingestion.mode %q (want batch or incremental)", c.Ingestion.Mode)
	}
	switch c.Ingestion.ArrayPolicy {
	case "strict", "lenient":
	default:
		return fmt.Errorf("invalid ingestion.array_policy %q (want strict or lenient)", c.Ingestion.ArrayPolicy)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage.driver %q (want sqlite, postgres or memory)", c.Storage.Driver)
	}
	if c.Ingestion.Workers < 1 {
		return fmt.Errorf("ingestion.workers must be at least 1")
	}
	if c.Ingestion.FlushThreshold < 1 {
		return fmt.Errorf("ingestion.flush_threshold must be at least 1")
	}
	return nil
}
