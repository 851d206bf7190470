// Package config loads the reconciler configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"airdrop-reconciler/internal/stats"
)

// Config holds all application configuration.
type Config struct {
	Season string `yaml:"season"`

	Inputs struct {
		CandidatePath string `yaml:"candidate_path"`
		ClusterGlob   string `yaml:"cluster_glob"`
		ClaimedPath   string `yaml:"claimed_path"`
		StatsPath     string `yaml:"stats_path"`
		AddressFile   string `yaml:"address_file"`
	} `yaml:"inputs"`

	Output struct {
		Path           string `yaml:"path"`
		ExclusionsPath string `yaml:"exclusions_path"`
	} `yaml:"output"`

	StatsAPI struct {
		Endpoint     string        `yaml:"endpoint"`
		Workers      int           `yaml:"workers"`
		RequestDelay time.Duration `yaml:"request_delay"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxAddresses int           `yaml:"max_addresses"`
	} `yaml:"stats_api"`

	DuplicatePolicy string `yaml:"duplicate_policy"`

	Database struct {
		PostgresDSN      string `yaml:"postgres_dsn"`
		PostgresMaxConns int32  `yaml:"postgres_max_conns"`
		ClickHouseDSN    string `yaml:"clickhouse_dsn"`
	} `yaml:"database"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Default values.
const (
	DefaultSeason         = "S2"
	DefaultClaimedPath    = "rewards_claimed_addresses.csv"
	DefaultExclusionsPath = "unique_addresses.csv"
	DefaultWorkers        = 10
	DefaultRequestDelay   = 100 * time.Millisecond
	DefaultTimeout        = 10 * time.Second
)

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := map[string]*string{
		"AIRDROP_SEASON":           &c.Season,
		"AIRDROP_CANDIDATE_PATH":   &c.Inputs.CandidatePath,
		"AIRDROP_CLUSTER_GLOB":     &c.Inputs.ClusterGlob,
		"AIRDROP_CLAIMED_PATH":     &c.Inputs.ClaimedPath,
		"AIRDROP_STATS_PATH":       &c.Inputs.StatsPath,
		"AIRDROP_ADDRESS_FILE":     &c.Inputs.AddressFile,
		"AIRDROP_OUTPUT_PATH":      &c.Output.Path,
		"AIRDROP_STATS_ENDPOINT":   &c.StatsAPI.Endpoint,
		"AIRDROP_DUPLICATE_POLICY": &c.DuplicatePolicy,
		"POSTGRES_DSN":             &c.Database.PostgresDSN,
		"CLICKHOUSE_DSN":           &c.Database.ClickHouseDSN,
		"METRICS_ADDR":             &c.MetricsAddr,
	}
	for key, dst := range setString {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("AIRDROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AIRDROP_WORKERS: %w", err)
		}
		c.StatsAPI.Workers = n
	}
	if v := os.Getenv("AIRDROP_MAX_ADDRESSES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AIRDROP_MAX_ADDRESSES: %w", err)
		}
		c.StatsAPI.MaxAddresses = n
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("POSTGRES_MAX_CONNS: %w", err)
		}
		c.Database.PostgresMaxConns = int32(n)
	}
	if v := os.Getenv("AIRDROP_REQUEST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AIRDROP_REQUEST_DELAY: %w", err)
		}
		c.StatsAPI.RequestDelay = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Season == "" {
		c.Season = DefaultSeason
	}
	if c.Inputs.ClaimedPath == "" {
		c.Inputs.ClaimedPath = DefaultClaimedPath
	}
	if c.Output.ExclusionsPath == "" {
		c.Output.ExclusionsPath = DefaultExclusionsPath
	}
	if c.StatsAPI.Workers == 0 {
		c.StatsAPI.Workers = DefaultWorkers
	}
	if c.StatsAPI.RequestDelay == 0 {
		c.StatsAPI.RequestDelay = DefaultRequestDelay
	}
	if c.StatsAPI.Timeout == 0 {
		c.StatsAPI.Timeout = DefaultTimeout
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = string(stats.LastWriteWins)
	}
}

// Validate checks the fields shared by every command.
func (c *Config) Validate() error {
	if c.Season == "" {
		return fmt.Errorf("season is required")
	}
	if _, err := stats.ParsePolicy(c.DuplicatePolicy); err != nil {
		return fmt.Errorf("duplicate_policy: %w", err)
	}
	if c.StatsAPI.Workers < 1 {
		return fmt.Errorf("stats_api.workers must be positive")
	}
	if c.StatsAPI.RequestDelay < 0 {
		return fmt.Errorf("stats_api.request_delay must not be negative")
	}
	if c.StatsAPI.MaxAddresses < 0 {
		return fmt.Errorf("stats_api.max_addresses must not be negative")
	}
	if c.Database.PostgresMaxConns < 0 {
		return fmt.Errorf("database.postgres_max_conns must not be negative")
	}
	return nil
}

// ValidateReconcile checks the fields the reconcile command needs.
func (c *Config) ValidateReconcile() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Inputs.CandidatePath == "" {
		return fmt.Errorf("inputs.candidate_path is required")
	}
	return nil
}

// ValidateFetch checks the fields the fetch-stats and calculate commands need.
func (c *Config) ValidateFetch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StatsAPI.Endpoint == "" {
		return fmt.Errorf("stats_api.endpoint is required")
	}
	if c.Inputs.AddressFile == "" {
		return fmt.Errorf("inputs.address_file is required")
	}
	return nil
}
