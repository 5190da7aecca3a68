package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Dataset DatasetConfig `yaml:"dataset"`
	Session SessionConfig `yaml:"session"`
	Stream  StreamConfig  `yaml:"stream"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	RequestsPerMinute    int    `yaml:"requests_per_minute"`
	RateBurst            int    `yaml:"rate_burst"`
	MaxConcurrentQueries int    `yaml:"max_concurrent_queries"`
}

// Addr returns the listen address in host:port form
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatasetConfig configures the CSV dataset loaded at startup
type DatasetConfig struct {
	CSVPath string `yaml:"csv_path"`
	Table   string `yaml:"table"`
}

// SessionConfig configures session lifetime
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// StreamConfig configures chunked result delivery
type StreamConfig struct {
	ChunkSize   int           `yaml:"chunk_size"`
	ChunkDelay  time.Duration `yaml:"chunk_delay"`
	MaxRowLimit int           `yaml:"max_row_limit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 8080,
			RequestsPerMinute:    120,
			RateBurst:            30,
			MaxConcurrentQueries: 4,
		},
		Dataset: DatasetConfig{
			CSVPath: "data/employees.csv",
			Table:   "employees",
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Stream: StreamConfig{
			ChunkSize:   10,
			ChunkDelay:  0,
			MaxRowLimit: 10000,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before anything is started
func (c *Config) Validate() error {
	if c.Stream.ChunkSize < 1 {
		return fmt.Errorf("invalid config: chunk_size must be positive, got %d", c.Stream.ChunkSize)
	}
	if c.Stream.ChunkDelay < 0 {
		return fmt.Errorf("invalid config: chunk_delay must not be negative")
	}
	if c.Stream.MaxRowLimit < 1 {
		return fmt.Errorf("invalid config: max_row_limit must be positive, got %d", c.Stream.MaxRowLimit)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConcurrentQueries < 1 {
		return fmt.Errorf("invalid config: max_concurrent_queries must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid config: session ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("invalid config: sweep_interval must be positive")
	}
	if c.Dataset.Table == "" {
		return fmt.Errorf("invalid config: dataset table is required")
	}
	return nil
}
