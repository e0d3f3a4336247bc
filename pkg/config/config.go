// Package config loads the burrow daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the burrow daemon configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	RPC       RPCConfig       `yaml:"rpc"`
	Health    HealthConfig    `yaml:"health"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Brokering BrokeringConfig `yaml:"brokering"`
	Storage   StorageConfig   `yaml:"storage"`
	NATS      NATSConfig      `yaml:"nats"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RPCConfig is where brokers connect
type RPCConfig struct {
	Addr      string `yaml:"addr"`
	Path      string `yaml:"path"`
	ReadLimit int64  `yaml:"read_limit"`
}

type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// GRPCConfig is the gRPC health service address; empty disables it
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// BrokeringConfig mirrors broker.Config
type BrokeringConfig struct {
	StartTimeout    time.Duration `yaml:"start_timeout"`
	ResultTimeout   time.Duration `yaml:"result_timeout"`
	ExpectedBrokers int           `yaml:"expected_brokers"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// NATSConfig enables log forwarding when URL is set
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		RPC: RPCConfig{
			Addr:      "0.0.0.0:8090",
			Path:      "/brokers",
			ReadLimit: 8 << 20,
		},
		Health: HealthConfig{
			Addr: "0.0.0.0:9090",
		},
		Brokering: BrokeringConfig{
			StartTimeout:  3 * time.Minute,
			ResultTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir: "/var/lib/burrow",
		},
		NATS: NATSConfig{
			SubjectPrefix: "burrow.runtime",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if c.RPC.Addr == "" {
		return fmt.Errorf("rpc.addr is required")
	}
	if c.RPC.Path == "" || c.RPC.Path[0] != '/' {
		return fmt.Errorf("rpc.path must start with '/': %q", c.RPC.Path)
	}
	if c.RPC.ReadLimit < 0 {
		return fmt.Errorf("rpc.read_limit must not be negative")
	}
	if c.Health.Addr == "" {
		return fmt.Errorf("health.addr is required")
	}
	if c.Brokering.StartTimeout < 0 {
		return fmt.Errorf("brokering.start_timeout must not be negative")
	}
	if c.Brokering.ResultTimeout < 0 {
		return fmt.Errorf("brokering.result_timeout must not be negative")
	}
	if c.Brokering.ExpectedBrokers < 0 {
		return fmt.Errorf("brokering.expected_brokers must not be negative")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	return nil
}
