package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration file shape.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the database file path; the --db flag takes precedence.
	DBPath string `yaml:"db_path"`

	// CheckpointIntervalSeconds is how often the passive WAL checkpoint
	// runs, in seconds.
	CheckpointIntervalSeconds int `yaml:"checkpoint_interval_seconds"`
}

// CheckpointInterval returns the checkpoint period as a duration.
func (c Config) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSeconds) * time.Second
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ListenAddr:                ":8480",
		DBPath:                    "aktenregister.db",
		CheckpointIntervalSeconds: 300,
	}
}

// LoadConfig reads a YAML config file, filling omitted fields with
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.CheckpointIntervalSeconds <= 0 {
		return cfg, fmt.Errorf("config %s: checkpoint_interval_seconds must be positive", path)
	}
	return cfg, nil
}
