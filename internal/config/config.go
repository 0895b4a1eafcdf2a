package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen  string  `yaml:"listen"`
	Admin   Admin   `yaml:"admin"`
	Logger  Logger  `yaml:"logger"`
	Storage Storage `yaml:"storage"`
	Redis   Redis   `yaml:"redis"`
	Queue   Queue   `yaml:"queue"`
	CORS    CORS    `yaml:"cors"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
}

// Redis configures the delayed-job queue backend. When Enabled is false the
// process falls back to the in-memory queue, which is fine for a single node
// but loses pending jobs on restart (the boot reconciliation pass re-derives
// them from contest rows either way).
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Queue struct {
	Workers        int `yaml:"workers"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffMs      int `yaml:"backoff_ms"`
}

type Admin struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.PollIntervalMs <= 0 {
		c.Queue.PollIntervalMs = 500
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = 5
	}
	if c.Queue.BackoffMs <= 0 {
		c.Queue.BackoffMs = 2000
	}
}
