package config

import (
	"time"

	redisclient "github.com/vietddude/blockscan/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Ticker   TickerConfig       `yaml:"ticker"`
	Networks []string           `yaml:"networks"`
	Redis    redisclient.Config `yaml:"redis"`
	Persist  PersistConfig      `yaml:"persist"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TickerConfig controls the simulated scan driver.
type TickerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	MinIncrement       uint64        `yaml:"min_increment"`
	MaxIncrement       uint64        `yaml:"max_increment"`       // inclusive
	FindingProbability *float64      `yaml:"finding_probability"` // per severity per tick
}

// PersistConfig controls snapshot flushing.
type PersistConfig struct {
	Interval time.Duration `yaml:"interval"`
}
