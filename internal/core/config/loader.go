package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultPort               = 8080
	DefaultTickInterval       = time.Second
	DefaultMinIncrement       = 20
	DefaultMaxIncrement       = 79
	DefaultFindingProbability = 0.03
	DefaultPersistInterval    = 5 * time.Second
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Ticker.Interval == 0 {
		c.Ticker.Interval = DefaultTickInterval
	}
	if c.Ticker.MinIncrement == 0 && c.Ticker.MaxIncrement == 0 {
		c.Ticker.MinIncrement = DefaultMinIncrement
		c.Ticker.MaxIncrement = DefaultMaxIncrement
	}
	if c.Ticker.FindingProbability == nil {
		p := DefaultFindingProbability
		c.Ticker.FindingProbability = &p
	}
	if len(c.Networks) == 0 {
		for _, n := range domain.DefaultNetworks {
			c.Networks = append(c.Networks, string(n))
		}
	}
	if c.Persist.Interval == 0 {
		c.Persist.Interval = DefaultPersistInterval
	}
}

// Validate rejects settings the ticker and store cannot honour.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Ticker.Interval <= 0 {
		errs = append(errs, fmt.Errorf("ticker.interval must be positive, got %s", c.Ticker.Interval))
	}
	if c.Ticker.MinIncrement > c.Ticker.MaxIncrement {
		errs = append(errs, fmt.Errorf(
			"ticker.min_increment %d exceeds max_increment %d",
			c.Ticker.MinIncrement,
			c.Ticker.MaxIncrement,
		))
	}
	if p := c.Ticker.FindingProbability; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("ticker.finding_probability %v outside [0, 1]", *p))
	}
	if c.Persist.Interval < 0 {
		errs = append(errs, fmt.Errorf("persist.interval must not be negative, got %s", c.Persist.Interval))
	}
	return errors.Join(errs...)
}

// NetworkSet builds the set of networks jobs may be created on.
func (c *AppConfig) NetworkSet() *domain.NetworkSet {
	names := make([]domain.Network, 0, len(c.Networks))
	for _, n := range c.Networks {
		names = append(names, domain.Network(n))
	}
	return domain.NewNetworkSet(names...)
}
