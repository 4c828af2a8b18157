package source

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Config is the static source configuration: which sources exist, where they
// live, and in which priority order they answer. File order is priority
// order. Site structure changes should land here, not in code, whenever a
// base URL move is enough.
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Disabled bool          `yaml:"disabled"`
}

// DefaultTimeout bounds a single fetch attempt when the config does not say
// otherwise
const DefaultTimeout = 30 * time.Second

// DefaultConfig returns the built-in source registry used when no config
// file is given
func DefaultConfig() *Config {
	return &Config{
		Sources: []SourceConfig{
			{Name: "recall_db", BaseURL: "https://www.nhtsa.gov"},
			{Name: "title_ledger", BaseURL: "https://www.vehiclehistory.gov"},
			{Name: "market_watch", BaseURL: "https://www.autotempest.com"},
			{Name: "vin_spec", BaseURL: "https://vpic.nhtsa.dot.gov"},
		},
	}
}

// LoadConfig reads a source configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read source config", goerr.V("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse source config", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return goerr.New("source config has no sources")
	}

	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Name == "" {
			return goerr.New("source config entry has no name")
		}
		if seen[s.Name] {
			return goerr.New("duplicate source name", goerr.V("name", s.Name))
		}
		seen[s.Name] = true
		if s.BaseURL == "" {
			return goerr.New("source config entry has no base_url", goerr.V("name", s.Name))
		}
	}
	return nil
}

// Lookup returns the configuration for a source by name
func (c *Config) Lookup(name string) (*SourceConfig, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// FetchTimeout returns the per-fetch timeout for a source entry
func (s *SourceConfig) FetchTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}
