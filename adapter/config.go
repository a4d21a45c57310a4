package adapter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML registry configuration. Mapping policy is
// adapter-supplied; the configuration only tunes which representations are
// served and how versions negotiate.
//
//	defaultStrategy: best-effort
//	representations:
//	  lmos:
//	    defaultVersion: "1.1.0"
//	  autogen:
//	    disabled: true
type Config struct {
	DefaultStrategy Strategy                        `yaml:"defaultStrategy"`
	Representations map[string]RepresentationConfig `yaml:"representations"`
}

type RepresentationConfig struct {
	DefaultVersion string `yaml:"defaultVersion"`
	Disabled       bool   `yaml:"disabled"`
}

// LoadConfig parses and validates YAML configuration bytes.
func LoadConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("adapter: invalid registry config: %w", err)
	}
	if c.DefaultStrategy != "" {
		if _, err := ParseStrategy(string(c.DefaultStrategy)); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// LoadConfigFile reads and parses a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adapter: read registry config: %w", err)
	}
	return LoadConfig(b)
}

// Apply writes the configuration onto a registry. Every configured
// representation must already be registered.
func (c *Config) Apply(r *Registry) error {
	for name, rc := range c.Representations {
		if rc.DefaultVersion != "" {
			if err := r.SetDefaultVersion(name, rc.DefaultVersion); err != nil {
				return err
			}
		}
		if err := r.SetDisabled(name, rc.Disabled); err != nil {
			return err
		}
	}
	return nil
}

// StrategyOrDefault resolves the effective negotiation strategy.
func (c *Config) StrategyOrDefault() Strategy {
	if c == nil || c.DefaultStrategy == "" {
		return StrategyBestEffort
	}
	return c.DefaultStrategy
}
