// Package config loads the optional YAML policy file. Every value is an
// override on top of the engine defaults, so an empty or missing file
// yields a fully working configuration.
package config

import (
	"fmt"
	"os"

	"github.com/relaymesh/promptgate/internal/abuse"
	"github.com/relaymesh/promptgate/internal/promptlen"
	"github.com/relaymesh/promptgate/internal/similarity"
	"gopkg.in/yaml.v3"
)

// Config holds promptgate configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Abuse      AbuseConfig      `yaml:"abuse"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Length     LengthConfig     `yaml:"length"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
}

// AbuseConfig overrides the abuse detector thresholds. Zero values keep
// the defaults; Semantic is a pointer so "false" is distinguishable from
// unset.
type AbuseConfig struct {
	MLThreshold    float64 `yaml:"ml_threshold"`
	BlockThreshold float64 `yaml:"block_threshold"`
	Semantic       *bool   `yaml:"semantic"`
}

type SimilarityConfig struct {
	DefaultThreshold float64 `yaml:"default_threshold"`
	JaccardThreshold float64 `yaml:"jaccard_threshold"`
}

type LengthConfig struct {
	MaxLength int     `yaml:"max_length"`
	MaxTokens int     `yaml:"max_tokens"`
	WarnRatio float64 `yaml:"warn_ratio"`
}

// Load reads configuration from a YAML file. A missing file returns the
// default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// AbuseDetectorConfig resolves the abuse section against the detector
// defaults.
func (c *Config) AbuseDetectorConfig() abuse.Config {
	out := abuse.DefaultConfig()
	if c.Abuse.MLThreshold > 0 {
		out.MLThreshold = c.Abuse.MLThreshold
	}
	if c.Abuse.BlockThreshold > 0 {
		out.BlockThreshold = c.Abuse.BlockThreshold
	}
	if c.Abuse.Semantic != nil {
		out.SemanticEnabled = *c.Abuse.Semantic
	}
	return out
}

// SimilarityCheckerConfig resolves the similarity section against the
// checker defaults.
func (c *Config) SimilarityCheckerConfig() similarity.Config {
	out := similarity.DefaultConfig()
	if c.Similarity.DefaultThreshold > 0 {
		out.DefaultThreshold = c.Similarity.DefaultThreshold
	}
	if c.Similarity.JaccardThreshold > 0 {
		out.JaccardThreshold = c.Similarity.JaccardThreshold
	}
	return out
}

// LengthOptions resolves the length section against the classifier
// defaults.
func (c *Config) LengthOptions() promptlen.Options {
	out := promptlen.DefaultOptions()
	if c.Length.MaxLength > 0 {
		out.MaxLength = c.Length.MaxLength
	}
	if c.Length.MaxTokens > 0 {
		out.MaxTokens = c.Length.MaxTokens
	}
	if c.Length.WarnRatio > 0 {
		out.WarnRatio = c.Length.WarnRatio
	}
	return out
}
