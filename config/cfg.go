// Package config loads the invalidator configuration: an embedded YAML
// template with defaults, optionally overlaid by a user file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/style"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

// ErrInvalidConfig wraps every decoding and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	InvalidationConfig struct {
		BloomThreshold int    `yaml:"bloom_threshold" validate:"min=1"`
		BloomBits      uint   `yaml:"bloom_bits" validate:"min=6,max=24"`
		ClassSalt      uint32 `yaml:"class_salt" validate:"min=1"`
		IDSalt         uint32 `yaml:"id_salt" validate:"min=1,nefield=ClassSalt"`
	}

	EngineConfig struct {
		HasInvalidation bool `yaml:"has_invalidation"`
		MaxRecalcPasses int  `yaml:"max_recalc_passes" validate:"min=1,max=64"`
	}

	Config struct {
		Version      int                `yaml:"version" validate:"eq=1"`
		Logging      LoggingConfig      `yaml:"logging"`
		Invalidation InvalidationConfig `yaml:"invalidation"`
		Engine       EngineConfig       `yaml:"engine"`
	}
)

// FeatureSetOptions returns the feature set tuning of the section.
func (c *InvalidationConfig) FeatureSetOptions() css.FeatureSetOptions {
	return css.FeatureSetOptions{
		BloomThreshold: c.BloomThreshold,
		BloomBits:      c.BloomBits,
		ClassSalt:      c.ClassSalt,
		IDSalt:         c.IDSalt,
	}
}

// EngineOptions returns the style engine options described by cfg. Metrics
// are left to the caller.
func (c *Config) EngineOptions() style.Options {
	return style.Options{
		Features:        c.Invalidation.FeatureSetOptions(),
		HasInvalidation: c.Engine.HasInvalidation,
		MaxRecalcPasses: c.Engine.MaxRecalcPasses,
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// Unknown keys are errors, which yaml.Unmarshal would not report.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return cfg, nil
}

// LoadConfiguration expands the embedded template and, when path is not
// empty, overlays the file at path on it. The result is validated.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file %s: %w", path, err)
	}
	return cfg, nil
}

// Prepare returns the expanded default configuration.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

// Dump returns cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
