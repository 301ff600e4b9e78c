// Package config loads tocscan settings from an optional YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tocscan/selection"
)

// Output formats
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

type Filter struct {
	LocationSubstring string `yaml:"location_substring"`
}

type Output struct {
	// Format is text, json or parquet.
	Format string `yaml:"format"`
	// Path is the output file; empty means stdout (not allowed for parquet).
	Path string `yaml:"path"`
}

type Postgres struct {
	URL        string `yaml:"url"`
	InitSchema bool   `yaml:"init_schema"`
}

type Input struct {
	BufferMB int `yaml:"buffer_mb"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Config is the full set of settings. Command-line flags override it.
type Config struct {
	Filter        Filter   `yaml:"filter"`
	Output        Output   `yaml:"output"`
	Postgres      Postgres `yaml:"postgres"`
	Input         Input    `yaml:"input"`
	Log           Log      `yaml:"log"`
	ProgressEvery int64    `yaml:"progress_every"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Filter:        Filter{LocationSubstring: selection.DefaultMarker},
		Output:        Output{Format: FormatText},
		Input:         Input{BufferMB: 64},
		Log:           Log{Level: "info"},
		ProgressEvery: 10000,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	if c.Filter.LocationSubstring == "" {
		return fmt.Errorf("filter.location_substring must not be empty")
	}
	switch c.Output.Format {
	case FormatText, FormatJSON:
	case FormatParquet:
		if c.Output.Path == "" {
			return fmt.Errorf("output.path is required for parquet output")
		}
	default:
		return fmt.Errorf("output.format must be text, json or parquet, got %q", c.Output.Format)
	}
	if c.Input.BufferMB <= 0 {
		return fmt.Errorf("input.buffer_mb must be positive, got %d", c.Input.BufferMB)
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("progress_every must not be negative")
	}
	return nil
}

// SelectionFilter returns the location filter described by c.
func (c Config) SelectionFilter() selection.Filter {
	return selection.Filter{Substring: c.Filter.LocationSubstring}
}
