package noticeboard

import "github.com/daehakro/noticeboard/internal/config"

// Config is the engine configuration, aliased so library users can build and
// adjust one without reaching into internal packages.
type Config = config.Config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads a YAML config file over the defaults and applies NOTICE_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }
