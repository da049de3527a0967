package config

import (
	"os"

	"github.com/systmms/containerlib/internal/logging"
)

// LookupFunc reads one environment variable. os.LookupEnv is the default.
type LookupFunc func(key string) (string, bool)

// Config holds the runtime configuration
type Config struct {
	Logger   *logging.Logger
	Lookup   LookupFunc
	Settings *Settings

	// Debug pins the logger at debug level regardless of GLUU_LOG_LEVEL
	Debug bool
}

// Load reads Settings from the environment. It is safe to call more than
// once; later calls re-read the environment.
func (c *Config) Load() error {
	lookup := c.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	c.Settings = LoadSettings(lookup)

	if c.Logger != nil && !c.Debug && c.Settings.LogLevel != "" {
		c.Logger.SetLevel(c.Settings.LogLevel)
	}
	return nil
}

// MustSettings returns the loaded settings, loading them on first use.
func (c *Config) MustSettings() *Settings {
	if c.Settings == nil {
		_ = c.Load()
	}
	return c.Settings
}

// FromMap returns a LookupFunc backed by a map, for tests and callers that
// assemble settings programmatically.
func FromMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
