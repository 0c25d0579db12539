package config

import (
	"fmt"
)

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.StreamDebounceMs < 0 {
		errs = append(errs, "server.stream_debounce_ms must be >= 0")
	}

	if c.Model.Name == "" {
		errs = append(errs, "model.name must not be empty")
	}
	if c.Model.MaxIterations < 1 {
		errs = append(errs, "model.max_iterations must be >= 1")
	}

	if c.Sandbox.MaxReadBytes < 1 {
		errs = append(errs, "sandbox.max_read_bytes must be >= 1")
	}
	for _, p := range c.Sandbox.ReadPaths {
		if p == "" {
			errs = append(errs, "sandbox.read_paths must not contain empty entries")
		}
	}
	for _, p := range c.Sandbox.ReadWritePaths {
		if p == "" {
			errs = append(errs, "sandbox.read_write_paths must not contain empty entries")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
