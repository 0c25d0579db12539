package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Store   StoreConfig   `json:"store"`
	Model   ModelConfig   `json:"model"`
	Sandbox SandboxConfig `json:"sandbox"`
	Logging LoggingConfig `json:"logging"`
}

type ServerConfig struct {
	Host string `json:"host"` // Default: "127.0.0.1"
	Port int    `json:"port"` // Default: 8000

	// StreamDebounceMs is the minimum interval between intermediate
	// model-text emissions on the streaming endpoint.
	StreamDebounceMs int `json:"stream_debounce_ms"` // Default: 10
}

type StoreConfig struct {
	// Path to the SQLite database file. Empty means
	// <data dir>/sandchat/messages.db.
	Path string `json:"path"`
}

type ModelConfig struct {
	Name          string `json:"name"`           // Default: "gemini-2.5-flash"
	MaxIterations int    `json:"max_iterations"` // Default: 20
}

type SandboxConfig struct {
	// MaxReadBytes caps how much of a file read_file returns.
	MaxReadBytes int64 `json:"max_read_bytes"` // Default: 4096

	// ReadPaths and ReadWritePaths are extra directories granted to the
	// process on top of the built-in grants (database directory, /tmp).
	ReadPaths      []string `json:"read_paths"`
	ReadWritePaths []string `json:"read_write_paths"`
}

type LoggingConfig struct {
	Level string `json:"level"` // Default: "info"

	// File is an optional path for a JSON log stream alongside stderr.
	File string `json:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8000,
			StreamDebounceMs: 10,
		},
		Model: ModelConfig{
			Name:          "gemini-2.5-flash",
			MaxIterations: 20,
		},
		Sandbox: SandboxConfig{
			MaxReadBytes: 4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
