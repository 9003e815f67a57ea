// internal/common/config/config.go
package config

import "strings"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Popup    PopupConfig    `mapstructure:"popup"`
	Stub     StubConfig     `mapstructure:"stub"`
	Registry RegistryConfig `mapstructure:"registry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PopupConfig holds the connection settings for the popup service.
type PopupConfig struct {
	Host             string `mapstructure:"host"`
	AuthToken        string `mapstructure:"auth_token"`
	DefaultTimeoutMs int    `mapstructure:"default_timeout_ms"` // milliseconds
}

// PopupURL returns the full endpoint URL for popup submissions.
func (p PopupConfig) PopupURL() string {
	return strings.TrimSuffix(p.Host, "/") + "/popup"
}

// StubConfig holds settings for the headless stub server that answers
// popups during development.
type StubConfig struct {
	ListenAddr       string `mapstructure:"listen_addr"`
	AuthToken        string `mapstructure:"auth_token"`
	SimulatedDelayMs int    `mapstructure:"simulated_delay_ms"` // milliseconds
	Outcome          string `mapstructure:"outcome"`            // completed | cancelled | timeout
	Button           string `mapstructure:"button"`
}

// RegistryConfig holds settings for the popup template registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
