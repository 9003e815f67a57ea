// internal/stub/config.go
package stub

import (
	"time"

	"popup-client/internal/common/config"
)

// Config controls how the stub answers popups.
type Config struct {
	AuthToken      string
	SimulatedDelay time.Duration
	Outcome        string // completed | cancelled | timeout
	Button         string
}

// NewConfig maps the stub section of the application config.
func NewConfig(cfg config.StubConfig) Config {
	return Config{
		AuthToken:      cfg.AuthToken,
		SimulatedDelay: config.GetDuration(cfg.SimulatedDelayMs),
		Outcome:        cfg.Outcome,
		Button:         cfg.Button,
	}
}
