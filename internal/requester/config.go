// internal/requester/config.go
package requester

import "os"

// DefaultTimeoutMs is how long a popup waits for the user when the caller
// does not say otherwise: five minutes.
const DefaultTimeoutMs = 300000

// Config carries everything a Requester needs. The environment is read
// exactly once, at construction time; nothing else in this package
// touches it.
type Config struct {
	AuthToken string
	Host      string
	TimeoutMs int // default popup timeout in milliseconds; 0 means DefaultTimeoutMs
}

// FromEnv builds a Config from POPUP_AUTH_TOKEN and HOST. A missing token
// is not an error here; ShowPopup reports it per call.
func FromEnv() Config {
	return Config{
		AuthToken: os.Getenv("POPUP_AUTH_TOKEN"),
		Host:      os.Getenv("HOST"),
		TimeoutMs: DefaultTimeoutMs,
	}
}
