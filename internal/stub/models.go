// internal/stub/models.go
package stub

import "encoding/json"

// popupRequest is the body the popup client POSTs to /popup.
type popupRequest struct {
	Definition json.RawMessage `json:"definition"`
	TimeoutMs  int             `json:"timeout_ms"`
}

// errorEnvelope mirrors the error result shape clients decode, so a stub
// failure reads the same as a real service failure.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
