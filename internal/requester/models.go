// internal/requester/models.go
package requester

// Statuses an envelope can carry. The first three come from the popup
// service; error is produced locally when no answer arrived.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
	StatusError     = "error"
)

// Result is the uniform envelope every popup interaction resolves to.
// Service responses pass through verbatim, so unknown fields survive.
type Result map[string]interface{}

// Status returns the envelope status, or "" when the service sent none.
func (r Result) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Message returns the error or timeout message, if any.
func (r Result) Message() string {
	s, _ := r["message"].(string)
	return s
}

// Button returns the button that closed the popup, if any.
func (r Result) Button() string {
	s, _ := r["button"].(string)
	return s
}

// Values returns the element values of a completed envelope: everything
// except the envelope's own keys.
func (r Result) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(r))
	for k, v := range r {
		switch k {
		case "status", "button", "message":
			continue
		}
		values[k] = v
	}
	return values
}

// payload is the request body for POST /popup.
type payload struct {
	Definition interface{} `json:"definition"`
	TimeoutMs  int         `json:"timeout_ms"`
}

func errorResult(message string) Result {
	return Result{"status": StatusError, "message": message}
}
