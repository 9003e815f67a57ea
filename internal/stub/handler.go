// internal/stub/handler.go
//
// Package stub answers popup requests the way the real popup service
// would, without showing a UI. It exists so the client, the CLI, and the
// e2e suite can run against a local server during development.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"popup-client/internal/common/observability"
	"popup-client/internal/popup"
)

// Logger matches the subset of the shared logger interface the stub uses.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Handler serves POST /popup.
type Handler struct {
	config Config
	obs    *observability.Observability
	logger Logger
}

func NewHandler(config Config, obs *observability.Observability, logger Logger) *Handler {
	return &Handler{
		config: config,
		obs:    obs,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+h.config.AuthToken {
		h.logger.Warn("Rejected popup request with bad auth", map[string]interface{}{
			"request_id": requestID,
			"remote":     r.RemoteAddr,
		})
		h.writeError(w, http.StatusUnauthorized, "Popup server rejected the auth token")
		return
	}

	var req popupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid popup request: %s", err))
		return
	}

	def, err := popup.ParseDefinition(req.Definition)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid popup definition: %s", err))
		return
	}

	h.logger.Debug("Answering popup", map[string]interface{}{
		"request_id": requestID,
		"title":      def.Title,
		"elements":   len(def.Elements),
		"timeout_ms": req.TimeoutMs,
		"outcome":    h.config.Outcome,
	})

	result, abandoned := h.answer(r.Context(), def, req.TimeoutMs)
	if abandoned {
		h.logger.Warn("Popup request abandoned by client", map[string]interface{}{
			"request_id": requestID,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to write popup result", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return
	}

	duration := time.Since(start)
	h.obs.RecordPopupAnswered(r.Context(), result.Status)
	h.obs.RecordPopupDuration(r.Context(), duration, result.Status)
	h.logger.Info("Popup answered", map[string]interface{}{
		"request_id":  requestID,
		"status":      result.Status,
		"duration_ms": duration.Milliseconds(),
	})
}

// answer waits out the configured delay and produces the result. When the
// delay overruns the popup's own timeout_ms budget, the reply is the same
// timeout envelope the real service sends. A true second return means the
// client went away before the answer was due.
func (h *Handler) answer(ctx context.Context, def *popup.Definition, timeoutMs int) (popup.PopupResult, bool) {
	popupTimeout := time.Duration(timeoutMs) * time.Millisecond

	if timeoutMs > 0 && h.config.SimulatedDelay > popupTimeout {
		if sleep(ctx, popupTimeout) {
			return popup.PopupResult{}, true
		}
		return popup.TimeoutResult(timeoutMessage(timeoutMs)), false
	}

	if sleep(ctx, h.config.SimulatedDelay) {
		return popup.PopupResult{}, true
	}

	switch h.config.Outcome {
	case popup.StatusCancelled:
		return popup.CancelledResult(), false
	case popup.StatusTimeout:
		return popup.TimeoutResult(timeoutMessage(timeoutMs)), false
	default:
		state := popup.NewState(def)
		return popup.CompletedResult(state.ValueMap(def), h.config.Button), false
	}
}

func timeoutMessage(timeoutMs int) string {
	return fmt.Sprintf("Popup timed out after %d ms", timeoutMs)
}

// sleep waits for d, reporting true if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Status: "error", Message: message})
}
