// internal/requester/requester.go
package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"popup-client/internal/common/errors"
	httpx "popup-client/internal/common/http"
	"popup-client/internal/common/metrics"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Requester submits popup definitions to the popup service and blocks
// until the interaction outcome arrives. Failures never surface as Go
// errors or panics; every call resolves to an envelope.
type Requester struct {
	config Config
	errors *errors.ErrorHandler
	logger Logger
}

// New builds a Requester. A zero Config.TimeoutMs falls back to
// DefaultTimeoutMs; everything else is taken as given.
func New(cfg Config, log Logger) *Requester {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = DefaultTimeoutMs
	}
	return &Requester{
		config: cfg,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
}

// ShowPopup submits a definition with the configured default timeout. The
// definition passes through opaquely: no validation, no mutation.
func (r *Requester) ShowPopup(ctx context.Context, definition interface{}) Result {
	return r.show(ctx, definition, r.config.TimeoutMs)
}

// ShowPopupWithTimeout is ShowPopup with an explicit timeout in
// milliseconds, forwarded to the service as-is.
func (r *Requester) ShowPopupWithTimeout(ctx context.Context, definition interface{}, timeoutMs int) Result {
	return r.show(ctx, definition, timeoutMs)
}

func (r *Requester) show(ctx context.Context, definition interface{}, timeoutMs int) (result Result) {
	// The envelope guarantee also covers panics out of exotic definition
	// types (a custom MarshalJSON, say).
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("popup request panicked", map[string]interface{}{
				"panic": fmt.Sprint(rec),
			})
			result = errorResult(fmt.Sprintf("panic: %v", rec))
		}
	}()

	if r.config.AuthToken == "" {
		r.logger.Warn("popup auth token not configured", map[string]interface{}{
			"host": r.config.Host,
		})
		metrics.PopupRequestErrors.WithLabelValues(string(errors.ErrCodeAuthTokenMissing)).Inc()
		return errorResult(errors.NewAuthTokenMissingError().Message)
	}

	body, err := json.Marshal(payload{Definition: definition, TimeoutMs: timeoutMs})
	if err != nil {
		r.logger.Error("failed to encode popup request", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.PopupRequestErrors.WithLabelValues(string(errors.ErrCodeRequestEncodeFailed)).Inc()
		return errorResult(err.Error())
	}

	endpoint := r.config.Host + "/popup"
	deadline := transportDeadline(timeoutMs)

	r.logger.Debug("submitting popup", map[string]interface{}{
		"endpoint":  endpoint,
		"timeoutMs": timeoutMs,
		"deadline":  deadline.String(),
		"bodyBytes": len(body),
	})

	start := time.Now()
	metrics.PopupRequestsInFlight.Inc()
	defer metrics.PopupRequestsInFlight.Dec()

	// Fresh client per call: the deadline depends on this call's timeout,
	// and no connection state is shared between popups.
	resp, err := httpx.NewClient(deadline).PostJSON(ctx, endpoint, r.config.AuthToken, body)
	if err != nil {
		stdErr := r.errors.Classify(r.config.Host, err)
		metrics.PopupRequestErrors.WithLabelValues(string(stdErr.Code)).Inc()
		return errorResult(stdErr.Message)
	}
	defer resp.Body.Close()

	var envelope Result
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		r.logger.Error("failed to decode popup response", map[string]interface{}{
			"httpStatus": resp.StatusCode,
			"error":      err.Error(),
		})
		metrics.PopupRequestErrors.WithLabelValues(string(errors.ErrCodeResponseDecodeFailed)).Inc()
		return errorResult(err.Error())
	}
	if envelope == nil {
		// "null" decodes without error but breaks the mapping guarantee.
		metrics.PopupRequestErrors.WithLabelValues(string(errors.ErrCodeResponseDecodeFailed)).Inc()
		return errorResult("popup server response was null, not an object")
	}

	elapsed := time.Since(start)
	status := envelope.Status()
	label := status
	if label == "" {
		label = "unknown"
	}
	metrics.PopupRequestsTotal.WithLabelValues(label).Inc()
	metrics.PopupRequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	r.logger.Info("popup answered", map[string]interface{}{
		"status":     status,
		"httpStatus": resp.StatusCode,
		"durationMs": elapsed.Milliseconds(),
	})

	// Whatever the service said, and whatever its HTTP status, the
	// envelope passes through verbatim.
	return envelope
}

// transportDeadline computes the HTTP client timeout: the popup's own
// timeout plus five seconds, so the server can report its timeout before
// the transport gives up. Non-positive timeouts keep the bare 5s floor.
func transportDeadline(timeoutMs int) time.Duration {
	deadline := 5 * time.Second
	if timeoutMs > 0 {
		deadline += time.Duration(timeoutMs) * time.Millisecond
	}
	return deadline
}
