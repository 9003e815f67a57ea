// internal/common/errors/handler.go
package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// TransportKind classifies a failed popup service round trip.
type TransportKind int

const (
	// TransportOther covers everything that is neither a timeout nor a
	// connection failure, including malformed request targets.
	TransportOther TransportKind = iota
	TransportTimeout
	TransportConnection
)

// ClassifyTransport maps a transport error to its kind. Timeouts win over
// connection failures: a dial timeout reports as TransportTimeout.
func ClassifyTransport(err error) TransportKind {
	if err == nil {
		return TransportOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return TransportConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return TransportConnection
	}

	return TransportOther
}

// ErrorHandler classifies transport errors with standardized error handling
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Classify turns a failed round trip into a StandardError whose Message is
// ready for the response envelope: timeouts and connection failures get
// their fixed messages, anything else carries the stringified error.
func (h *ErrorHandler) Classify(host string, err error) *StandardError {
	stdErr := h.classify(host, err)
	h.logError(host, stdErr)
	return stdErr
}

func (h *ErrorHandler) classify(host string, err error) *StandardError {
	switch ClassifyTransport(err) {
	case TransportTimeout:
		return NewRequestTimeoutError(host)
	case TransportConnection:
		return NewConnectionFailedError(host, err)
	default:
		return &StandardError{
			Code:      "INTERNAL_ERROR",
			Message:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
}

// Normalize ensures we always have a StandardError
func (h *ErrorHandler) Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(host string, stdErr *StandardError) {
	h.logger.Error("Popup request failed", map[string]interface{}{
		"host":          host,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
