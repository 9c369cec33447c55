package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/beautydiscount/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceLen   = 64
)

// Error is the JSON error envelope every handler returns on failure.
// Code is a stable machine-readable identifier, Message is for humans.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error with the given code, message and HTTP status.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clamp(code, maxCodeLen),
		Message: clamp(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID attaches the request identifier.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clamp(id, maxCodeLen)
	return e
}

// WithTraceID attaches the trace identifier.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clamp(id, maxTraceLen)
	return e
}

// WithDetails merges extra JSON-serialisable fields into the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders the error envelope as JSON. Missing request and trace
// identifiers are filled in from the context.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = clamp(middleware.GetReqID(ctx), maxCodeLen)
	}

	traceID := err.TraceID
	if traceID == "" {
		traceID = clamp(requestctx.TraceID(ctx), maxTraceLen)
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clamp strips newlines and bounds the value so log lines and payloads stay flat.
func clamp(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
