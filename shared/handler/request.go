package handler

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
)

// Error codes produced by the handler pipeline itself. Workers add their
// own domain codes on top of these.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeInternal       = "INTERNAL_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
)

// Request represents a generic incoming request to a worker.
// It provides a platform-agnostic way to handle input from the HTTP
// adapter or any other transport.
type Request struct {
	// ID is a unique identifier for the request (for tracing)
	ID string `json:"id"`

	// Source identifies where the request came from (http, test, ...)
	Source string `json:"source"`

	// Type identifies the operation (e.g. "info", "download")
	Type string `json:"type"`

	// Payload contains the request body as raw JSON
	Payload json.RawMessage `json:"payload"`

	// Metadata contains transport context: headers, query parameters
	// (as "query_<name>"), trace identifiers
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp when the request was created
	Timestamp time.Time `json:"timestamp"`
}

// Stream is a response body produced incrementally by a worker.
// The transport calls WriteTo exactly once and Close exactly once, in that
// order, after the response status has been committed. Close must also be
// safe to call when WriteTo was never reached.
type Stream interface {
	io.WriterTo
	io.Closer
}

// Response represents a generic response from a worker.
type Response struct {
	// ID correlates with the request ID
	ID string `json:"id"`

	// Success indicates if processing was successful
	Success bool `json:"success"`

	// Data contains the JSON body (only if Success is true and Stream is nil)
	Data json.RawMessage `json:"data,omitempty"`

	// Stream, when set, replaces Data as the response body
	Stream Stream `json:"-"`

	// Headers are transport headers the worker wants set on success
	// (content type, disposition, caching)
	Headers map[string]string `json:"-"`

	// Error contains error information if Success is false
	Error *ErrorResponse `json:"error,omitempty"`

	// Metadata contains additional response context such as trace identifiers
	Metadata map[string]string `json:"metadata,omitempty"`

	// ProcessedAt timestamp
	ProcessedAt time.Time `json:"processed_at"`

	// Duration of processing (optional). For streams this covers start-up only.
	Duration time.Duration `json:"duration,omitempty"`
}

// ErrorResponse represents structured error information.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "VALIDATION_ERROR")
	Code string `json:"code"`

	// Message is a human-readable, caller-safe message
	Message string `json:"message"`

	// Details provides additional error context (optional). Never sent to
	// HTTP clients; it exists for logs.
	Details string `json:"details,omitempty"`

	// Retryable indicates if the operation can be retried
	Retryable bool `json:"retryable,omitempty"`
}

// NewRequest creates a new request with generated ID and timestamp.
func NewRequest(requestType string, payload interface{}) (Request, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ID:        uuid.New().String(),
		Type:      requestType,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Unmarshal decodes the request payload into v.
func (r *Request) Unmarshal(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

// Marshal encodes v as the response data.
func (r *Response) Marshal(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// IsStream reports whether the response body is a stream.
func (r *Response) IsStream() bool {
	return r.Stream != nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code string, message string, details string) Response {
	return Response{
		ID:      id,
		Success: false,
		Error: &ErrorResponse{
			Code:      code,
			Message:   message,
			Details:   details,
			Retryable: isRetryableError(code),
		},
		ProcessedAt: time.Now().UTC(),
	}
}

// NewSuccessResponse creates a success response carrying data as JSON.
func NewSuccessResponse(id string, data interface{}) (Response, error) {
	resp := Response{
		ID:          id,
		Success:     true,
		ProcessedAt: time.Now().UTC(),
		Metadata:    make(map[string]string),
	}

	if data != nil {
		if err := resp.Marshal(data); err != nil {
			return Response{}, err
		}
	}

	return resp, nil
}

// NewStreamResponse creates a success response whose body is stream.
func NewStreamResponse(id string, stream Stream, headers map[string]string) Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	return Response{
		ID:          id,
		Success:     true,
		Stream:      stream,
		Headers:     headers,
		Metadata:    make(map[string]string),
		ProcessedAt: time.Now().UTC(),
	}
}

// isRetryableError determines if an error code represents a retryable error.
func isRetryableError(code string) bool {
	switch code {
	case CodeTimeout, CodeRateLimited, CodeUnavailable, "BUSY":
		return true
	default:
		return false
	}
}

// SetMetadata adds or updates metadata on the request.
func (r *Request) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// GetMetadata retrieves metadata from the request.
func (r *Request) GetMetadata(key string) (string, bool) {
	if r.Metadata == nil {
		return "", false
	}
	val, ok := r.Metadata[key]
	return val, ok
}
