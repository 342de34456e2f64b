package domain

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. The HTTP adapter maps them to statuses.
const (
	CodeInvalidURL       = "INVALID_URL"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeSpawnFailed      = "SPAWN_FAILED"
	CodeBusy             = "BUSY"
)

// AuthRequiredMessage replaces the extractor's own text whenever it asks for a sign-in.
const AuthRequiredMessage = `Authentication required. This video needs sign-in cookies; export them from your browser and send them in the "cookies" field.`

// DownloadFailedMessage is the only text a caller sees when the relay cannot start.
const DownloadFailedMessage = "Download failed"

// DomainError represents a domain-specific error
type DomainError struct {
	Code      string
	Message   string
	Err       error
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error, retryable bool) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// AsDomainError reports whether err wraps a *DomainError and returns it.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrInvalidURL = &DomainError{
		Code:    CodeInvalidURL,
		Message: "A video URL is required",
	}

	ErrAuthRequired = &DomainError{
		Code:    CodeAuthRequired,
		Message: AuthRequiredMessage,
	}

	ErrSpawnFailed = &DomainError{
		Code:    CodeSpawnFailed,
		Message: DownloadFailedMessage,
	}

	ErrBusy = &DomainError{
		Code:      CodeBusy,
		Message:   "Too many downloads in progress, try again shortly",
		Retryable: true,
	}
)

// AuthRequired wraps the raw extractor failure behind the fixed caller-safe message.
func AuthRequired(raw error) *DomainError {
	return NewDomainError(CodeAuthRequired, AuthRequiredMessage, raw, false)
}

// ExtractionFailed carries the extractor's message to the caller.
func ExtractionFailed(message string, err error) *DomainError {
	return NewDomainError(CodeExtractionFailed, message, err, false)
}

// SpawnFailed hides err behind DownloadFailedMessage.
func SpawnFailed(err error) *DomainError {
	return NewDomainError(CodeSpawnFailed, DownloadFailedMessage, err, false)
}
