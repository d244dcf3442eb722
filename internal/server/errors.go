package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Yates-Labs/ragify/internal/ingest/loader"
	"github.com/Yates-Labs/ragify/internal/orchestrator"
)

// Response messages sent to clients.
const (
	MsgInvalidPersona  = "Invalid persona"
	MsgInvalidBody     = "Invalid request body"
	MsgMessageRequired = "Message is required"
	MsgChatFailed      = "Failed to process the request"
	MsgNoFile          = "No file uploaded"
	MsgUnsupportedType = "Unsupported file type"
	MsgUploadFailed    = "Failed to process file"
	MsgContentRequired = "Content is required"
	MsgInvalidURL      = "Invalid URL"
	MsgFetchFailed     = "Failed to fetch URL"
	MsgCatalogDisabled = "Catalog disabled"
	MsgInternal        = "Internal server error"
)

// AppError is an error with the HTTP status and client message it maps to.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapError maps client errors to 400 responses with fixed messages. Anything
// else becomes a 500 carrying fallback, so internal details stay in the log.
func MapError(err error, fallback string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		return NewAppError(http.StatusBadRequest, MsgMessageRequired, err)
	case errors.Is(err, orchestrator.ErrInvalidPersona):
		return NewAppError(http.StatusBadRequest, MsgInvalidPersona, err)
	case errors.Is(err, loader.ErrUnsupportedType):
		return NewAppError(http.StatusBadRequest, MsgUnsupportedType, err)
	case errors.Is(err, orchestrator.ErrEmptyText):
		return NewAppError(http.StatusBadRequest, MsgContentRequired, err)
	case errors.Is(err, orchestrator.ErrInvalidURL):
		return NewAppError(http.StatusBadRequest, MsgInvalidURL, err)
	case errors.Is(err, orchestrator.ErrFetchFailed):
		return NewAppError(http.StatusBadGateway, MsgFetchFailed, err)
	}

	if fallback == "" {
		fallback = MsgInternal
	}
	return NewAppError(http.StatusInternalServerError, fallback, err)
}
