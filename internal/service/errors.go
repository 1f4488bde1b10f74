package service

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	// ErrNetwork covers failed catalog or poster fetches; the user may retry.
	ErrNetwork ErrorType = iota
	// ErrNotFound means an id lookup targeted a record that does not exist.
	// Empty search results are not errors and never carry this type.
	ErrNotFound
	// ErrStorage covers cache file failures; fatal to the current operation.
	ErrStorage
	// ErrRender covers template and output failures; fatal to generation only.
	ErrRender
	ErrConfig
	ErrValidation
	ErrUnknown
)

type ShelfError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ShelfError {
	return &ShelfError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, errorType ErrorType, message string) *ShelfError {
	return &ShelfError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *ShelfError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ShelfError) Unwrap() error {
	return e.Cause
}

func (e *ShelfError) WithContext(key string, value any) *ShelfError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrNetwork:
		return "Network"
	case ErrNotFound:
		return "NotFound"
	case ErrStorage:
		return "Storage"
	case ErrRender:
		return "Render"
	case ErrConfig:
		return "Config"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Retryable reports whether retrying the same action can plausibly succeed.
func (t ErrorType) Retryable() bool {
	return t == ErrNetwork
}

func IsErrorType(err error, errorType ErrorType) bool {
	var shelfErr *ShelfError
	if errors.As(err, &shelfErr) {
		return shelfErr.Type == errorType
	}
	return false
}
