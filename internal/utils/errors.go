package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind names a terminal failure of an extraction job.
type ErrorKind string

const (
	KindUnsupportedMediaKind ErrorKind = "UnsupportedMediaKind"
	KindUnknownCategory      ErrorKind = "UnknownCategory"
	KindEmptyReply           ErrorKind = "EmptyReply"
	KindNoJSONFound          ErrorKind = "NoJsonFound"
	KindMalformedJSON        ErrorKind = "MalformedJson"
	KindUpstreamService      ErrorKind = "UpstreamServiceError"
	KindValidation           ErrorKind = "ValidationError"
	KindExtractionFailed     ErrorKind = "ExtractionFailed"
	KindNotFound             ErrorKind = "NotFound"
	KindInternal             ErrorKind = "InternalError"
)

// StatusCode is the HTTP status reported for the kind.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindValidation, KindUnknownCategory:
		return http.StatusBadRequest
	case KindUnsupportedMediaKind:
		return http.StatusUnsupportedMediaType
	case KindExtractionFailed:
		return http.StatusUnprocessableEntity
	case KindEmptyReply, KindNoJSONFound, KindMalformedJSON, KindUpstreamService:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type every service operation returns.
type AppError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Details    string
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of e carrying a diagnostic detail string.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func NewAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{
		Kind:       kind,
		StatusCode: kind.StatusCode(),
		Message:    message,
		Cause:      cause,
	}
}

func NewBadRequestError(message string) *AppError {
	return NewAppError(KindValidation, message, nil)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(KindNotFound, message, nil)
}

func NewInternalError(message string) *AppError {
	return NewAppError(KindInternal, message, nil)
}

func NewUpstreamError(message string, cause error) *AppError {
	return NewAppError(KindUpstreamService, message, cause)
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
