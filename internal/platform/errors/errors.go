package errors

import (
	"errors"

	"github.com/louisbranch/oilandrope/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the error domain for Oil & Rope errors.
const Domain = "oilandrope.louisbranch.github.com"

// DefaultLocale is the default locale for error messages.
const DefaultLocale = "en-US"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for templating
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error with metadata for i18n templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata creates a domain error with both metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// Localize renders the user-facing message for the error in locale.
func (e *Error) Localize(locale string) (string, string) {
	catalog := i18n.GetCatalog(locale)
	return catalog.Locale(), catalog.Format(string(e.Code), e.Metadata)
}

// ToStatus converts the error to a status carrying errdetails. The status
// message holds the internal message, the LocalizedMessage the user-facing one.
func (e *Error) ToStatus(locale string, userMessage string) *status.Status {
	grpcCode := e.Code.GRPCCode()
	st := status.New(grpcCode, e.Message)
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		return st
	}
	return detailed
}

// ToGRPCStatus converts the error to a gRPC status error.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	return e.ToStatus(locale, userMessage).Err()
}

// HandleError converts domain errors to a gRPC status error for clients.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		resolved, userMsg := appErr.Localize(locale)
		return appErr.ToGRPCStatus(resolved, userMsg)
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// UserMessage returns the localized message for domain errors and a generic
// one for everything else.
func UserMessage(err error, locale string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		_, msg := appErr.Localize(locale)
		return msg
	}
	return i18n.GetCatalog(locale).Format(string(CodeUnknown), nil)
}
