// Package blame provides a custom error type that adds additional information and functionality to standard errors.
package blame

import (
	"github.com/abhissng/conduit/utils/types"
)

// Blame represents a custom error type that provides additional information and functionality.
type Blame interface {
	error

	// FetchReasonCode returns the reason code associated with the error.
	FetchReasonCode() string

	// FetchErrCode returns the error code associated with the error.
	FetchErrCode() types.ErrorCode

	// FetchMessage returns the error message with field placeholders resolved.
	FetchMessage() string

	// FetchDescription returns the error description.
	FetchDescription() string

	// FetchFields returns a map of additional error fields.
	FetchFields() map[string]any

	// FetchSource returns the file:line the error was raised at.
	FetchSource() string

	// FetchComponent returns the layer the error belongs to.
	FetchComponent() types.ComponentErrorType

	// FetchResponseType returns the response type associated with the error.
	FetchResponseType() types.ResponseErrorType

	// FetchCauses returns a slice of underlying errors that caused this error.
	FetchCauses() []error

	WithMessage(string) *Error
	WithDescription(string) *Error
	WithField(key string, value any) *Error
	WithFields(fields map[string]any) *Error
	WithCause(err error) *Error
	WithComponent(component types.ComponentErrorType) *Error
	WithResponseType(responseType types.ResponseErrorType) *Error

	// FetchErrorResponse returns the wire form of the error.
	FetchErrorResponse(options ...SendErrorResponseOption) ErrorResponse
}

// NewBlame creates a new instance of Blame with the provided reason code, error code, and message.
func NewBlame(
	reasonCode string,
	errCode types.ErrorCode,
	message, description string,
) Blame {
	return NewError(reasonCode, errCode, message, description)
}

// NewBasicBlame creates a new instance of Blame carrying only an error code.
func NewBasicBlame(
	errCode types.ErrorCode,
) Blame {
	return NewBasicError(errCode)
}
