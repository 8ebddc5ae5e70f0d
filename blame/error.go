package blame

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"strings"

	"github.com/abhissng/conduit/utils/helpers"
	"github.com/abhissng/conduit/utils/types"
)

// Error struct holds the error information
type Error struct {
	reasonCode   string
	errCode      types.ErrorCode
	component    types.ComponentErrorType
	responseType types.ResponseErrorType
	message      string
	description  string
	fields       map[string]any
	causes       []error
	source       string
}

// NewError creates a new Error instance
func NewError(
	reasonCode string,
	errorCode types.ErrorCode,
	message, description string,
) *Error {
	if helpers.IsEmpty(reasonCode) {
		reasonCode = string(errorCode)
	}
	return &Error{
		reasonCode:  reasonCode,
		errCode:     errorCode,
		message:     message,
		description: description,
		fields:      map[string]any{},
		source:      findSource(2),
	}
}

// NewBasicError creates a new Error instance with the given error code
func NewBasicError(
	errorCode types.ErrorCode,
) *Error {
	return &Error{
		reasonCode: errorCode.String(),
		errCode:    errorCode,
		fields:     map[string]any{},
		source:     findSource(2),
	}
}

func (e *Error) FetchReasonCode() string {
	return e.reasonCode
}

func (e *Error) FetchErrCode() types.ErrorCode {
	return e.errCode
}

// FetchMessage returns the message with {{.field}} placeholders substituted.
func (e *Error) FetchMessage() string {
	return e.resolve(e.message)
}

func (e *Error) FetchDescription() string {
	return e.resolve(e.description)
}

func (e *Error) FetchFields() map[string]any {
	return e.fields
}

func (e *Error) FetchSource() string {
	return e.source
}

func (e *Error) FetchComponent() types.ComponentErrorType {
	return e.component
}

func (e *Error) FetchResponseType() types.ResponseErrorType {
	return e.responseType
}

func (e *Error) FetchCauses() []error {
	return e.causes
}

// WithMessage sets the message of the error and returns the updated Error instance.
func (e *Error) WithMessage(msg string) *Error {
	e.message = msg
	return e
}

// WithDescription sets the description of the error and returns the updated Error instance.
func (e *Error) WithDescription(description string) *Error {
	e.description = description
	return e
}

// WithField adds a field to the error and returns the updated Error instance.
func (e *Error) WithField(key string, value any) *Error {
	if e.fields == nil {
		e.fields = map[string]any{}
	}
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the error and returns the updated Error instance.
func (e *Error) WithFields(fields map[string]any) *Error {
	for k, v := range fields {
		_ = e.WithField(k, v)
	}
	return e
}

// WithCause adds a cause to the error and returns the updated Error instance. Nil causes are ignored.
func (e *Error) WithCause(err error) *Error {
	if err != nil {
		e.causes = append(e.causes, err)
	}
	return e
}

// WithComponent sets the component of the error and returns the updated Error instance.
func (e *Error) WithComponent(component types.ComponentErrorType) *Error {
	e.component = component
	return e
}

// WithResponseType sets the response type of the error and returns the updated Error instance.
func (e *Error) WithResponseType(responseType types.ResponseErrorType) *Error {
	e.responseType = responseType
	return e
}

// Error returns the code, the resolved message and the causes.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.errCode.String())
	if msg := e.FetchMessage(); msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}
	if len(e.causes) > 0 {
		sb.WriteString(" (causes: ")
		sb.WriteString(strings.TrimSuffix(helpers.FetchErrorStack(e.causes), "; "))
		sb.WriteString(")")
	}
	return sb.String()
}

// Unwrap exposes the causes to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	return e.causes
}

// Is matches another *Error carrying the same error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.errCode == e.errCode
}

func (e *Error) clone() *Error {
	c := *e
	c.fields = maps.Clone(e.fields)
	if c.fields == nil {
		c.fields = map[string]any{}
	}
	c.causes = append([]error(nil), e.causes...)
	return &c
}

func (e *Error) resolve(text string) string {
	if !strings.Contains(text, "{{.") {
		return text
	}
	for key, value := range e.fields {
		text = strings.ReplaceAll(text, "{{."+key+"}}", fmt.Sprintf("%v", value))
	}
	return text
}

// findSource captures the file:line skip frames above the caller.
func findSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if idx := strings.LastIndex(file, "/conduit/"); idx >= 0 {
		file = file[idx+len("/conduit/"):]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// ErrorResponse struct holds the error information for sending as a response
type ErrorResponse struct {
	ReasonCode   string                   `json:"reason_code,omitempty"`
	ErrorCode    types.ErrorCode          `json:"error_code,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Description  string                   `json:"description,omitempty"`
	Fields       map[string]any           `json:"fields,omitempty"`
	Component    types.ComponentErrorType `json:"component,omitempty"`
	ResponseType types.ResponseErrorType  `json:"response_type,omitempty"`
	Causes       []string                 `json:"causes,omitempty"`
}

// NewErrorResponseBlame rebuilds an *Error from its wire form, so that an
// error raised in another service surfaces with the same code and fields.
func (r *ErrorResponse) NewErrorResponseBlame() *Error {
	e := &Error{
		reasonCode:   r.ReasonCode,
		errCode:      r.ErrorCode,
		component:    r.Component,
		responseType: r.ResponseType,
		message:      r.Message,
		description:  r.Description,
		fields:       maps.Clone(r.Fields),
		source:       findSource(2),
	}
	if e.fields == nil {
		e.fields = map[string]any{}
	}
	for _, cause := range r.Causes {
		e.causes = append(e.causes, errors.New(cause))
	}
	return e
}

// FromErrorResponse is NewErrorResponseBlame for a possibly nil response.
func FromErrorResponse(r *ErrorResponse) *Error {
	if r == nil {
		return nil
	}
	return r.NewErrorResponseBlame()
}

// FetchErrorResponse builds the wire form of the error.
func (e *Error) FetchErrorResponse(options ...SendErrorResponseOption) ErrorResponse {
	response := ErrorResponse{
		ReasonCode:   e.FetchReasonCode(),
		ErrorCode:    e.FetchErrCode(),
		Message:      e.FetchMessage(),
		Description:  e.FetchDescription(),
		Fields:       maps.Clone(e.FetchFields()),
		Component:    e.FetchComponent(),
		ResponseType: e.FetchResponseType(),
		Causes:       helpers.FetchErrorStrings(e.FetchCauses()),
	}

	for _, opt := range options {
		opt(&response, e)
	}

	return response
}

// SendErrorResponseOption is a function that can be used to modify the error response
type SendErrorResponseOption func(*ErrorResponse, Blame)

// WithoutCauses strips causes and description, used where internal detail must not leak.
func WithoutCauses() SendErrorResponseOption {
	return func(response *ErrorResponse, _ Blame) {
		response.Causes = nil
		response.Description = ""
	}
}

// WithCustomField adds a custom field to the error response and returns the updated SendErrorResponseOption.
func WithCustomField(key string, value any) SendErrorResponseOption {
	return func(response *ErrorResponse, _ Blame) {
		if response.Fields == nil {
			response.Fields = map[string]any{}
		}
		response.Fields[key] = value
	}
}
