package apperror

import (
	"errors"
	"net/http"
)

// GenericMessage replaces internal detail on server faults; clients never see
// the underlying cause.
const GenericMessage = "An unexpected error occurred."

// Error is the application error carried from services to the HTTP boundary.
// StatusCode picks the response status, Message the client-visible text.
// Fields carries per-field validation messages keyed like "usernameMessage"
// so forms can highlight the offending input. Internal holds the operator-only
// cause for server faults.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	Internal   error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Internal
}

// Payload builds the JSON body: {"message": ...} plus any per-field keys.
func (e *Error) Payload() map[string]interface{} {
	body := map[string]interface{}{"message": e.Message}
	for key, msg := range e.Fields {
		body[key] = msg
	}
	return body
}

// ClientFault reports invalid caller input (400).
func ClientFault(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Message: message}
}

// FieldFaults reports one or more per-field validation failures (400).
// The first field's message doubles as the top-level message.
func FieldFaults(fields map[string]string) *Error {
	message := "Invalid input."
	for _, msg := range fields {
		message = msg
		break
	}
	return &Error{StatusCode: http.StatusBadRequest, Message: message, Fields: fields}
}

// Unauthorized reports a missing or invalid credential (401).
func Unauthorized(message string) *Error {
	return &Error{StatusCode: http.StatusUnauthorized, Message: message}
}

// Forbidden reports a valid credential with an insufficient role (403).
func Forbidden(message string) *Error {
	return &Error{StatusCode: http.StatusForbidden, Message: message}
}

// NotFound reports a missing resource (404).
func NotFound(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Message: message}
}

// Unexpected wraps a storage/mail/internal failure (500). The cause is kept
// for logging only.
func Unexpected(cause error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Message: GenericMessage, Internal: cause}
}

// From normalizes any error to *Error, wrapping unknown ones as Unexpected.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unexpected(err)
}
