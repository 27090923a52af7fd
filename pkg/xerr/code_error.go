package xerr

import "fmt"

// CodeError carries a stable business code alongside the message.
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New creates a CodeError.
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// Generic codes
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

// Dispatch domain codes. These are expected business outcomes, not faults:
// callers branch on them instead of treating them as server errors.
const (
	NoCapacity           = 2001
	AlreadyAssigned      = 2002
	InvalidTransition    = 2003
	TransportUnavailable = 2004
	ConversationClosed   = 2005
)

var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "internal server error")
	ErrParam       = New(BadRequest, "invalid parameters")
	ErrNotFound    = New(NotFound, "record not found")

	ErrNoCapacity           = New(NoCapacity, "no operators available")
	ErrAlreadyAssigned      = New(AlreadyAssigned, "work item already assigned")
	ErrInvalidTransition    = New(InvalidTransition, "invalid status transition")
	ErrTransportUnavailable = New(TransportUnavailable, "counterpart transport unavailable")
	ErrConversationClosed   = New(ConversationClosed, "conversation is closed")
)

// Is reports whether err is a CodeError with the given code.
func Is(err error, code int) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*CodeError); ok {
		return e.Code == code
	}
	return false
}
