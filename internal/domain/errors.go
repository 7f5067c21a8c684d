package domain

import "fmt"

// ErrCode is one of the stable, client-visible error codes from the HTTP
// contract. Unlike the reference repo's event-service, these codes are
// the literal wire values — the response layer does not remap them.
type ErrCode string

const (
	CodeValidationError ErrCode = "VALIDATION_ERROR"
	CodeBadRequest      ErrCode = "BAD_REQUEST"
	CodeNotFound        ErrCode = "NOT_FOUND"
	CodeConflict        ErrCode = "CONFLICT"
	CodeInternalError   ErrCode = "INTERNAL_ERROR"
)

// AppError carries a stable code, a human message, and optional structured
// details surfaced verbatim in the error envelope's "details" field.
type AppError struct {
	Code    ErrCode
	Message string
	Details map[string]string
}

func (e *AppError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
}

func ErrValidation(msg string) error { return &AppError{Code: CodeValidationError, Message: msg} }

func ErrValidationDetails(msg string, details map[string]string) error {
	return &AppError{Code: CodeValidationError, Message: msg, Details: details}
}

func ErrBadRequest(msg string) error { return &AppError{Code: CodeBadRequest, Message: msg} }

func ErrNotFound(msg string) error { return &AppError{Code: CodeNotFound, Message: msg} }

func ErrConflict(msg string) error { return &AppError{Code: CodeConflict, Message: msg} }

func ErrInternal(msg string) error { return &AppError{Code: CodeInternalError, Message: msg} }
