package hub

import "errors"

type ErrorCode string

const (
	ErrorCodeAuth     ErrorCode = "auth_error"
	ErrorCodeConflict ErrorCode = "conflict"
	ErrorCodeNotFound ErrorCode = "not_found"
	ErrorCodeDelivery ErrorCode = "delivery_failure"
	ErrorCodeInternal ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err is a hub error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var hubErr *Error
	if errors.As(err, &hubErr) {
		return hubErr.Code == code
	}
	return false
}
