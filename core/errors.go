package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned when the input of an operation is invalid.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) > 0 {
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return ""
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// NotFoundError is returned when the requested object does not exist.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsInvalidInput(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// TransportError is returned when a remote backend (API, conferencing provider, queue) fails.
type TransportError struct {
	Op  string
	Err error
}

func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

func (err TransportError) Error() string {
	if err.Err == nil {
		return err.Op
	}
	return err.Op + ": " + err.Err.Error()
}

func (err TransportError) Unwrap() error {
	return err.Err
}

func IsTransport(err error) bool {
	_, ok := errors.Cause(err).(*TransportError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
