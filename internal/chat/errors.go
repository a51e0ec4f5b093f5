package chat

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrConstraint   = errors.New("constraint violation")
)

// serviceError carries a caller facing message while still matching one of
// the sentinels above (and the underlying store error) with errors.Is.
type serviceError struct {
	kind  error
	msg   string
	cause error
}

func (e *serviceError) Error() string {
	return e.msg
}

func (e *serviceError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func newError(kind error, cause error, msg string) error {
	return &serviceError{kind: kind, msg: msg, cause: cause}
}
