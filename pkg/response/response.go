package response

import (
	"errors"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Envelope is the JSON body shared by every detection endpoint.
type Envelope struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Details  string `json:"details,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}
