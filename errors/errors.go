// Package errors collects several errors into one, like every invalid config key at once
package errors

import (
	"strings"

	"github.com/pkg/errors"
)

// Errors is a list of problems reported together, one per line
type Errors []error

// ErrIf records a formatted error when 'condition' is true, then returns 'condition'
func (e *Errors) ErrIf(condition bool, format string, args ...interface{}) bool {
	if condition {
		*e = append(*e, errors.Errorf(format, args...))
	}
	return condition
}

// AddErr records 'err' if non-nil, flattening nested Errors. Returns true if 'err' was nil.
func (e *Errors) AddErr(err error) bool {
	if err == nil {
		return true
	}
	if nested, ok := err.(Errors); ok {
		*e = append(*e, nested...)
	} else {
		*e = append(*e, err)
	}
	return false
}

// ErrOrNil returns nil for no errors, the error itself for exactly one, and e otherwise
func (e Errors) ErrOrNil() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

func (e Errors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "\n")
}

// Unwrap supports errors.Is and errors.As on every collected error
func (e Errors) Unwrap() []error {
	return e
}
