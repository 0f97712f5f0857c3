// Package records attaches failure evidence to errors, like a screenshot or the steps a test ran
package records

import (
	"fmt"

	"github.com/pkg/errors"
)

// Record is one piece of evidence captured when a test fails
type Record interface {
	Name() string
	ContentType() string
	Data() []byte
}

// Error is an error carrying the evidence captured alongside it
type Error interface {
	error
	Records() []Record
}

type record struct {
	name        string
	contentType string
	data        []byte
	// load reads data on each use, for records backed by large files
	load func() ([]byte, error)
}

func (r *record) Name() string {
	return r.name
}

func (r *record) ContentType() string {
	return r.contentType
}

func (r *record) Data() []byte {
	if r.load == nil {
		return r.data
	}
	data, err := r.load()
	if err != nil {
		return []byte(err.Error())
	}
	return data
}

type recordsError struct {
	cause   error
	records []Record
}

// WrapError attaches 'records' to 'err'. Returns nil if 'err' is nil, like errors.Wrap.
func WrapError(err error, records ...Record) Error {
	if err == nil {
		return nil
	}
	return &recordsError{cause: err, records: records}
}

// FromError collects the records attached to 'err' and every error it wraps, outermost first
func FromError(err error) []Record {
	var found []Record
	var recErr Error
	for errors.As(err, &recErr) {
		found = append(found, recErr.Records()...)
		err = errors.Unwrap(recErr)
	}
	return found
}

func (e *recordsError) Error() string {
	return fmt.Sprintf("Records captured [%d]: %s", len(e.records), e.cause.Error())
}

func (e *recordsError) Records() []Record {
	return e.records
}

// Cause returns the wrapped error
func (e *recordsError) Cause() error {
	return e.cause
}

// Unwrap supports errors.Is and errors.As
func (e *recordsError) Unwrap() error {
	return e.cause
}
