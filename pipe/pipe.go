// Package pipe composes teardown operations that must all run, like reporting a result and releasing a browser
package pipe

import (
	"github.com/johnstarich/uiwatch/errors"
	pkgErrors "github.com/pkg/errors"
)

// Op is one step of a teardown
type Op interface {
	Do() error
}

// OpFunc makes it easy to wrap an anonymous function into an Op
type OpFunc func() error

// Do implements the Op interface
func (o OpFunc) Do() error {
	return o()
}

// All runs every Op in series, even after one fails. Returns the combined errors, if any.
type All []Op

// Do implements the Op interface
func (all All) Do() error {
	var errs errors.Errors
	for _, op := range all {
		errs.AddErr(op.Do())
	}
	return errs.ErrOrNil()
}

// Named labels an Op's error with 'name'
func Named(name string, op Op) Op {
	return OpFunc(func() error {
		return pkgErrors.Wrap(op.Do(), name)
	})
}
