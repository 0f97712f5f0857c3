package errors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrIf(t *testing.T) {
	var errs Errors
	assert.False(t, errs.ErrIf(false, "never"))
	assert.True(t, errs.ErrIf(true, "Missing required config key: %s", "base_url"))
	assert.Equal(t, "Missing required config key: base_url", errs.Error())
}

func TestAddErr(t *testing.T) {
	var errs Errors
	assert.True(t, errs.AddErr(nil))
	assert.Nil(t, errs.ErrOrNil())

	someErr := errors.New("some error")
	assert.False(t, errs.AddErr(someErr))
	assert.Equal(t, someErr, errs.ErrOrNil(), "a single error is returned as-is")

	assert.False(t, errs.AddErr(Errors{errors.New("a"), errors.New("b")}))
	assert.Len(t, errs, 3, "nested Errors are flattened")
	assert.EqualError(t, errs.ErrOrNil(), "some error\na\nb")
}

func TestErrorsIs(t *testing.T) {
	someErr := errors.New("some error")
	errs := Errors{errors.New("other"), errors.Wrap(someErr, "wrapped")}
	assert.True(t, errors.Is(errs, someErr))
}
