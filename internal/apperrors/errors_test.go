package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("quote", "q-1")))
	assert.Equal(t, CodeValidation, CodeOf(InvalidInput("value", "must not be negative")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "query quotes")

	assert.True(t, IsCode(err, CodeInternal))
	assert.Contains(t, err.Error(), "query quotes")
	assert.ErrorContains(t, err, "connection reset")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
}

func TestIsCode(t *testing.T) {
	err := New(CodeSelfApprovalForbidden, "requester may not approve")
	assert.True(t, IsCode(err, CodeSelfApprovalForbidden))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(nil, CodeValidation))
}
