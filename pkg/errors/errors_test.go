package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Type: ErrorTypeDriver, Op: "discover", Err: fmt.Errorf("node gone")}
	assert.Equal(t, "discover: driver error: node gone", err.Error())

	err = New(ErrorTypeNoProgress, "", "no items collected")
	assert.Equal(t, "no_progress error: no items collected", err.Error())
}

func TestIsType(t *testing.T) {
	base := Wrap(ErrorTypeStuck, "gate", fmt.Errorf("same key"))
	wrapped := fmt.Errorf("extract: %w", base)

	assert.True(t, IsType(wrapped, ErrorTypeStuck))
	assert.False(t, IsType(wrapped, ErrorTypeDriver))
	assert.Equal(t, ErrorTypeStuck, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrorTypeStorage, "write", nil))
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := Wrap(ErrorTypeStorage, "postgres", inner)
	assert.True(t, stderrors.Is(err, inner))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeDriver, true},
		{ErrorTypeStuck, true},
		{ErrorTypeAuth, false},
		{ErrorTypeNoProgress, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.errType))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(200))
}
