package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Conflict("seats taken", []string{"A1", "A2"})
	wrapped := fmt.Errorf("acquire hold: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrNetwork))
	assert.Equal(t, []string{"A1", "A2"}, ConflictingSeats(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeNetwork, "request failed", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "request failed")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Wrap(CodeNetwork, "timeout", nil)))
	assert.True(t, IsRetryable(New(CodeServer, "502")))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(ErrConflict))
	assert.False(t, IsRetryable(ErrAuth))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeHoldExpired, CodeOf(fmt.Errorf("x: %w", ErrHoldExpired)))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Nil(t, ConflictingSeats(ErrValidation))
}
