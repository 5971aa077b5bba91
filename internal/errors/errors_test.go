package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Message(t *testing.T) {
	assert.Equal(t, "file_path: is required", InvalidInput("file_path", "is required").Error())
	assert.Equal(t, "reconciliation 'abc' not found", NotFound("reconciliation", "abc").Error())
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")

	err := Wrap(cause, ErrCodeUnavailable, "failed to reach database")

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeUnavailable, err.Code)
	assert.Contains(t, err.Error(), "failed to reach database")
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotEmpty(t, Stack(err))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", NotFound("run", "1"))

	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeNotFound))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrCodeInternal))
}
