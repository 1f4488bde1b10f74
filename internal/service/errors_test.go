package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShelfError_MessageAndContext(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := WrapError(cause, ErrNetwork, "catalog search failed").WithContext("title", "Severance")

	msg := err.Error()
	assert.Contains(t, msg, "[Network]")
	assert.Contains(t, msg, "catalog search failed")
	assert.Contains(t, msg, "title=Severance")
	assert.Contains(t, msg, "connection refused")

	require.ErrorIs(t, err, cause)
}

func TestIsErrorType(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", NewError(ErrStorage, "cache write failed"))
	assert.True(t, IsErrorType(err, ErrStorage))
	assert.False(t, IsErrorType(err, ErrNetwork))
	assert.False(t, IsErrorType(errors.New("plain"), ErrStorage))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, ErrNetwork.Retryable())
	assert.False(t, ErrStorage.Retryable())
	assert.False(t, ErrRender.Retryable())
	assert.False(t, ErrNotFound.Retryable())
}
