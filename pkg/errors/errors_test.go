package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{0, 429, 500, 502, 503, 504, 599} {
		assert.True(t, IsRetryableStatusCode(code), "code %d", code)
	}
	for _, code := range []int{400, 401, 403, 404, 418} {
		assert.False(t, IsRetryableStatusCode(code), "code %d", code)
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("fetching: %w", &Error{Type: ErrorTypeRateLimit, Code: 429})
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestStageError(t *testing.T) {
	cause := &Error{Type: ErrorTypeNotFound, Message: "resource not found", Code: 404}
	err := NewFetchError("deadprofile", cause)

	assert.True(t, IsStage(err, StageFetch))
	assert.False(t, IsStage(err, StageExpand))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(err))
	assert.Contains(t, err.Error(), "fetch deadprofile")

	var se *StageError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &se))
	assert.Equal(t, "deadprofile", se.Handle)

	assert.True(t, IsStage(NewExpandError("a", cause), StageExpand))
	assert.True(t, IsStage(NewSinkWriteError("a", cause), StageSink))
}

func TestConfigError(t *testing.T) {
	assert.NoError(t, NewConfigError())
	assert.NoError(t, NewConfigError(nil, nil))

	noSeeds := errors.New("no seeds")
	err := NewConfigError(noSeeds, nil, errors.New("max_profiles must be at least 1"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, noSeeds)
	assert.Equal(t, "invalid configuration: no seeds; max_profiles must be at least 1", err.Error())
}
