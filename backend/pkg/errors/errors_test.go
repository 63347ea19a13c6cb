package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_ThroughWrapping(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("create thread: %w", NewRemoteRequestFailed("create_thread", cause))

	assert.True(t, IsErrorType(err, ErrorTypeRemote))
	assert.True(t, IsRemoteRequestError(err))
	assert.False(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, cause)
}

func TestAgentCreationFailed_IsConfigurationError(t *testing.T) {
	err := NewAgentCreationFailed("Diagram Generation Agent", stderrors.New("401"))

	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "Diagram Generation Agent")
	assert.Contains(t, err.Error(), "401")
}

func TestIsUnexpectedStatus(t *testing.T) {
	err := fmt.Errorf("stage 1: %w", NewRunUnexpectedStatus("run_1", "failed"))

	assert.True(t, IsUnexpectedStatus(err))
	assert.False(t, IsUnexpectedStatus(NewToolRoundsExceeded("run_1", 5)))

	var statusErr *ErrRunUnexpectedStatus
	if assert.True(t, stderrors.As(err, &statusErr)) {
		assert.Equal(t, "failed", statusErr.Status)
	}
}

func TestIsErrorType_JoinedErrors(t *testing.T) {
	err := stderrors.Join(
		NewRunUnexpectedStatus("run_1", "requires_action"),
		NewRemoteRequestFailed("submit_tool_outputs", stderrors.New("503")),
	)

	assert.True(t, IsErrorType(err, ErrorTypeRun))
	assert.True(t, IsRemoteRequestError(err))
	assert.True(t, IsUnexpectedStatus(err))
	assert.False(t, IsErrorType(err, ErrorTypeStore))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRemoteRequestFailed("poll_run", nil)))
	assert.False(t, IsRetryable(NewContextCancelled("poll_run", nil)))
	assert.False(t, IsRetryable(NewConfigMissingRequired("OPENAI_API_KEY")))
	assert.False(t, IsRetryable(nil))

	rejected := fmt.Errorf("chat: %w", NewRemoteRequestRejected("chat completion", stderrors.New("401")))
	assert.True(t, IsRemoteRequestError(rejected))
	assert.False(t, IsRetryable(rejected))
	assert.Contains(t, rejected.Error(), "rejected")
}
