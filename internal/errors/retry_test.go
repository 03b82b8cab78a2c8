package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	}

	err := Retry(context.Background(), fastRetryConfig(3), fn)

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return errors.New("persistent error")
	}

	err := Retry(context.Background(), fastRetryConfig(2), fn)

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return Validation("malformed filter")
	}

	err := Retry(context.Background(), fastRetryConfig(3), fn)

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "validation errors must not be retried")
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestRetry_ObservesContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	fn := func() error {
		attempts++
		cancel()
		return errors.New("still failing")
	}

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = time.Second // Cancellation must win over the wait.

	start := time.Now()
	err := Retry(ctx, cfg, fn)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryWithResult_ReturnsValueOnSuccess(t *testing.T) {
	attempts := 0
	fn := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "payload", nil
	}

	result, err := RetryWithResult(context.Background(), fastRetryConfig(3), fn)

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithResult_ZeroValueOnFailure(t *testing.T) {
	fn := func() (int, error) {
		return 99, errors.New("always fails")
	}

	result, err := RetryWithResult(context.Background(), fastRetryConfig(1), fn)

	require.Error(t, err)
	assert.Zero(t, result)
}

func TestDefaultRetryConfig_MatchesStorePolicy(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.Jitter)
}

func TestEmbedRetryConfig_SingleRetry(t *testing.T) {
	assert.Equal(t, 1, EmbedRetryConfig().MaxRetries)
}
