package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	}, DefaultConfig())

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_RetryAndSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(3))

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	expected := errors.New("persistent error")
	attempts := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return expected
	}, fastConfig(3))

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsEarly(t *testing.T) {
	permanent := errors.New("bad payload")
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	}, cfg)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return nil
	}, DefaultConfig())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := Config{MaxAttempts: 10, InitialDelay: time.Second, BackoffFactor: 1, MaxDelay: time.Second}
	err := Do(ctx, func(ctx context.Context) error { return errors.New("down") }, cfg)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoWithInfo_PassesAttempt(t *testing.T) {
	var seen []int
	_ = DoWithInfo(context.Background(), func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		return errors.New("again")
	}, fastConfig(3))

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("x")
	}, Config{})
	assert.Equal(t, 1, attempts)
}

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, BackoffFactor: 2, MaxDelay: 35 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 20*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 35*time.Millisecond, cfg.delay(3))
}
