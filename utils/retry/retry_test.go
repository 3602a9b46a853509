package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	result, err := Do(
		context.Background(),
		Policy{MaxAttempts: 5, Delay: time.Millisecond},
		func(ctx context.Context, attempt int) (string, bool, error) {
			calls++
			if attempt < 3 {
				return "", false, errors.New("not yet")
			}
			return "ok", true, nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.False(t, result.TimedOut)
	assert.NoError(t, result.LastErr)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	result, err := Do(
		context.Background(),
		Policy{MaxAttempts: 4, Delay: time.Millisecond},
		func(ctx context.Context, attempt int) (int, bool, error) {
			calls++
			return 0, false, errors.New("still pending")
		},
	)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, 4, calls)
	assert.EqualError(t, result.LastErr, "still pending")
}

func TestDo_NotDoneWithoutError(t *testing.T) {
	result, err := Do(
		context.Background(),
		Policy{MaxAttempts: 2},
		func(ctx context.Context, attempt int) (int, bool, error) {
			return attempt, false, nil
		},
	)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, 0, result.Value)
	assert.Equal(t, 2, result.Attempts)
}

func TestDo_PermanentStops(t *testing.T) {
	sentinel := errors.New("bad key")
	calls := 0
	result, err := Do(
		context.Background(),
		Policy{MaxAttempts: 10, Delay: time.Millisecond},
		func(ctx context.Context, attempt int) (int, bool, error) {
			calls++
			return 0, false, Permanent(errors.Wrap(sentinel, "fetch"))
		},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, result.TimedOut)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(
		ctx,
		Policy{MaxAttempts: 100, Delay: 50 * time.Millisecond},
		func(ctx context.Context, attempt int) (int, bool, error) {
			calls++
			cancel()
			return 0, false, nil
		},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	result, err := Do(
		context.Background(),
		Policy{},
		func(ctx context.Context, attempt int) (bool, bool, error) {
			return true, true, nil
		},
	)
	require.NoError(t, err)
	assert.True(t, result.Value)
	assert.Equal(t, 1, result.Attempts)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
