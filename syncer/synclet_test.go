package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetryCallSucceedsImmediately(t *testing.T) {
	calls := 0
	attempts, err := retryCall(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestRetryCallRecoversAfterFailures(t *testing.T) {
	calls := 0
	attempts, err := retryCall(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryCallGivesUpAtMaxTaskFailures(t *testing.T) {
	calls := 0
	attempts, err := retryCall(context.Background(), func() error {
		calls++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, maxTaskFailures, attempts)
	require.Equal(t, maxTaskFailures, calls)
}

// Each call to retryCall must start its failure count from zero: a
// previous task's exhausted retries must never bleed into the next task's
// budget on the same Synclet.
func TestRetryCallFailureCountDoesNotPersistAcrossCalls(t *testing.T) {
	first := 0
	_, err := retryCall(context.Background(), func() error {
		first++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, maxTaskFailures, first)

	second := 0
	attempts, err := retryCall(context.Background(), func() error {
		second++
		if second < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryCallRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := retryCall(ctx, func() error {
		return errors.New("always fails")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestTaskStateString(t *testing.T) {
	require.Equal(t, "pending", TaskPending.String())
	require.Equal(t, "active", TaskActive.String())
	require.Equal(t, "satisfied", TaskSatisfied.String())
	require.Equal(t, "aborted", TaskAborted.String())
	require.Equal(t, "source-gone", TaskSourceGone.String())
	require.Equal(t, "unknown", TaskState(99).String())
}
