// Package syncer implements the per-chain bus-facing Runtime and the
// Synclet worker that performs blocking chain I/O off the Runtime's handler
// goroutine, bridged back via bus.Bridge.
package syncer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/farcasterd/swapd/bus"
)

// TaskState tracks one outstanding task's lifecycle inside a Synclet,
// independent of the Runtime's (Task, Source) dedup set.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskActive
	TaskSatisfied
	TaskAborted
	TaskSourceGone
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskActive:
		return "active"
	case TaskSatisfied:
		return "satisfied"
	case TaskAborted:
		return "aborted"
	case TaskSourceGone:
		return "source-gone"
	default:
		return "unknown"
	}
}

// maxTaskFailures is the number of consecutive failed chain-RPC calls after
// which a Failure Event is emitted. retryCall gives up at that point; the
// watch loops reset their failure count and keep polling, so the task stays
// active.
const maxTaskFailures = 10

// taskTimeout returns the maximum duration a task of kind k may run before
// it is abandoned with a Failure event. Watch-style tasks (address,
// transaction, height) have no bound: they are satisfied by a future chain
// event that may not arrive for a long time, and giving up on them would
// silently drop an in-flight swap's confirmation tracking.
func taskTimeout(kind bus.TaskKind) time.Duration {
	switch kind {
	case bus.TaskBroadcastTransaction:
		return 60 * time.Second
	case bus.TaskSweepAddress:
		return 120 * time.Second
	default:
		return 0
	}
}

// newBackoff builds the retry schedule shared by every Synclet's chain-RPC
// calls: a 500ms initial interval growing to a 30s cap with +/-20% jitter,
// uncapped elapsed time since maxTaskFailures governs when to give up, not
// wall-clock duration.
func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0.2
	b.Multiplier = 1.5
	b.MaxElapsedTime = 0
	return b
}

// Synclet performs the blocking, chain-specific half of a Syncer: it
// receives Tasks and reports Events on the internal Bridge, entirely off
// the Runtime's single-threaded bus handler goroutine.
type Synclet interface {
	// Run blocks until ctx is canceled, dispatching every task received on
	// tasks and reporting progress/completion/failure Events on bridge.
	Run(ctx context.Context, tasks <-chan bus.SyncerdTask, bridge *bus.Bridge) error
}

// retryCall invokes fn with exponential backoff until it succeeds, ctx is
// canceled, or it has failed maxTaskFailures times. It reports how many
// times fn was called (maxTaskFailures when it gave up) so callers can
// decide whether to emit a Failure event.
func retryCall(ctx context.Context, fn func() error) (attempts int, err error) {
	b := newBackoff()
	for attempts = 1; attempts <= maxTaskFailures; attempts++ {
		err = fn()
		if err == nil {
			return attempts, nil
		}
		if attempts == maxTaskFailures {
			return attempts, err
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return attempts, err
		}
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(wait):
		}
	}
	return attempts, err
}
