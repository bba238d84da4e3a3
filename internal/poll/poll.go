// Package poll implements the bounded wait-for-condition loop shared by every
// stage that waits on an external state transition: instance power state,
// SSM agent registration and artifact existence in S3.
package poll

import (
	"context"
	"time"
)

// Outcome tags how a poll loop ended.
type Outcome int

const (
	// Satisfied means the predicate reported true.
	Satisfied Outcome = iota
	// TimedOut means the attempt budget ran out, or ctx was cancelled.
	TimedOut
	// Failed means the predicate returned an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Predicate checks the condition once.
type Predicate func(ctx context.Context) (bool, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result is what Until returns. Err is the predicate error for Failed, and
// the context error when a TimedOut was caused by cancellation.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Loop is a configured poll loop. The zero Sleep uses Sleep.
type Loop struct {
	Interval time.Duration
	Timeout  time.Duration
	Sleep    SleepFunc
}

// MaxAttempts is ceil(timeout/interval), and at least 1.
func MaxAttempts(timeout, interval time.Duration) int {
	if interval <= 0 || timeout <= 0 {
		return 1
	}
	n := int(timeout / interval)
	if timeout%interval != 0 {
		n++
	}
	return n
}

// Until calls pred up to MaxAttempts times, sleeping Interval between calls
// (never after the last one). It returns as soon as pred is satisfied or
// fails.
func (l Loop) Until(ctx context.Context, pred Predicate) Result {
	sleep := l.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	start := time.Now()
	limit := MaxAttempts(l.Timeout, l.Interval)

	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: TimedOut, Attempts: attempt - 1, Elapsed: time.Since(start), Err: err}
		}

		ok, err := pred(ctx)
		if err != nil {
			return Result{Outcome: Failed, Attempts: attempt, Elapsed: time.Since(start), Err: err}
		}
		if ok {
			return Result{Outcome: Satisfied, Attempts: attempt, Elapsed: time.Since(start)}
		}

		if attempt == limit {
			break
		}
		if err := sleep(ctx, l.Interval); err != nil {
			return Result{Outcome: TimedOut, Attempts: attempt, Elapsed: time.Since(start), Err: err}
		}
	}
	return Result{Outcome: TimedOut, Attempts: limit, Elapsed: time.Since(start)}
}

// Until is shorthand for Loop{interval, timeout, nil}.Until.
func Until(ctx context.Context, interval, timeout time.Duration, pred Predicate) Result {
	return Loop{Interval: interval, Timeout: timeout}.Until(ctx, pred)
}

// Sleep blocks for d, returning early with ctx.Err() when ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
