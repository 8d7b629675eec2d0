package rga

import (
	"time"

	"github.com/benbjohnson/clock"
)

// StuckAfter is how long a fence may stay unsignalled before its frame is given up on.
const StuckAfter = 2 * time.Second

// Status is the state of a queued blit.
type Status int

// Blit states.
const (
	Pending Status = iota
	Signaled
	Stuck
)

func (s Status) String() string {
	switch s {
	case Signaled:
		return "signaled"
	case Stuck:
		return "stuck"
	default:
		return "pending"
	}
}

// Job is a queued conversion. CPU conversions complete synchronously and carry no fence.
type Job struct {
	fence   Fence
	clock   clock.Clock
	started time.Time
	done    bool
}

func newJob(fence Fence, clk clock.Clock) *Job {
	return &Job{fence: fence, clock: clk, started: clk.Now(), done: fence == nil}
}

// Hardware reports whether the job runs on the accelerator.
func (j *Job) Hardware() bool {
	return j != nil && j.fence != nil
}

// Poll checks the fence, waiting up to timeout. A fence unsignalled for longer than StuckAfter
// reports Stuck. A nil job is always signalled.
func (j *Job) Poll(timeout time.Duration) (Status, error) {
	if j == nil || j.done {
		return Signaled, nil
	}
	ok, err := j.fence.Wait(timeout)
	if err != nil {
		return Stuck, err
	}
	if ok {
		j.done = true
		return Signaled, nil
	}
	if j.clock.Since(j.started) > StuckAfter {
		return Stuck, nil
	}
	return Pending, nil
}

// Close releases the fence.
func (j *Job) Close() error {
	if j == nil || j.fence == nil {
		return nil
	}
	err := j.fence.Close()
	j.fence = nil
	j.done = true
	return err
}
