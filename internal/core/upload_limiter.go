package core

// upload_limiter.go caps the number of ingestion tasks running at once.
//
// A slot is taken synchronously in Submit, before the task exists, and
// released by the task goroutine when it finishes. A caller that cannot get a
// slot within maxWait receives ErrTooManyTasks.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyTasks is returned when every task slot stays busy for maxWait.
var ErrTooManyTasks = errors.New("too many ingestion tasks running")

const (
	DefaultMaxConcurrentTasks = 4
	DefaultMaxWaitTime        = 5 * time.Second
)

// UploadLimiter is a counting semaphore over ingestion tasks.
type UploadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewUploadLimiter allows maxConcurrent tasks and waits up to maxWait for a slot.
func NewUploadLimiter(maxConcurrent int, maxWait time.Duration) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTasks
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &UploadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. Every successful Acquire must be paired with Release.
func (l *UploadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyTasks
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (l *UploadLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of running tasks.
func (l *UploadLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no task holds a slot or ctx ends.
func (l *UploadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// UploadLimiterStatus is a point-in-time view of the limiter.
type UploadLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports slot usage for the health endpoint.
func (l *UploadLimiter) Status() UploadLimiterStatus {
	active := l.Active()
	return UploadLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
