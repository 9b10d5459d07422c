package core

// commit_limiter.go bounds the number of dataset commits in flight.
//
// Every submit that passed validation writes the whole conformance list of a
// dataset version back to the store. The limiter uses a semaphore so a burst
// of submits cannot exhaust the store's connection pool. When all slots are
// taken a commit waits up to maxWait before failing with ErrTooManyCommits.
//
// WaitForDrain blocks until every active commit completed and is used on
// shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyCommits is returned when no commit slot freed up in time.
var ErrTooManyCommits = errors.New("too many concurrent commits")

// DefaultMaxConcurrentCommits is the default limit for parallel commits.
const DefaultMaxConcurrentCommits = 5

// DefaultCommitWait is how long to wait for a slot before rejecting.
const DefaultCommitWait = 5 * time.Second

// CommitLimiter controls concurrent commits using a semaphore.
type CommitLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewCommitLimiter creates a limiter that allows at most maxConcurrent
// simultaneous commits.
func NewCommitLimiter(maxConcurrent int, maxWait time.Duration) *CommitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCommits
	}
	if maxWait <= 0 {
		maxWait = DefaultCommitWait
	}
	return &CommitLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a commit slot. The caller must call Release when the commit
// completes.
func (l *CommitLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrTooManyCommits
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *CommitLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of commits in flight.
func (l *CommitLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no commit is active or ctx is done.
func (l *CommitLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CommitLimiterStatus is a snapshot of the limiter for health checks.
type CommitLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *CommitLimiter) Status() CommitLimiterStatus {
	active := l.Active()
	return CommitLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
