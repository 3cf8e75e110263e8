package queue

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	job           BatchJob
	readyAt       time.Time
	reservedUntil time.Time
}

// InMemoryJobQueue implements JobQueue with full delay and reservation
// semantics. It backs tests and single-process deployments.
type InMemoryJobQueue struct {
	mu      sync.Mutex
	entries []*memoryEntry

	now func() time.Time
}

func NewInMemoryJobQueue() *InMemoryJobQueue {
	return &InMemoryJobQueue{now: time.Now}
}

func (q *InMemoryJobQueue) Enqueue(_ context.Context, job BatchJob, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, &memoryEntry{
		job:     job,
		readyAt: q.now().Add(delay),
	})
	return nil
}

// Claim reserves the oldest ready job for ttr. Expired reservations are
// released lazily here, which is what makes crashed jobs reclaimable.
// Returns (nil, nil) when nothing is ready.
func (q *InMemoryJobQueue) Claim(_ context.Context, ttr time.Duration) (*Claimed, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, e := range q.entries {
		if e.readyAt.After(now) {
			continue
		}
		if !e.reservedUntil.IsZero() && e.reservedUntil.After(now) {
			continue
		}
		e.reservedUntil = now.Add(ttr)
		return &Claimed{Job: e.job, receipt: e}, nil
	}
	return nil, nil
}

func (q *InMemoryJobQueue) Complete(_ context.Context, c *Claimed) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := c.receipt.(*memoryEntry)
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Fail releases the reservation and makes the job ready again after
// delay, with the attempt count bumped.
func (q *InMemoryJobQueue) Fail(_ context.Context, c *Claimed, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := c.receipt.(*memoryEntry)
	e.job.Attempt++
	e.readyAt = q.now().Add(delay)
	e.reservedUntil = time.Time{}
	return nil
}

// Len reports the number of jobs held, ready or not.
func (q *InMemoryJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

var _ JobQueue = (*InMemoryJobQueue)(nil)
