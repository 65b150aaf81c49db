package ingest

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// InsertionLimiter bounds the number of writes in flight at any one time.
// The reader acquires a permit per record and hands it to the write
// goroutine; Drain blocks until every permit has come back, which is how the
// pipeline knows that all writes spawned before EOF have finished.
type InsertionLimiter struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewInsertionLimiter(maxInFlight int) *InsertionLimiter {
	return &InsertionLimiter{
		sem: semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Acquire blocks until a permit is free or ctx is cancelled.
func (l *InsertionLimiter) Acquire(ctx context.Context) (*Permit, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.wg.Add(1)
	return &Permit{limiter: l}, nil
}

// Drain blocks until every outstanding permit has been released.
func (l *InsertionLimiter) Drain() {
	l.wg.Wait()
}

// Permit is the right to perform one write.
type Permit struct {
	limiter *InsertionLimiter
	once    sync.Once
}

// Release returns the permit. Calling it more than once has no effect.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.limiter.sem.Release(1)
		p.limiter.wg.Done()
	})
}
