package trade

import (
	"context"
	"sync"

	"github.com/investv3/trading-engine/internal/metrics"
)

// accountLocks serializes work per account. Waiters are admitted in the
// order they called acquire; different accounts never block each other.
type accountLocks struct {
	mu     sync.Mutex
	queues map[string]*ticketQueue
}

type ticketQueue struct {
	held    bool
	waiters []chan struct{}
	refs    int // holder + waiters; the queue is dropped at zero
}

func newAccountLocks() *accountLocks {
	return &accountLocks{queues: make(map[string]*ticketQueue)}
}

// acquire blocks until key is free or ctx is done. The returned release
// func must be called exactly once; extra calls are ignored.
func (l *accountLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	q, ok := l.queues[key]
	if !ok {
		q = &ticketQueue{}
		l.queues[key] = q
	}
	q.refs++

	if !q.held {
		q.held = true
		l.mu.Unlock()
		return l.releaser(key, q), nil
	}

	ticket := make(chan struct{})
	q.waiters = append(q.waiters, ticket)
	l.mu.Unlock()

	metrics.AccountLockWaiters.Inc()
	defer metrics.AccountLockWaiters.Dec()

	select {
	case <-ticket:
		return l.releaser(key, q), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range q.waiters {
		if w == ticket {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			q.refs--
			l.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	l.mu.Unlock()

	// The lock was handed over while ctx expired; pass it on.
	l.release(key, q)
	return nil, ctx.Err()
}

func (l *accountLocks) releaser(key string, q *ticketQueue) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(key, q) }) }
}

func (l *accountLocks) release(key string, q *ticketQueue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q.refs--
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.held = false
	if q.refs == 0 {
		delete(l.queues, key)
	}
}

// size reports the number of accounts with a holder or waiters.
func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}
