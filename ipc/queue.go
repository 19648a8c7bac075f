// Package ipc implements the addressed, bounded message queues the chat
// planes run on. Envelopes are pulled by selector: producers tag with
// the request constant, consumers pull their own PID (or 0 for any).
// Destroying a queue wakes every blocked producer and consumer with
// ErrQueueRemoved, which is how room teardown propagates.
package ipc

import (
	"context"
	"sync"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

var _ contract.Conduit = (*Queue)(nil)

type recvWaiter struct {
	selector int64
	ch       chan domain.Envelope
}

type Queue struct {
	mu          sync.Mutex
	capacity    int
	buf         []domain.Envelope
	recvWaiters []*recvWaiter
	sendWaiters []chan struct{}
	removed     bool
	done        chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		done:     make(chan struct{}),
	}
}

// Send enqueues an envelope, blocking while the queue is full. It fails
// with ErrQueueRemoved once the queue is destroyed, even mid-wait.
func (q *Queue) Send(ctx context.Context, env domain.Envelope) error {
	for {
		q.mu.Lock()
		if q.removed {
			q.mu.Unlock()
			return errors.ErrQueueRemoved
		}
		if q.handoff(env) {
			q.mu.Unlock()
			return nil
		}
		if len(q.buf) < q.capacity {
			q.buf = append(q.buf, env)
			q.mu.Unlock()
			return nil
		}
		space := make(chan struct{}, 1)
		q.sendWaiters = append(q.sendWaiters, space)
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.dropSendWaiter(space)
			return ctx.Err()
		case <-q.done:
			return errors.ErrQueueRemoved
		case <-space:
			// Space freed, retry the whole admission check.
		}
	}
}

// TrySend enqueues without blocking: ErrQueueFull when no slot is free.
func (q *Queue) TrySend(env domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removed {
		return errors.ErrQueueRemoved
	}
	if q.handoff(env) {
		return nil
	}
	if len(q.buf) < q.capacity {
		q.buf = append(q.buf, env)
		return nil
	}
	return errors.ErrQueueFull
}

// Receive blocks until an envelope whose tag matches the selector is
// available. Selector 0 matches any envelope, like msgrcv.
func (q *Queue) Receive(ctx context.Context, selector int64) (domain.Envelope, error) {
	q.mu.Lock()
	if q.removed {
		q.mu.Unlock()
		return domain.Envelope{}, errors.ErrQueueRemoved
	}
	if i := q.match(selector); i >= 0 {
		env := q.take(i)
		q.mu.Unlock()
		return env, nil
	}
	w := &recvWaiter{selector: selector, ch: make(chan domain.Envelope, 1)}
	q.recvWaiters = append(q.recvWaiters, w)
	q.mu.Unlock()

	select {
	case env := <-w.ch:
		return env, nil
	case <-ctx.Done():
		q.dropRecvWaiter(w)
		// A handoff may have landed before the waiter was dropped.
		select {
		case env := <-w.ch:
			return env, nil
		default:
			return domain.Envelope{}, ctx.Err()
		}
	case <-q.done:
		q.dropRecvWaiter(w)
		select {
		case env := <-w.ch:
			return env, nil
		default:
			return domain.Envelope{}, errors.ErrQueueRemoved
		}
	}
}

// TryReceive pulls without blocking: ErrNoMessage when nothing matches.
func (q *Queue) TryReceive(selector int64) (domain.Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removed {
		return domain.Envelope{}, errors.ErrQueueRemoved
	}
	if i := q.match(selector); i >= 0 {
		return q.take(i), nil
	}
	return domain.Envelope{}, errors.ErrNoMessage
}

// Destroy invalidates the queue exactly once. Pending envelopes are
// discarded and every waiter observes ErrQueueRemoved.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removed {
		return
	}
	q.removed = true
	q.buf = nil
	q.recvWaiters = nil
	q.sendWaiters = nil
	close(q.done)
}

// Len reports the number of buffered envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// handoff delivers directly to the earliest waiter matching the tag.
// The buffer never holds an envelope a registered waiter could consume
// (waiters are only parked after a failed buffer scan), so a direct
// handoff cannot overtake buffered traffic for the same selector.
// Caller holds q.mu.
func (q *Queue) handoff(env domain.Envelope) bool {
	for i, w := range q.recvWaiters {
		if w.selector == 0 || w.selector == env.Tag {
			q.recvWaiters = append(q.recvWaiters[:i], q.recvWaiters[i+1:]...)
			w.ch <- env
			return true
		}
	}
	return false
}

// match returns the index of the first buffered envelope for the
// selector, or -1. Caller holds q.mu.
func (q *Queue) match(selector int64) int {
	for i, env := range q.buf {
		if selector == 0 || env.Tag == selector {
			return i
		}
	}
	return -1
}

// take removes the buffered envelope at i and signals one blocked
// producer that a slot freed up. Caller holds q.mu.
func (q *Queue) take(i int) domain.Envelope {
	env := q.buf[i]
	q.buf = append(q.buf[:i], q.buf[i+1:]...)
	if len(q.sendWaiters) > 0 {
		space := q.sendWaiters[0]
		q.sendWaiters = q.sendWaiters[1:]
		select {
		case space <- struct{}{}:
		default:
		}
	}
	return env
}

func (q *Queue) dropRecvWaiter(w *recvWaiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.recvWaiters {
		if cand == w {
			q.recvWaiters = append(q.recvWaiters[:i], q.recvWaiters[i+1:]...)
			return
		}
	}
}

func (q *Queue) dropSendWaiter(space chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.sendWaiters {
		if cand == space {
			q.sendWaiters = append(q.sendWaiters[:i], q.sendWaiters[i+1:]...)
			return
		}
	}
}
