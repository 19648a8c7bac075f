package ipc

import (
	"context"
	"sync"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

var _ contract.Opener = (*Arena)(nil)

// Arena is the process-wide queue table. Handles are never reused, so a
// room recreated under the same name always carries a fresh handle and
// stale handles from a destroyed room keep failing with ErrQueueRemoved.
type Arena struct {
	mu       sync.Mutex
	capacity int
	queues   map[domain.QueueHandle]*Queue
	next     domain.QueueHandle
}

// NewArena builds an empty arena; every queue it creates holds at most
// queueCapacity envelopes. The first Create yields the control handle.
func NewArena(queueCapacity int) *Arena {
	return &Arena{
		capacity: queueCapacity,
		queues:   make(map[domain.QueueHandle]*Queue),
		next:     domain.ControlQueue,
	}
}

func (a *Arena) Create() (domain.QueueHandle, *Queue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	handle := a.next
	a.next++
	q := NewQueue(a.capacity)
	a.queues[handle] = q
	return handle, q
}

func (a *Arena) Get(handle domain.QueueHandle) (*Queue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.queues[handle]
	if !ok {
		return nil, errors.ErrUnknownQueue
	}
	return q, nil
}

// Destroy invalidates the queue and forgets the handle. Waiters blocked
// on the queue observe ErrQueueRemoved immediately.
func (a *Arena) Destroy(handle domain.QueueHandle) error {
	a.mu.Lock()
	q, ok := a.queues[handle]
	if ok {
		delete(a.queues, handle)
	}
	a.mu.Unlock()
	if !ok {
		return errors.ErrUnknownQueue
	}
	q.Destroy()
	return nil
}

// DestroyAll tears down every live queue; used on server shutdown.
func (a *Arena) DestroyAll() {
	a.mu.Lock()
	queues := a.queues
	a.queues = make(map[domain.QueueHandle]*Queue)
	a.mu.Unlock()
	for _, q := range queues {
		q.Destroy()
	}
}

// Depths snapshots the buffered envelope count per live handle.
func (a *Arena) Depths() map[domain.QueueHandle]int {
	a.mu.Lock()
	handles := make([]domain.QueueHandle, 0, len(a.queues))
	queues := make([]*Queue, 0, len(a.queues))
	for h, q := range a.queues {
		handles = append(handles, h)
		queues = append(queues, q)
	}
	a.mu.Unlock()

	depths := make(map[domain.QueueHandle]int, len(handles))
	for i, h := range handles {
		depths[h] = queues[i].Len()
	}
	return depths
}

// Open returns a handle-bound conduit. Operations on a handle whose
// queue is gone report ErrQueueRemoved, which is what a holder of a
// stale room handle must observe on next access.
func (a *Arena) Open(handle domain.QueueHandle) contract.Conduit {
	return &localConduit{arena: a, handle: handle}
}

type localConduit struct {
	arena  *Arena
	handle domain.QueueHandle
}

func (c *localConduit) resolve() (*Queue, error) {
	q, err := c.arena.Get(c.handle)
	if err != nil {
		return nil, errors.ErrQueueRemoved
	}
	return q, nil
}

func (c *localConduit) Send(ctx context.Context, env domain.Envelope) error {
	q, err := c.resolve()
	if err != nil {
		return err
	}
	return q.Send(ctx, env)
}

func (c *localConduit) TrySend(env domain.Envelope) error {
	q, err := c.resolve()
	if err != nil {
		return err
	}
	return q.TrySend(env)
}

func (c *localConduit) Receive(ctx context.Context, selector int64) (domain.Envelope, error) {
	q, err := c.resolve()
	if err != nil {
		return domain.Envelope{}, err
	}
	return q.Receive(ctx, selector)
}

func (c *localConduit) TryReceive(selector int64) (domain.Envelope, error) {
	q, err := c.resolve()
	if err != nil {
		return domain.Envelope{}, err
	}
	return q.TryReceive(selector)
}
