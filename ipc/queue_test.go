package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"salachat/domain"
	"salachat/errors"
)

func TestQueue_Receive_By_Selector(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)
	ctx := context.Background()

	// Given two envelopes addressed to different recipients
	req.NoError(q.Send(ctx, domain.Envelope{Tag: 42, Text: "for 42"}))
	req.NoError(q.Send(ctx, domain.Envelope{Tag: 7, Text: "for 7"}))

	// When each recipient pulls its own selector
	env7, err := q.Receive(ctx, 7)
	req.NoError(err)
	env42, err := q.Receive(ctx, 42)
	req.NoError(err)

	// Then each gets only its addressed envelope
	req.Equal("for 7", env7.Text)
	req.Equal("for 42", env42.Text)
}

func TestQueue_Receive_Fifo_Within_Selector(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)
	ctx := context.Background()

	req.NoError(q.Send(ctx, domain.Envelope{Tag: 1, Text: "first"}))
	req.NoError(q.Send(ctx, domain.Envelope{Tag: 1, Text: "second"}))

	env, err := q.Receive(ctx, 1)
	req.NoError(err)
	req.Equal("first", env.Text)

	env, err = q.Receive(ctx, 1)
	req.NoError(err)
	req.Equal("second", env.Text)
}

func TestQueue_Receive_Blocks_Until_Send(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)
	ctx := context.Background()

	got := make(chan domain.Envelope, 1)
	go func() {
		env, err := q.Receive(ctx, 99)
		if err == nil {
			got <- env
		}
	}()

	// The receiver is parked; nothing matches yet.
	select {
	case <-got:
		req.Fail("Receive should block until a matching envelope arrives")
	case <-time.After(50 * time.Millisecond):
	}

	req.NoError(q.Send(ctx, domain.Envelope{Tag: 99, Text: "hola"}))

	select {
	case env := <-got:
		req.Equal("hola", env.Text)
	case <-time.After(time.Second):
		req.Fail("Receive should have been woken by Send")
	}
}

func TestQueue_TryReceive_NoMessage(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)

	_, err := q.TryReceive(5)
	req.ErrorIs(err, errors.ErrNoMessage)
}

func TestQueue_Destroy_Wakes_Blocked_Receiver(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background(), 99)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Destroy()

	select {
	case err := <-errc:
		req.ErrorIs(err, errors.ErrQueueRemoved)
	case <-time.After(time.Second):
		req.Fail("Destroy should wake blocked receivers")
	}

	// And every later operation keeps failing the same way.
	req.ErrorIs(q.Send(context.Background(), domain.Envelope{Tag: 1}), errors.ErrQueueRemoved)
	_, err := q.TryReceive(1)
	req.ErrorIs(err, errors.ErrQueueRemoved)
}

func TestQueue_Send_Blocks_When_Full(t *testing.T) {
	req := require.New(t)
	q := NewQueue(1)
	ctx := context.Background()

	req.NoError(q.Send(ctx, domain.Envelope{Tag: 1, Text: "a"}))
	req.ErrorIs(q.TrySend(domain.Envelope{Tag: 1, Text: "b"}), errors.ErrQueueFull)

	sent := make(chan error, 1)
	go func() {
		sent <- q.Send(ctx, domain.Envelope{Tag: 1, Text: "b"})
	}()

	select {
	case <-sent:
		req.Fail("Send should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one envelope admits the blocked producer.
	_, err := q.Receive(ctx, 1)
	req.NoError(err)

	select {
	case err := <-sent:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("Send should have resumed after space freed up")
	}

	env, err := q.Receive(ctx, 1)
	req.NoError(err)
	req.Equal("b", env.Text)
}

func TestQueue_Receive_Honors_Context(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := q.Receive(ctx, 99)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("Receive should observe context cancellation")
	}
}

func TestQueue_Selector_Zero_Matches_Any(t *testing.T) {
	req := require.New(t)
	q := NewQueue(8)
	ctx := context.Background()

	req.NoError(q.Send(ctx, domain.Envelope{Tag: 33, Text: "any"}))

	env, err := q.Receive(ctx, 0)
	req.NoError(err)
	req.Equal("any", env.Text)
}
