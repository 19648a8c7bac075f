package ipc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"salachat/domain"
	"salachat/errors"
)

func TestArena_First_Handle_Is_Control(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)

	handle, _ := arena.Create()
	req.Equal(domain.ControlQueue, handle)
}

func TestArena_Handles_Are_Never_Reused(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)

	first, _ := arena.Create()
	second, _ := arena.Create()
	req.NoError(arena.Destroy(second))

	// A queue created after a destroy gets a fresh handle.
	third, _ := arena.Create()
	req.NotEqual(second, third)
	req.Greater(third, second)
	req.Greater(second, first)
}

func TestArena_Get_Unknown_Handle(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)

	_, err := arena.Get(domain.QueueHandle(1234))
	req.ErrorIs(err, errors.ErrUnknownQueue)
}

func TestArena_Stale_Conduit_Reports_Removed(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)
	ctx := context.Background()

	handle, _ := arena.Create()
	conduit := arena.Open(handle)
	req.NoError(conduit.Send(ctx, domain.Envelope{Tag: 1, Text: "hola"}))

	// When the queue behind the handle is destroyed
	req.NoError(arena.Destroy(handle))

	// Then the stale conduit observes invalidation on next access
	req.ErrorIs(conduit.Send(ctx, domain.Envelope{Tag: 1}), errors.ErrQueueRemoved)
	_, err := conduit.TryReceive(1)
	req.ErrorIs(err, errors.ErrQueueRemoved)
}

func TestArena_DestroyAll_Wakes_Everything(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)

	_, control := arena.Create()
	_, room := arena.Create()

	errs := make(chan error, 2)
	go func() {
		_, err := control.Receive(context.Background(), 1)
		errs <- err
	}()
	go func() {
		_, err := room.Receive(context.Background(), 1)
		errs <- err
	}()

	arena.DestroyAll()

	for i := 0; i < 2; i++ {
		req.ErrorIs(<-errs, errors.ErrQueueRemoved)
	}
	req.Empty(arena.Depths())
}

func TestArena_Depths(t *testing.T) {
	req := require.New(t)
	arena := NewArena(8)
	ctx := context.Background()

	handle, q := arena.Create()
	req.NoError(q.Send(ctx, domain.Envelope{Tag: 1}))
	req.NoError(q.Send(ctx, domain.Envelope{Tag: 2}))

	depths := arena.Depths()
	req.Len(depths, 1)
	req.Equal(2, depths[handle])
}
