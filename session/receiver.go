package session

import (
	"context"
	"time"

	"salachat/errors"
)

const (
	// After delivering a message the queue is probed again quickly;
	// an idle queue is probed at the slower cadence.
	drainInterval = 50 * time.Millisecond
	idleInterval  = 100 * time.Millisecond
)

// receive polls the current room queue for envelopes addressed to this
// session. It never blocks on the queue: a destroyed queue (the room
// emptied or the member was moved) silently clears the room state and
// polling resumes once the session joins again.
func (s *Session) receive(ctx context.Context) {
	for {
		st := s.room.Load()
		if st == nil {
			if !sleep(ctx, idleInterval) {
				return
			}
			continue
		}

		env, err := st.conduit.TryReceive(int64(s.pid))
		switch err {
		case nil:
			s.show(env)
			if !sleep(ctx, drainInterval) {
				return
			}
		case errors.ErrNoMessage:
			if !sleep(ctx, idleInterval) {
				return
			}
		case errors.ErrQueueRemoved:
			s.room.CompareAndSwap(st, nil)
		default:
			s.log.Debug("Room poll failed", "error", err)
			if !sleep(ctx, idleInterval) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
