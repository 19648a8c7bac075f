package workers

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

var _ contract.Worker = (*BroadcastWorker)(nil)

// BroadcastWorker drains one room queue for chat sends and fans each
// one out to every current member except the sender, addressed per
// recipient on the same queue. It runs for exactly as long as the room
// is active: a destroyed queue is its orderly exit signal, and it never
// destroys the queue itself.
type BroadcastWorker struct {
	log       *slog.Logger
	registry  contract.IRegistry
	roomIndex int
	queue     contract.Conduit
	censor    contract.Censor
}

func NewBroadcastWorker(log *slog.Logger, registry contract.IRegistry,
	opener contract.Opener, roomIndex int, handle domain.QueueHandle,
	censor contract.Censor) *BroadcastWorker {
	return &BroadcastWorker{
		log:       log,
		registry:  registry,
		roomIndex: roomIndex,
		queue:     opener.Open(handle),
		censor:    censor,
	}
}

func (w *BroadcastWorker) Run(ctx context.Context) error {
	for {
		env, err := w.queue.Receive(ctx, domain.RequestSelector)
		if err != nil {
			if err == errors.ErrQueueRemoved {
				w.log.Debug("Room queue destroyed, broadcaster exiting", "room_index", w.roomIndex)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if env.Code != domain.CmdSend {
			// Only chat sends belong on a room queue.
			continue
		}

		view, ok := w.registry.Room(w.roomIndex)
		if !ok {
			continue
		}

		w.fanout(view, env)
	}
}

func (w *BroadcastWorker) fanout(view domain.RoomView, env domain.Envelope) {
	text := env.Text
	if w.censor != nil {
		masked, found := w.censor.Censor(text)
		if len(found) > 0 {
			info := whatlanggo.Detect(text)
			w.log.Warn("Mensaje censurado",
				"room", view.Name,
				"sender", env.Sender,
				"words", len(found),
				"lang", info.Lang.Iso6391())
			text = masked
		}
	}

	out := domain.Envelope{
		Code:      domain.RespText,
		Room:      view.Name,
		Sender:    domain.Truncate(env.Sender, domain.MaxName),
		Text:      domain.Truncate(text, domain.MaxText),
		RoomQueue: domain.NoQueue,
	}
	for _, m := range view.Members {
		if m.PID == env.Origin {
			continue
		}
		out.Tag = int64(m.PID)
		if err := w.queue.TrySend(out); err != nil {
			// Best-effort delivery: a slow reader loses the envelope.
			w.log.Warn("Broadcast dropped", "pid", m.PID, "room", view.Name, "error", err)
			if err == errors.ErrQueueRemoved {
				return
			}
		}
	}
}
