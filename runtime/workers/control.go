package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

var _ contract.Worker = (*ControlWorker)(nil)

// SpawnBroadcaster starts the fan-out worker for a freshly created room.
type SpawnBroadcaster func(roomIndex int, queue domain.QueueHandle)

// ControlWorker is the single consumer of the control queue. Requests
// are processed strictly in arrival order, and every request gets
// exactly one addressed reply, except when the origin PID is invalid,
// in which case no reply is attempted.
type ControlWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	opener   contract.Opener
	control  contract.Conduit
	spawn    SpawnBroadcaster
}

func NewControlWorker(log *slog.Logger, registry contract.IRegistry,
	opener contract.Opener, control contract.Conduit, spawn SpawnBroadcaster) *ControlWorker {
	return &ControlWorker{log: log, registry: registry, opener: opener, control: control, spawn: spawn}
}

func (w *ControlWorker) Run(ctx context.Context) error {
	for {
		env, err := w.control.Receive(ctx, domain.RequestSelector)
		if err != nil {
			if err == errors.ErrQueueRemoved {
				// Control queue destroyed: orderly server shutdown.
				w.log.Debug("Control queue removed, stopping")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch env.Code {
		case domain.CmdJoin:
			w.handleJoin(ctx, env)
		case domain.CmdLeave, domain.CmdQuit:
			w.handleLeave(ctx, env)
		case domain.CmdListRooms:
			w.handleListRooms(ctx, env)
		case domain.CmdListUsers:
			w.handleListUsers(ctx, env)
		default:
			w.reply(ctx, env.Origin, domain.RespError, "", "Comando no reconocido.", domain.NoQueue)
		}
	}
}

func (w *ControlWorker) handleJoin(ctx context.Context, env domain.Envelope) {
	if env.Room == "" {
		w.reply(ctx, env.Origin, domain.RespError, "", "Debes especificar una sala.", domain.NoQueue)
		return
	}

	out, err := w.registry.Join(env.Origin, env.Sender, env.Room)
	switch err {
	case nil:
	case errors.ErrRoomsExhausted:
		w.reply(ctx, env.Origin, domain.RespError, "", "No se pueden crear más salas.", domain.NoQueue)
		return
	case errors.ErrRoomFull:
		w.reply(ctx, env.Origin, domain.RespError, env.Room, "La sala está llena.", domain.NoQueue)
		return
	default:
		w.reply(ctx, env.Origin, domain.RespError, "", "Comando no reconocido.", domain.NoQueue)
		return
	}

	if out.Created {
		w.spawn(out.RoomIndex, out.Queue)
	}

	joined := fmt.Sprintf("Te has unido a la sala: %s", out.RoomName)
	w.reply(ctx, env.Origin, domain.RespInfo, out.RoomName, joined, out.Queue)

	if !out.AlreadyMember {
		notice := fmt.Sprintf("%s se ha unido a la sala.", env.Sender)
		w.notify(out.Queue, out.Others, out.RoomName, notice)
	}

	w.log.Info("Usuario se unió a la sala", "user", env.Sender, "pid", env.Origin, "room", out.RoomName)
}

func (w *ControlWorker) handleLeave(ctx context.Context, env domain.Envelope) {
	out, err := w.registry.Leave(env.Origin)
	if err != nil {
		w.reply(ctx, env.Origin, domain.RespInfo, "", "No estás en ninguna sala.", domain.NoQueue)
		return
	}

	w.reply(ctx, env.Origin, domain.RespInfo, out.RoomName, "Has salido de la sala.", domain.NoQueue)

	if !out.Emptied {
		notice := fmt.Sprintf("%s ha salido de la sala.", env.Sender)
		w.notify(out.Queue, out.Remaining, out.RoomName, notice)
	}

	w.log.Info("Usuario salió de la sala", "user", env.Sender, "pid", env.Origin, "room", out.RoomName)
}

func (w *ControlWorker) handleListRooms(ctx context.Context, env domain.Envelope) {
	rooms := w.registry.Rooms()
	if len(rooms) == 0 {
		w.reply(ctx, env.Origin, domain.RespInfo, "", "No hay salas disponibles.", domain.NoQueue)
		return
	}

	lines := lo.Map(rooms, func(v domain.RoomView, _ int) string {
		return fmt.Sprintf("- %s (%d usuarios)", v.Name, len(v.Members))
	})
	listing := "Salas:\n" + strings.Join(lines, "\n") + "\n"
	w.reply(ctx, env.Origin, domain.RespRooms, "", listing, domain.NoQueue)
}

func (w *ControlWorker) handleListUsers(ctx context.Context, env domain.Envelope) {
	view, ok := w.registry.RoomOf(env.Origin)
	if !ok {
		w.reply(ctx, env.Origin, domain.RespError, "", "Únete a una sala para ver sus usuarios.", domain.NoQueue)
		return
	}

	lines := lo.Map(view.Members, func(m domain.Member, _ int) string {
		return "- " + m.Name
	})
	listing := fmt.Sprintf("Usuarios en %s:\n", view.Name) + strings.Join(lines, "\n") + "\n"
	w.reply(ctx, env.Origin, domain.RespUsers, view.Name, listing, domain.NoQueue)
}

// reply sends the single addressed response for a request. Requests
// carrying a non-positive PID cannot be answered and are dropped.
func (w *ControlWorker) reply(ctx context.Context, pid domain.PID, code domain.Code,
	room, text string, queue domain.QueueHandle) {
	if pid <= 0 {
		w.log.Debug("Discarding reply for invalid pid", "pid", pid)
		return
	}
	env := domain.Envelope{
		Tag:       int64(pid),
		Code:      code,
		Room:      domain.Truncate(room, domain.MaxName),
		Text:      domain.Truncate(text, domain.MaxText),
		RoomQueue: queue,
	}
	if err := w.control.Send(ctx, env); err != nil {
		w.log.Error("Failed to send control reply", "pid", pid, "error", err)
	}
}

// notify fans a server notice out to the given members on their room
// queue. Delivery is best-effort: a full or vanished recipient slot is
// logged and skipped.
func (w *ControlWorker) notify(queue domain.QueueHandle, members []domain.Member, room, text string) {
	conduit := w.opener.Open(queue)
	env := domain.Envelope{
		Code:      domain.RespInfo,
		Room:      domain.Truncate(room, domain.MaxName),
		Sender:    "Servidor",
		Text:      domain.Truncate(text, domain.MaxText),
		RoomQueue: domain.NoQueue,
	}
	for _, m := range members {
		env.Tag = int64(m.PID)
		if err := conduit.TrySend(env); err != nil {
			w.log.Warn("Notice dropped", "pid", m.PID, "room", room, "error", err)
			if err == errors.ErrQueueRemoved {
				return
			}
		}
	}
}
