// Package session implements the interactive client: a command loop
// over stdin, blocking request/reply on the control queue, and a
// background receiver draining the current room queue.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

type roomState struct {
	conduit contract.Conduit
}

type Session struct {
	log      *slog.Logger
	pid      domain.PID
	name     string
	opener   contract.Opener
	control  contract.Conduit
	render   *Renderer
	in       io.Reader
	room     atomic.Pointer[roomState]
	validate *validator.Validate
}

// NewSession validates the display name and binds the session to the
// control queue. The pid is the session's reply address: every answer
// and room message for this client arrives tagged with it.
func NewSession(log *slog.Logger, pid domain.PID, name string,
	opener contract.Opener, render *Renderer, in io.Reader) (*Session, error) {
	validate := validator.New()
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", domain.MaxName)); err != nil {
		return nil, fmt.Errorf("invalid display name %q: %w", name, err)
	}
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	return &Session{
		log:      log,
		pid:      pid,
		name:     name,
		opener:   opener,
		control:  opener.Open(domain.ControlQueue),
		render:   render,
		in:       in,
		validate: validate,
	}, nil
}

// Run reads commands until EOF or /quit. The background receiver stops
// with the returned context.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.receive(ctx)

	scanner := bufio.NewScanner(s.in)
	s.render.Prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := s.handleLine(ctx, strings.TrimSpace(scanner.Text()))
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		s.render.Prompt()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	// EOF on input behaves like /quit so the server forgets the member.
	_, _ = s.request(ctx, domain.Envelope{Code: domain.CmdQuit})
	return nil
}

func (s *Session) handleLine(ctx context.Context, line string) (quit bool, err error) {
	switch {
	case line == "":
		return false, nil
	case line == "/join" || strings.HasPrefix(line, "/join "):
		return false, s.join(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/join")))
	case line == "/leave":
		// The room binding outlives the request: it is dropped only
		// once the server has confirmed the leave.
		if err := s.roundTrip(ctx, domain.Envelope{Code: domain.CmdLeave}); err != nil {
			return false, err
		}
		s.room.Store(nil)
		return false, nil
	case line == "/list":
		return false, s.roundTrip(ctx, domain.Envelope{Code: domain.CmdListRooms})
	case line == "/users":
		return false, s.roundTrip(ctx, domain.Envelope{Code: domain.CmdListUsers})
	case line == "/quit":
		s.room.Store(nil)
		_, err := s.request(ctx, domain.Envelope{Code: domain.CmdQuit})
		if err != nil && err != errors.ErrQueueRemoved {
			return true, err
		}
		return true, nil
	case line == "/help":
		s.render.Help()
		return false, nil
	case strings.HasPrefix(line, "/"):
		s.render.Error("Comando no reconocido. Usa /help.")
		return false, nil
	default:
		s.say(line)
		return false, nil
	}
}

// join asks the control plane for a room and, on success, points the
// receiver at the returned room queue.
func (s *Session) join(ctx context.Context, room string) error {
	// Room names longer than the limit are truncated by request().
	if err := s.validate.Var(room, "required"); err != nil {
		s.render.Error("Debes especificar una sala.")
		return nil
	}

	reply, err := s.request(ctx, domain.Envelope{Code: domain.CmdJoin, Room: room})
	if err != nil {
		return err
	}
	if reply.Code == domain.RespInfo && reply.RoomQueue != domain.NoQueue {
		s.room.Store(&roomState{conduit: s.opener.Open(reply.RoomQueue)})
	}
	s.show(reply)
	return nil
}

// say publishes free text to the current room. Messages are dropped
// with a local error when the session is not in a room.
func (s *Session) say(text string) {
	st := s.room.Load()
	if st == nil {
		s.render.Error("No estás en ninguna sala. Usa '/join <sala>'.")
		return
	}

	env := domain.Envelope{
		Tag:       domain.RequestSelector,
		Origin:    s.pid,
		Code:      domain.CmdSend,
		Sender:    domain.Truncate(s.name, domain.MaxName),
		Text:      domain.Truncate(text, domain.MaxText),
		RoomQueue: domain.NoQueue,
	}
	if err := st.conduit.TrySend(env); err != nil {
		if err == errors.ErrQueueRemoved {
			// The room vanished underneath us; same reset the receiver does.
			s.room.CompareAndSwap(st, nil)
			s.render.Error("No estás en ninguna sala. Usa '/join <sala>'.")
			return
		}
		s.log.Warn("Message dropped", "error", err)
	}
}

// roundTrip issues a request and renders whatever comes back.
func (s *Session) roundTrip(ctx context.Context, env domain.Envelope) error {
	reply, err := s.request(ctx, env)
	if err != nil {
		return err
	}
	s.show(reply)
	return nil
}

// request sends one control command and blocks for the single reply
// addressed to this pid, however long the server takes. Only the
// session context or a removed control queue releases it early.
func (s *Session) request(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	env.Tag = domain.RequestSelector
	env.Origin = s.pid
	env.Sender = domain.Truncate(s.name, domain.MaxName)
	env.Room = domain.Truncate(env.Room, domain.MaxName)

	if err := s.control.Send(ctx, env); err != nil {
		return domain.Envelope{}, err
	}
	return s.control.Receive(ctx, int64(s.pid))
}

func (s *Session) show(env domain.Envelope) {
	switch env.Code {
	case domain.RespRooms, domain.RespUsers:
		s.render.Listing(env.Text)
	case domain.RespError:
		s.render.Error(env.Text)
	case domain.RespText:
		s.render.Text(env.Room, env.Sender, env.Text)
	default:
		s.render.Info(env.Text)
	}
}
