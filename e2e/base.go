package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"salachat/contract"
	"salachat/domain"
	"salachat/infrastructure/ws"
	"salachat/ipc"
	"salachat/moderation"
	"salachat/runtime"
	"salachat/runtime/workers"
)

const stepTimeout = 5 * time.Second

// BaseChatSuite drives the broker the way real client processes do:
// every actor holds its own gateway connection and speaks only in
// envelopes.
type BaseChatSuite struct {
	suite.Suite
	Config Config

	log        *slog.Logger
	broker     *runtime.Broker
	supervisor *workers.Supervisor
	srv        *httptest.Server
	url        string
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromLevel(slog.LevelWarn)
}

// SetupTest builds a fresh broker plus gateway per test, unless the
// suite targets an external one via E2E_GATEWAY_URL.
func (s *BaseChatSuite) SetupTest() {
	if s.Config.GatewayURL != "" {
		s.url = s.Config.GatewayURL
		return
	}

	arena := ipc.NewArena(64)
	registry := runtime.NewRegistry(s.log, arena)
	s.supervisor = workers.NewSupervisor(s.log, 100*time.Millisecond)

	words, err := runtime.NewCensoredLoader().LoadAll("censored")
	s.Require().NoError(err)
	censor, err := moderation.NewModerator(words.Words, '*')
	s.Require().NoError(err)

	s.broker = runtime.NewBroker(s.log, arena, registry, s.supervisor, censor, 0)
	s.Require().NoError(s.broker.Start(context.Background()))

	gateway := ws.NewGateway(s.log, arena, "unused")
	s.srv = httptest.NewServer(gateway.Handler())
	s.url = "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ipc"
}

func (s *BaseChatSuite) TearDownTest() {
	if s.srv != nil {
		s.srv.Close()
		s.srv = nil
	}
	if s.broker != nil {
		s.broker.Stop()
		s.supervisor.Wait()
		s.broker = nil
	}
}

// Header prints a colorized step marker in the test logs.
func (s *BaseChatSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Actor is one simulated chat process: a pid, a display name and its
// own gateway connection.
type Actor struct {
	s       *BaseChatSuite
	Name    string
	PID     domain.PID
	client  *ws.Client
	control contract.Conduit
	room    contract.Conduit
}

// Connect dials the gateway for a new actor and closes it with the test.
func (s *BaseChatSuite) Connect(name string, pid domain.PID) *Actor {
	s.Header(fmt.Sprintf("%s connects (pid %d)", name, pid))

	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	client, err := ws.Dial(ctx, s.url, s.log)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = client.Close() })

	return &Actor{
		s:       s,
		Name:    name,
		PID:     pid,
		client:  client,
		control: client.Open(domain.ControlQueue),
	}
}

// Request issues one control command and returns its single reply.
func (a *Actor) Request(env domain.Envelope) domain.Envelope {
	env.Tag = domain.RequestSelector
	env.Origin = a.PID
	env.Sender = a.Name
	a.debug("REQUEST", env)

	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	a.s.Require().NoError(a.control.Send(ctx, env))

	reply, err := a.control.Receive(ctx, int64(a.PID))
	a.s.Require().NoError(err)
	a.debug("REPLY", reply)
	return reply
}

// Join enters a room and binds the actor to the returned room queue.
func (a *Actor) Join(room string) domain.Envelope {
	reply := a.Request(domain.Envelope{Code: domain.CmdJoin, Room: room})
	if reply.Code == domain.RespInfo && reply.RoomQueue != domain.NoQueue {
		a.room = a.client.Open(reply.RoomQueue)
	}
	return reply
}

// Say publishes chat text on the actor's room queue.
func (a *Actor) Say(text string) {
	a.s.Require().NotNil(a.room, "%s is not in a room", a.Name)
	env := domain.Envelope{
		Tag:    domain.RequestSelector,
		Origin: a.PID,
		Code:   domain.CmdSend,
		Sender: a.Name,
		Text:   text,
	}
	a.debug("SAY", env)
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	a.s.Require().NoError(a.room.Send(ctx, env))
}

// AwaitRoom blocks until the next envelope addressed to this actor
// arrives on its room queue.
func (a *Actor) AwaitRoom() domain.Envelope {
	a.s.Require().NotNil(a.room, "%s is not in a room", a.Name)
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	env, err := a.room.Receive(ctx, int64(a.PID))
	a.s.Require().NoError(err)
	a.debug("RECEIVED", env)
	return env
}

// TryRoom polls the room queue once without blocking.
func (a *Actor) TryRoom() (domain.Envelope, error) {
	a.s.Require().NotNil(a.room, "%s is not in a room", a.Name)
	return a.room.TryReceive(int64(a.PID))
}

func (a *Actor) debug(kind string, env domain.Envelope) {
	if !a.s.Config.DebugJSON {
		return
	}
	b, _ := json.MarshalIndent(env, "", "  ")
	a.s.T().Logf("%s %s:\n%s", a.Name, kind, b)
}
