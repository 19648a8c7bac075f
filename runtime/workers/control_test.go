package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
	"salachat/ipc"
	"salachat/mocks"
)

type controlFixture struct {
	arena   *ipc.Arena
	control contract.Conduit
	spawned []domain.QueueHandle
	cancel  context.CancelFunc
	done    chan struct{}
}

// newControlFixture runs a ControlWorker over a real in-process arena
// with a mocked registry, and tears everything down with the test.
func newControlFixture(t *testing.T, registry contract.IRegistry) *controlFixture {
	t.Helper()

	arena := ipc.NewArena(32)
	handle, _ := arena.Create()
	require.Equal(t, domain.ControlQueue, handle)

	f := &controlFixture{
		arena:   arena,
		control: arena.Open(handle),
		done:    make(chan struct{}),
	}
	spawn := func(roomIndex int, queue domain.QueueHandle) {
		f.spawned = append(f.spawned, queue)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	worker := NewControlWorker(testLogger(), registry, arena, f.control, spawn)
	go func() {
		_ = worker.Run(ctx)
		close(f.done)
	}()

	t.Cleanup(func() {
		arena.DestroyAll()
		cancel()
		select {
		case <-f.done:
		case <-time.After(time.Second):
			t.Fatal("control worker did not stop")
		}
	})
	return f
}

func (f *controlFixture) request(t *testing.T, env domain.Envelope) {
	t.Helper()
	env.Tag = domain.RequestSelector
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.control.Send(ctx, env))
}

func (f *controlFixture) awaitReply(t *testing.T, pid domain.PID) domain.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, err := f.control.Receive(ctx, int64(pid))
	require.NoError(t, err)
	return env
}

func TestControlWorker_Join_Replies_And_Notifies(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	fixtureReady := make(chan *controlFixture, 1)
	registry.EXPECT().
		Join(domain.PID(7), "ana", "general").
		DoAndReturn(func(pid domain.PID, sender, room string) (domain.JoinOutcome, error) {
			f := <-fixtureReady
			fixtureReady <- f
			roomQueue, _ := f.arena.Create()
			return domain.JoinOutcome{
				RoomIndex: 0,
				RoomName:  "general",
				Queue:     roomQueue,
				Created:   false,
				Others:    []domain.Member{{PID: 9, Name: "benito"}},
			}, nil
		})

	f := newControlFixture(t, registry)
	fixtureReady <- f

	// When a valid join request arrives
	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdJoin, Sender: "ana", Room: "general"})

	// Then the requester gets the room handle back
	reply := f.awaitReply(t, 7)
	req.Equal(domain.RespInfo, reply.Code)
	req.Equal("Te has unido a la sala: general", reply.Text)
	req.NotEqual(domain.NoQueue, reply.RoomQueue)

	// And the other member got the join notice on the room queue
	roomConduit := f.arena.Open(reply.RoomQueue)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	notice, err := roomConduit.Receive(ctx, 9)
	req.NoError(err)
	req.Equal(domain.RespInfo, notice.Code)
	req.Equal("Servidor", notice.Sender)
	req.Equal("ana se ha unido a la sala.", notice.Text)
}

func TestControlWorker_Join_Spawns_Broadcaster_On_Creation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	fixtureReady := make(chan *controlFixture, 1)
	registry.EXPECT().
		Join(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(pid domain.PID, sender, room string) (domain.JoinOutcome, error) {
			f := <-fixtureReady
			fixtureReady <- f
			roomQueue, _ := f.arena.Create()
			return domain.JoinOutcome{RoomName: room, Queue: roomQueue, Created: true}, nil
		})

	f := newControlFixture(t, registry)
	fixtureReady <- f

	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdJoin, Sender: "ana", Room: "nueva"})
	reply := f.awaitReply(t, 7)

	req.Equal(domain.RespInfo, reply.Code)
	req.Equal([]domain.QueueHandle{reply.RoomQueue}, f.spawned)
}

func TestControlWorker_Join_Requires_Room_Name(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	f := newControlFixture(t, registry)

	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdJoin, Sender: "ana"})
	reply := f.awaitReply(t, 7)

	req.Equal(domain.RespError, reply.Code)
	req.Equal("Debes especificar una sala.", reply.Text)
}

func TestControlWorker_Join_Failure_Replies(t *testing.T) {
	tests := []struct {
		name     string
		joinErr  error
		expected string
	}{
		{
			name:     "Room table exhausted",
			joinErr:  errors.ErrRoomsExhausted,
			expected: "No se pueden crear más salas.",
		},
		{
			name:     "Room full",
			joinErr:  errors.ErrRoomFull,
			expected: "La sala está llena.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			registry := mocks.NewMockIRegistry(ctrl)
			registry.EXPECT().
				Join(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(domain.JoinOutcome{}, tt.joinErr)

			f := newControlFixture(t, registry)

			f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdJoin, Sender: "ana", Room: "general"})
			reply := f.awaitReply(t, 7)

			req.Equal(domain.RespError, reply.Code)
			req.Equal(tt.expected, reply.Text)
		})
	}
}

func TestControlWorker_Leave_Not_In_Room(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().Leave(domain.PID(7)).Return(domain.LeaveOutcome{}, errors.ErrNotInRoom)

	f := newControlFixture(t, registry)

	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdLeave, Sender: "ana"})
	reply := f.awaitReply(t, 7)

	req.Equal(domain.RespInfo, reply.Code)
	req.Equal("No estás en ninguna sala.", reply.Text)
}

func TestControlWorker_Leave_Notifies_Remaining(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	fixtureReady := make(chan *controlFixture, 1)
	registry.EXPECT().
		Leave(domain.PID(7)).
		DoAndReturn(func(pid domain.PID) (domain.LeaveOutcome, error) {
			f := <-fixtureReady
			fixtureReady <- f
			roomQueue, _ := f.arena.Create()
			return domain.LeaveOutcome{
				RoomName:  "general",
				Queue:     roomQueue,
				Remaining: []domain.Member{{PID: 9, Name: "benito"}},
			}, nil
		})

	f := newControlFixture(t, registry)
	fixtureReady <- f

	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdLeave, Sender: "ana"})
	reply := f.awaitReply(t, 7)
	req.Equal(domain.RespInfo, reply.Code)
	req.Equal("Has salido de la sala.", reply.Text)

	depths := f.arena.Depths()
	var roomQueue domain.QueueHandle
	for h := range depths {
		if h != domain.ControlQueue {
			roomQueue = h
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	notice, err := f.arena.Open(roomQueue).Receive(ctx, 9)
	req.NoError(err)
	req.Equal("ana ha salido de la sala.", notice.Text)
}

func TestControlWorker_ListRooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	gomock.InOrder(
		registry.EXPECT().Rooms().Return(nil),
		registry.EXPECT().Rooms().Return([]domain.RoomView{
			{Name: "general", Members: []domain.Member{{PID: 7, Name: "ana"}, {PID: 9, Name: "benito"}}},
			{Name: "deportes", Members: []domain.Member{{PID: 11, Name: "carla"}}},
		}),
	)

	f := newControlFixture(t, registry)

	// When no room exists
	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdListRooms})
	reply := f.awaitReply(t, 7)
	req.Equal(domain.RespInfo, reply.Code)
	req.Equal("No hay salas disponibles.", reply.Text)

	// When rooms exist, each one is listed with its member count
	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdListRooms})
	reply = f.awaitReply(t, 7)
	req.Equal(domain.RespRooms, reply.Code)
	req.Equal("Salas:\n- general (2 usuarios)\n- deportes (1 usuarios)\n", reply.Text)
}

func TestControlWorker_ListUsers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	gomock.InOrder(
		registry.EXPECT().RoomOf(domain.PID(7)).Return(domain.RoomView{}, false),
		registry.EXPECT().RoomOf(domain.PID(7)).Return(domain.RoomView{
			Name:    "general",
			Members: []domain.Member{{PID: 7, Name: "ana"}, {PID: 9, Name: "benito"}},
		}, true),
	)

	f := newControlFixture(t, registry)

	// When the requester is not in a room
	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdListUsers})
	reply := f.awaitReply(t, 7)
	req.Equal(domain.RespError, reply.Code)
	req.Equal("Únete a una sala para ver sus usuarios.", reply.Text)

	// When the requester is in a room
	f.request(t, domain.Envelope{Origin: 7, Code: domain.CmdListUsers})
	reply = f.awaitReply(t, 7)
	req.Equal(domain.RespUsers, reply.Code)
	req.Equal("Usuarios en general:\n- ana\n- benito\n", reply.Text)
}

func TestControlWorker_Unknown_Command(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	f := newControlFixture(t, registry)

	f.request(t, domain.Envelope{Origin: 7, Code: domain.Code(99)})
	reply := f.awaitReply(t, 7)

	req.Equal(domain.RespError, reply.Code)
	req.Equal("Comando no reconocido.", reply.Text)
}

func TestControlWorker_Invalid_Pid_Gets_No_Reply(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	f := newControlFixture(t, registry)

	// Given a malformed request with a non-positive origin
	f.request(t, domain.Envelope{Origin: 0, Code: domain.Code(99)})

	// When a valid request follows
	f.request(t, domain.Envelope{Origin: 7, Code: domain.Code(99)})
	reply := f.awaitReply(t, 7)
	req.Equal(domain.RespError, reply.Code)

	// Then the malformed one produced nothing: the control queue is empty
	req.Zero(f.arena.Depths()[domain.ControlQueue])
}
