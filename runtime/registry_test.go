package runtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"salachat/domain"
	"salachat/errors"
	"salachat/ipc"
)

func newTestRegistry() *Registry {
	return NewRegistry(testLogger(), ipc.NewArena(16))
}

func TestRegistry_Join_Creates_Room_Once(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()
	room := uuid.NewString()[:8]

	// Given no room exists
	req.Empty(reg.Rooms())

	// When the first member joins
	first, err := reg.Join(1, "ana", room)
	req.NoError(err)
	req.True(first.Created)
	req.Empty(first.Others)

	// Then a second join reuses the same room and queue handle
	second, err := reg.Join(2, "benito", room)
	req.NoError(err)
	req.False(second.Created)
	req.Equal(first.Queue, second.Queue)
	req.Len(second.Others, 1)
	req.Equal(domain.PID(1), second.Others[0].PID)

	req.Len(reg.Rooms(), 1)
}

func TestRegistry_Member_In_At_Most_One_Room(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join(1, "ana", "general")
	req.NoError(err)
	_, err = reg.Join(1, "ana", "deportes")
	req.NoError(err)

	// The pid moved: it must appear only in the new room.
	view, ok := reg.RoomOf(1)
	req.True(ok)
	req.Equal("deportes", view.Name)

	// And the emptied previous room was torn down.
	req.Len(reg.Rooms(), 1)
	req.Equal("deportes", reg.Rooms()[0].Name)
}

func TestRegistry_Rejoin_Same_Room_Refreshes_Name(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join(1, "ana", "general")
	req.NoError(err)
	out, err := reg.Join(1, "ana maria", "general")
	req.NoError(err)

	req.True(out.AlreadyMember)
	view, _ := reg.Room(out.RoomIndex)
	req.Len(view.Members, 1)
	req.Equal("ana maria", view.Members[0].Name)
}

func TestRegistry_Room_Capacity(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	for i := 0; i < domain.MaxMembers; i++ {
		_, err := reg.Join(domain.PID(i+1), fmt.Sprintf("user-%d", i), "llena")
		req.NoError(err)
	}

	_, err := reg.Join(domain.PID(1000), "tarde", "llena")
	req.ErrorIs(err, errors.ErrRoomFull)

	view, _ := reg.RoomOf(1)
	req.Len(view.Members, domain.MaxMembers)
}

func TestRegistry_Full_Room_Keeps_Previous_Membership(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	// Given a full target room and a requester already elsewhere
	for i := 0; i < domain.MaxMembers; i++ {
		_, err := reg.Join(domain.PID(i+1), fmt.Sprintf("user-%d", i), "llena")
		req.NoError(err)
	}
	_, err := reg.Join(domain.PID(500), "ana", "previa")
	req.NoError(err)

	// When the join into the full room is refused
	_, err = reg.Join(domain.PID(500), "ana", "llena")
	req.ErrorIs(err, errors.ErrRoomFull)

	// Then the requester did not fall out of its previous room
	view, ok := reg.RoomOf(500)
	req.True(ok)
	req.Equal("previa", view.Name)
}

func TestRegistry_Registry_Capacity(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	for i := 0; i < domain.MaxRooms; i++ {
		_, err := reg.Join(domain.PID(i+1), "fundador", fmt.Sprintf("sala-%d", i))
		req.NoError(err)
	}

	_, err := reg.Join(domain.PID(999), "tarde", "sala-extra")
	req.ErrorIs(err, errors.ErrRoomsExhausted)
	req.Len(reg.Rooms(), domain.MaxRooms)
}

func TestRegistry_Leave_Last_Member_Tears_Down_Once(t *testing.T) {
	req := require.New(t)
	arena := ipc.NewArena(16)
	reg := NewRegistry(testLogger(), arena)

	joined, err := reg.Join(1, "ana", "general")
	req.NoError(err)

	out, err := reg.Leave(1)
	req.NoError(err)
	req.True(out.Emptied)
	req.Empty(reg.Rooms())

	// The room queue is gone from the arena.
	_, err = arena.Get(joined.Queue)
	req.ErrorIs(err, errors.ErrUnknownQueue)

	// A fresh room under the same name gets a new queue handle.
	again, err := reg.Join(2, "benito", "general")
	req.NoError(err)
	req.True(again.Created)
	req.NotEqual(joined.Queue, again.Queue)
}

func TestRegistry_Leave_Not_A_Member(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Leave(42)
	req.ErrorIs(err, errors.ErrNotInRoom)
}

func TestRegistry_Leave_Reports_Remaining_Members(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join(1, "ana", "general")
	req.NoError(err)
	_, err = reg.Join(2, "benito", "general")
	req.NoError(err)

	out, err := reg.Leave(1)
	req.NoError(err)
	req.False(out.Emptied)
	req.Len(out.Remaining, 1)
	req.Equal(domain.PID(2), out.Remaining[0].PID)
}

func TestRegistry_Concurrent_Joins_Resolve_To_One_Room(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	const joiners = 32
	var wg sync.WaitGroup
	outcomes := make([]domain.JoinOutcome, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := reg.Join(domain.PID(i+1), fmt.Sprintf("user-%d", i), "general")
			require.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	// Exactly one creation, one shared queue handle, one room.
	created := 0
	for _, out := range outcomes {
		if out.Created {
			created++
		}
		req.Equal(outcomes[0].Queue, out.Queue)
	}
	req.Equal(1, created)
	req.Len(reg.Rooms(), 1)
	req.Len(reg.Rooms()[0].Members, joiners)
}

func TestRegistry_TeardownAll(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join(1, "ana", "general")
	req.NoError(err)
	_, err = reg.Join(2, "benito", "deportes")
	req.NoError(err)

	reg.TeardownAll()

	req.Empty(reg.Rooms())
	rooms, members := reg.Counts()
	req.Zero(rooms)
	req.Zero(members)
}
