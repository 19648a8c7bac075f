// Package runtime hosts the broker: the room registry, the supervised
// workers draining the control and room queues, and their lifecycle.
// It orchestrates the system without containing transport or UI logic.
package runtime

import (
	"log/slog"
	"sync"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
	"salachat/ipc"
)

var _ contract.IRegistry = (*Registry)(nil)

type roomSlot struct {
	active  bool
	name    string
	queue   domain.QueueHandle
	members []domain.Member
}

// Registry is the fixed arena of rooms. Every lookup and mutation,
// queue creation and teardown included, happens under the single
// mutex, so a broadcaster can never observe a half-dismantled room.
// Only indexes and snapshots leave the guarded region.
type Registry struct {
	mu    sync.Mutex
	log   *slog.Logger
	arena *ipc.Arena
	slots [domain.MaxRooms]roomSlot
}

func NewRegistry(log *slog.Logger, arena *ipc.Arena) *Registry {
	return &Registry{log: log, arena: arena}
}

// Join places pid in the named room, creating the room (and its queue)
// on first reference. A pid already in another room is moved, but only
// after the new membership is accepted: a JOIN refused for capacity
// leaves the previous membership intact.
func (r *Registry) Join(pid domain.PID, sender, room string) (domain.JoinOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.findByNameLocked(room)
	created := false
	if idx == -1 {
		free := r.freeSlotLocked()
		if free == -1 {
			return domain.JoinOutcome{}, errors.ErrRoomsExhausted
		}
		handle, _ := r.arena.Create()
		r.slots[free] = roomSlot{active: true, name: room, queue: handle}
		idx = free
		created = true
		r.log.Info("Sala creada", "room", room, "queue", handle)
	}

	slot := &r.slots[idx]
	for i, m := range slot.members {
		if m.PID == pid {
			// Rejoining the same room only refreshes the display name.
			slot.members[i].Name = sender
			return domain.JoinOutcome{
				RoomIndex:     idx,
				RoomName:      slot.name,
				Queue:         slot.queue,
				AlreadyMember: true,
				Others:        r.othersLocked(idx, pid),
			}, nil
		}
	}

	if len(slot.members) >= domain.MaxMembers {
		return domain.JoinOutcome{}, errors.ErrRoomFull
	}

	if prev := r.findRoomOfLocked(pid); prev != -1 && prev != idx {
		r.removeMemberLocked(prev, pid)
		if len(r.slots[prev].members) == 0 {
			r.teardownLocked(prev)
		}
	}

	others := r.othersLocked(idx, pid)
	slot.members = append(slot.members, domain.Member{PID: pid, Name: sender})

	return domain.JoinOutcome{
		RoomIndex: idx,
		RoomName:  slot.name,
		Queue:     slot.queue,
		Created:   created,
		Others:    others,
	}, nil
}

// Leave removes pid from its room. When the last member leaves, the
// room is deactivated and its queue destroyed before returning, still
// under the exclusion region.
func (r *Registry) Leave(pid domain.PID) (domain.LeaveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.findRoomOfLocked(pid)
	if idx == -1 {
		return domain.LeaveOutcome{}, errors.ErrNotInRoom
	}

	slot := &r.slots[idx]
	out := domain.LeaveOutcome{
		RoomIndex: idx,
		RoomName:  slot.name,
		Queue:     slot.queue,
	}
	r.removeMemberLocked(idx, pid)
	out.Remaining = r.othersLocked(idx, pid)
	if len(slot.members) == 0 {
		out.Emptied = true
		r.teardownLocked(idx)
	}
	return out, nil
}

// RoomOf snapshots the room pid currently belongs to.
func (r *Registry) RoomOf(pid domain.PID) (domain.RoomView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.findRoomOfLocked(pid)
	if idx == -1 {
		return domain.RoomView{}, false
	}
	return r.viewLocked(idx), true
}

// Room snapshots one slot by index.
func (r *Registry) Room(index int) (domain.RoomView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= domain.MaxRooms || !r.slots[index].active {
		return domain.RoomView{}, false
	}
	return r.viewLocked(index), true
}

// Rooms snapshots every active room in slot order.
func (r *Registry) Rooms() []domain.RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	var views []domain.RoomView
	for i := range r.slots {
		if r.slots[i].active {
			views = append(views, r.viewLocked(i))
		}
	}
	return views
}

// Counts reports active rooms and total members, for stats reporting.
func (r *Registry) Counts() (rooms, members int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].active {
			rooms++
			members += len(r.slots[i].members)
		}
	}
	return rooms, members
}

// TeardownAll deactivates every room and destroys its queue; part of
// server shutdown.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].active {
			r.teardownLocked(i)
		}
	}
}

func (r *Registry) findByNameLocked(name string) int {
	for i := range r.slots {
		if r.slots[i].active && r.slots[i].name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) freeSlotLocked() int {
	for i := range r.slots {
		if !r.slots[i].active {
			return i
		}
	}
	return -1
}

func (r *Registry) findRoomOfLocked(pid domain.PID) int {
	for i := range r.slots {
		if !r.slots[i].active {
			continue
		}
		for _, m := range r.slots[i].members {
			if m.PID == pid {
				return i
			}
		}
	}
	return -1
}

func (r *Registry) removeMemberLocked(idx int, pid domain.PID) {
	slot := &r.slots[idx]
	for i, m := range slot.members {
		if m.PID == pid {
			slot.members = append(slot.members[:i], slot.members[i+1:]...)
			return
		}
	}
}

func (r *Registry) othersLocked(idx int, pid domain.PID) []domain.Member {
	var others []domain.Member
	for _, m := range r.slots[idx].members {
		if m.PID != pid {
			others = append(others, m)
		}
	}
	return others
}

func (r *Registry) viewLocked(idx int) domain.RoomView {
	slot := &r.slots[idx]
	return domain.RoomView{
		Index:   idx,
		Name:    slot.name,
		Queue:   slot.queue,
		Members: append([]domain.Member(nil), slot.members...),
	}
}

// teardownLocked destroys the slot's queue and frees the slot. The
// broadcaster blocked on the queue observes ErrQueueRemoved and exits
// on its own; it is never joined here.
func (r *Registry) teardownLocked(idx int) {
	slot := &r.slots[idx]
	if !slot.active {
		return
	}
	r.log.Info("Sala destruida", "room", slot.name, "queue", slot.queue)
	_ = r.arena.Destroy(slot.queue)
	r.slots[idx] = roomSlot{}
}
