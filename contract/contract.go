//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"salachat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conduit is one addressed queue as seen by a producer or consumer.
// Send blocks while the queue is full, Receive blocks until an envelope
// tagged with the selector is available; both fail with ErrQueueRemoved
// once the queue is destroyed. TryReceive and TrySend never block.
type Conduit interface {
	Send(ctx context.Context, env domain.Envelope) error
	TrySend(env domain.Envelope) error
	Receive(ctx context.Context, selector int64) (domain.Envelope, error)
	TryReceive(selector int64) (domain.Envelope, error)
}

// Opener resolves a queue handle into a Conduit. The local arena and the
// gateway client both implement it, so workers and sessions stay
// transport-agnostic.
type Opener interface {
	Open(handle domain.QueueHandle) Conduit
}

// IRegistry is the room table. All lookups and mutations happen under a
// single exclusion region inside the implementation; outcomes are
// snapshots that are safe to use without the lock.
type IRegistry interface {
	Join(pid domain.PID, sender, room string) (domain.JoinOutcome, error)
	Leave(pid domain.PID) (domain.LeaveOutcome, error)
	RoomOf(pid domain.PID) (domain.RoomView, bool)
	Room(index int) (domain.RoomView, bool)
	Rooms() []domain.RoomView
	TeardownAll()
}

// Censor masks forbidden patterns in chat text and reports the matched
// words. A nil Censor disables moderation.
type Censor interface {
	Censor(original string) (string, []string)
}
