package errors

import "fmt"

var (
	// Queue transport sentinels, mirrored on the wire by the gateway.
	ErrNoMessage    = fmt.Errorf("no message ready")
	ErrQueueRemoved = fmt.Errorf("queue removed")
	ErrQueueFull    = fmt.Errorf("queue full")
	ErrUnknownQueue = fmt.Errorf("unknown queue handle")

	// Registry sentinels, rendered by the control plane as user-facing text.
	ErrRoomsExhausted = fmt.Errorf("room table full")
	ErrRoomFull       = fmt.Errorf("room member list full")
	ErrNotInRoom      = fmt.Errorf("not a member of any room")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words loaded")
)

// Wire codes used by the websocket gateway frames. They keep the errno
// names of the queue API the semantics come from.
const (
	CodeNoMessage    = "ENOMSG"
	CodeQueueRemoved = "EIDRM"
	CodeQueueFull    = "EAGAIN"
	CodeUnknownQueue = "EBADQ"
	CodeInternal     = "EIO"
)

// MapToWireCode flattens a queue error into its frame code.
func MapToWireCode(err error) string {
	switch err {
	case ErrNoMessage:
		return CodeNoMessage
	case ErrQueueRemoved:
		return CodeQueueRemoved
	case ErrQueueFull:
		return CodeQueueFull
	case ErrUnknownQueue:
		return CodeUnknownQueue
	default:
		return CodeInternal
	}
}

// FromWireCode restores the sentinel for a frame code so remote conduits
// fail exactly like local queues.
func FromWireCode(code string) error {
	switch code {
	case CodeNoMessage:
		return ErrNoMessage
	case CodeQueueRemoved:
		return ErrQueueRemoved
	case CodeQueueFull:
		return ErrQueueFull
	case CodeUnknownQueue:
		return ErrUnknownQueue
	default:
		return fmt.Errorf("transport error: %s", code)
	}
}
