// Package domain contains core concepts of the chat system.
// This file defines the Envelope record exchanged on every queue and
// the command/response codes it may carry.
// No runtime, network, or UI logic should be added here.
package domain

// Capacity and size bounds, shared by both ends of the wire.
const (
	MaxRooms   = 16
	MaxMembers = 64
	MaxName    = 50
	MaxText    = 512
)

// RequestSelector is the well-known tag used by clients when producing
// on a queue (control requests and room chat sends). Replies and
// broadcasts are tagged with the recipient PID instead.
const RequestSelector int64 = 1

// PID identifies a client process.
type PID int32

// QueueHandle references a queue in the arena. The control queue is
// always ControlQueue; room handles travel in JOIN replies.
type QueueHandle int32

const (
	NoQueue      QueueHandle = -1
	ControlQueue QueueHandle = 1
)

// Code is a client command or a server response code. Both share the
// Envelope.Code field; responses start at 100 so the ranges never overlap.
type Code int

const (
	CmdJoin Code = iota + 1
	CmdLeave
	CmdSend
	CmdListRooms
	CmdListUsers
	CmdQuit
)

const (
	RespText Code = iota + 100
	RespInfo
	RespError
	RespRooms
	RespUsers
)

// IsResponse reports whether the code belongs to the server response range.
func (c Code) IsResponse() bool { return c >= RespText }

// Envelope is the single record shape that circulates on the control
// queue and on every room queue.
type Envelope struct {
	Tag       int64       `json:"tag"`
	Origin    PID         `json:"origin"`
	Code      Code        `json:"code"`
	Room      string      `json:"room,omitempty"`
	Sender    string      `json:"sender,omitempty"`
	Text      string      `json:"text,omitempty"`
	RoomQueue QueueHandle `json:"room_queue"`
}

// Truncate clamps a field to its byte bound. Callers apply MaxName to
// Room/Sender and MaxText to Text before an envelope leaves the process.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
