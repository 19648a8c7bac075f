// Package domain contains core concepts of the chat system.
// This file defines rooms, members and the registry outcome records.
package domain

// Member associates one client process with its display name inside a
// room. A PID belongs to at most one active room at any time.
type Member struct {
	PID  PID    `json:"pid"`
	Name string `json:"name"`
}

// RoomView is an immutable snapshot of one active room, safe to hand
// out beyond the registry lock.
type RoomView struct {
	Index   int         `json:"index"`
	Name    string      `json:"name"`
	Queue   QueueHandle `json:"queue"`
	Members []Member    `json:"members"`
}

// JoinOutcome reports a successful JOIN. Others holds the members that
// were already present, for the join notice fan-out.
type JoinOutcome struct {
	RoomIndex     int
	RoomName      string
	Queue         QueueHandle
	Created       bool
	AlreadyMember bool
	Others        []Member
}

// LeaveOutcome reports a successful LEAVE or QUIT. When Emptied is set
// the room was deactivated and its queue destroyed before returning;
// Remaining is then empty.
type LeaveOutcome struct {
	RoomIndex int
	RoomName  string
	Queue     QueueHandle
	Remaining []Member
	Emptied   bool
}
