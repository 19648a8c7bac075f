// Package ws carries queue operations between client processes and the
// broker over a websocket. One frame in, one frame out, correlated by
// id; blocking operations hold their frame open until the queue
// delivers or the connection dies.
package ws

import (
	"salachat/domain"
)

const (
	OpSend       = "send"
	OpTrySend    = "trysend"
	OpReceive    = "recv"
	OpTryReceive = "tryrecv"
)

// Request is one queue operation issued by a client.
type Request struct {
	ID       uint64             `json:"id"`
	Op       string             `json:"op"`
	Queue    domain.QueueHandle `json:"queue"`
	Selector int64              `json:"selector,omitempty"`
	Envelope *domain.Envelope   `json:"envelope,omitempty"`
}

// Response answers exactly one Request. Code carries the queue error
// name when OK is false.
type Response struct {
	ID       uint64           `json:"id"`
	OK       bool             `json:"ok"`
	Code     string           `json:"code,omitempty"`
	Envelope *domain.Envelope `json:"envelope,omitempty"`
}
