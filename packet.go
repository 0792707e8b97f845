package sio

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Ack is a server-acknowledgement callback: the server's reply arguments,
// or a non-nil error if the ack timed out or the socket disconnected
// before it arrived.
type Ack func(data []any, err error)

// Flags holds the one-shot modifiers Compress/Volatile/Timeout set on a
// Socket and that Emit consumes and clears on every call.
type Flags struct {
	Compress  *bool
	Volatile  bool
	Timeout   *time.Duration
	FromQueue bool
}

// QueuedPacket is one entry in a Socket's retry queue (used when
// SocketOptions.Retries > 0): an emission that must eventually be
// acknowledged, resent on timeout up to Retries times.
type QueuedPacket struct {
	Id       uint64
	TryCount uint64
	Pending  bool
	Args     []any
	Flags    *Flags
}

// Handshake is the payload carried by the server's CONNECT packet.
type Handshake struct {
	Sid string `json:"sid"`
	Pid string `json:"pid,omitempty"`
}

// ExtendedError is the payload carried by an ERROR packet; the Socket
// surfaces it as its "error" event.
type ExtendedError struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ExtendedError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func processHandshake(data map[string]any) (*Handshake, error) {
	if data == nil {
		return nil, errors.New("sio: empty handshake payload")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var h Handshake
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, err
	}
	if h.Sid == "" {
		return nil, fmt.Errorf("sio: handshake missing sid")
	}
	return &h, nil
}

func processExtendedError(data map[string]any) (*ExtendedError, error) {
	if data == nil {
		return &ExtendedError{Message: "unknown error"}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var e ExtendedError
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// reservedEvents are the local EventEmitter event names a caller may never
// pass to Emit, since they carry Socket lifecycle semantics.
var reservedEvents = map[string]bool{
	"connect":        true,
	"connect_error":  true,
	"disconnect":     true,
	"disconnecting":  true,
	"newListener":    true,
	"removeListener": true,
}

// ReadyState is the Manager's connection lifecycle state.
type ReadyState int

const (
	ReadyStateClosed ReadyState = iota
	ReadyStateOpening
	ReadyStateOpen
)

func (r ReadyState) String() string {
	switch r {
	case ReadyStateOpening:
		return "opening"
	case ReadyStateOpen:
		return "open"
	default:
		return "closed"
	}
}
