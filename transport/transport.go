// Package transport implements the engine transport contract the Manager
// depends on (spec §6.1): a constructable, event-emitting duplex carrying
// opaque frames, independent of the higher-level multiplexed protocol
// layered on top of it by the Manager and Namespace Socket.
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/duplexio/sioclient/compress"
	"github.com/duplexio/sioclient/internal/types"
)

// Frame is either a string (text frame) or a []byte (binary frame); the
// same shape the wire codec produces and consumes.
type Frame = any

// Socket is the contract a concrete transport (WebSocket, Polling) must
// satisfy. It is an EventEmitter that emits exactly the events listed
// below; callers subscribe with On/Once and never assume a background
// goroutine's identity beyond "some goroutine will call your handler".
//
//   - "open"        : the transport is ready to Write
//   - "data", frame : one inbound frame arrived
//   - "close", reason string
//   - "error", err error
type Socket interface {
	types.EventEmitter

	// Open begins connecting. It does not block; progress is reported via
	// the open/error events.
	Open()

	// Write sends one frame. opts may be nil.
	Write(frame Frame, opts *WriteOptions) error

	// Close tears the transport down; it is safe to call more than once.
	Close()

	// ID returns the session id assigned by the remote peer, or "" when
	// none is known. WebSocket and Polling never record one and always
	// return "".
	ID() string

	// Name reports the transport's wire identifier, e.g. "websocket".
	Name() string
}

// WriteOptions carries a single frame's transport-level write hints.
type WriteOptions struct {
	Compress bool
}

// Options configures a transport's connection attempt.
type Options struct {
	// Path is the HTTP path the transport connects under, default
	// "/engine.io/".
	Path string

	// Query is appended to the connection URI as-is (already encoded).
	Query string

	// ExtraHeaders are sent with every HTTP request the transport makes
	// (the WebSocket upgrade request, or every polling request).
	ExtraHeaders http.Header

	// TLSClientConfig configures the transport's TLS dialer, if any.
	TLSClientConfig *tls.Config

	// RequestTimeout bounds a single HTTP round trip for the polling
	// transport; zero means no timeout.
	RequestTimeout time.Duration

	// Protocols lists WebSocket subprotocols to offer, if any.
	Protocols []string

	// CompressionAlgorithm selects the Codec pair applied to an outgoing
	// frame when its WriteOptions.Compress is set. Nil disables
	// application-level compression (the WebSocket transport still offers
	// permessage-deflate at the connection level regardless).
	CompressionAlgorithm *compress.Algorithm
}

func (o *Options) path() string {
	if o == nil || o.Path == "" {
		return "/engine.io/"
	}
	return o.Path
}
