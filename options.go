package sio

import (
	"math"
	"net/http"
	"time"

	"github.com/duplexio/sioclient/compress"
	"github.com/duplexio/sioclient/wire"
)

// ManagerOptions configures a Manager's connection and reconnection
// behavior. The zero value is not directly usable; construct with
// DefaultManagerOptions and override individual fields, or use the
// ManagerOption functional setters with NewManager.
type ManagerOptions struct {
	Path string

	Reconnection          bool
	ReconnectionAttempts  float64
	ReconnectionDelay     time.Duration
	ReconnectionDelayMax  time.Duration
	RandomizationFactor   float64
	Timeout               *time.Duration
	AutoConnect           bool

	// Transports lists transport names in preference order. The Manager
	// builds only the first entry; later entries are not tried. Defaults to
	// ["websocket", "polling"].
	Transports []string

	// Codec selects the wire Encoder; defaults to wire.JSONCodec{}. The
	// Manager decodes with wire.MsgpackDecoder when Codec is
	// wire.MsgpackCodec{}, and with wire.JSONDecoder for any other Encoder.
	Codec wire.Encoder

	// CompressionAlgorithm selects the Codec pair the transport applies to
	// an outgoing frame when its packet requested compression. Nil (the
	// default) disables application-level compression.
	CompressionAlgorithm *compress.Algorithm

	Query        string
	ExtraHeaders http.Header
}

// DefaultManagerOptions returns the option set a Manager uses when none is
// supplied, mirroring the protocol's documented defaults.
func DefaultManagerOptions() *ManagerOptions {
	return &ManagerOptions{
		Path:                 "/socket.io",
		Reconnection:         true,
		ReconnectionAttempts: math.Inf(1),
		ReconnectionDelay:    1_000 * time.Millisecond,
		ReconnectionDelayMax: 5_000 * time.Millisecond,
		RandomizationFactor:  0.5,
		AutoConnect:          true,
		Transports:           []string{"websocket", "polling"},
		Codec:                wire.JSONCodec{},
	}
}

// ManagerOption mutates a ManagerOptions in place; pass any number to
// NewManager.
type ManagerOption func(*ManagerOptions)

func WithPath(path string) ManagerOption {
	return func(o *ManagerOptions) { o.Path = path }
}

func WithReconnection(enabled bool) ManagerOption {
	return func(o *ManagerOptions) { o.Reconnection = enabled }
}

func WithReconnectionAttempts(n float64) ManagerOption {
	return func(o *ManagerOptions) { o.ReconnectionAttempts = n }
}

func WithReconnectionDelay(d time.Duration) ManagerOption {
	return func(o *ManagerOptions) { o.ReconnectionDelay = d }
}

func WithReconnectionDelayMax(d time.Duration) ManagerOption {
	return func(o *ManagerOptions) { o.ReconnectionDelayMax = d }
}

func WithRandomizationFactor(f float64) ManagerOption {
	return func(o *ManagerOptions) { o.RandomizationFactor = f }
}

func WithTimeout(d time.Duration) ManagerOption {
	return func(o *ManagerOptions) { o.Timeout = &d }
}

func WithAutoConnect(enabled bool) ManagerOption {
	return func(o *ManagerOptions) { o.AutoConnect = enabled }
}

func WithTransports(names ...string) ManagerOption {
	return func(o *ManagerOptions) { o.Transports = names }
}

func WithCodec(codec wire.Encoder) ManagerOption {
	return func(o *ManagerOptions) { o.Codec = codec }
}

func WithCompressionAlgorithm(algo *compress.Algorithm) ManagerOption {
	return func(o *ManagerOptions) { o.CompressionAlgorithm = algo }
}

func WithQuery(q string) ManagerOption {
	return func(o *ManagerOptions) { o.Query = q }
}

func WithExtraHeaders(h http.Header) ManagerOption {
	return func(o *ManagerOptions) { o.ExtraHeaders = h }
}

// SocketOptions configures an individual Namespace Socket.
type SocketOptions struct {
	// Auth is sent as the CONNECT packet's payload; a function is invoked
	// fresh on every (re)connect attempt so it can refresh tokens.
	Auth     map[string]any
	AuthFunc func() map[string]any

	// Retries, when > 0, makes Emit queue rather than fire-and-forget:
	// an emission blocks the queue until acknowledged or retried this
	// many times.
	Retries float64

	// AckTimeout bounds how long Emit waits for a per-call ack when no
	// Socket.Timeout flag was set for that call; nil means no timeout.
	AckTimeout *time.Duration

	// Query is sent on every CONNECT packet this socket sends, and on no
	// other packet (folded into the namespace as "?"+Query), carrying
	// per-socket parameters the server can't get from the shared
	// manager-level query.
	Query string
}

// DefaultSocketOptions returns an empty-but-valid SocketOptions.
func DefaultSocketOptions() *SocketOptions {
	return &SocketOptions{}
}

func (o *SocketOptions) resolveAuth() map[string]any {
	if o == nil {
		return nil
	}
	if o.AuthFunc != nil {
		return o.AuthFunc()
	}
	return o.Auth
}

// SocketOption mutates a SocketOptions in place.
type SocketOption func(*SocketOptions)

func WithAuth(auth map[string]any) SocketOption {
	return func(o *SocketOptions) { o.Auth = auth }
}

func WithAuthFunc(fn func() map[string]any) SocketOption {
	return func(o *SocketOptions) { o.AuthFunc = fn }
}

func WithRetries(n float64) SocketOption {
	return func(o *SocketOptions) { o.Retries = n }
}

func WithAckTimeout(d time.Duration) SocketOption {
	return func(o *SocketOptions) { o.AckTimeout = &d }
}

// WithSocketQuery sets the per-socket query carried on this Socket's
// CONNECT packets. Distinct from the Manager-level WithQuery, which is sent
// with every transport-level connection attempt rather than with each
// namespace handshake.
func WithSocketQuery(q string) SocketOption {
	return func(o *SocketOptions) { o.Query = q }
}
