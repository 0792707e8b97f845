// Package sio implements the client side of a multiplexed, reconnecting,
// packet-oriented messaging protocol: a Manager owns one underlying
// transport connection and a wire codec, and hands out per-namespace
// Sockets that share that connection.
package sio

import (
	"errors"
	"time"

	"github.com/duplexio/sioclient/backoff"
	"github.com/duplexio/sioclient/internal/types"
	"github.com/duplexio/sioclient/internal/xlog"
	"github.com/duplexio/sioclient/internal/xtime"
	"github.com/duplexio/sioclient/transport"
	"github.com/duplexio/sioclient/wire"
)

var managerLog = xlog.New("sio:manager")

// Engine is the transport contract the Manager drives; transport.Socket
// satisfies it.
type Engine = transport.Socket

// Manager owns the underlying transport connection, the wire codec, and
// the reconnection state machine, and multiplexes any number of
// per-namespace Sockets over that one connection.
type Manager struct {
	types.EventEmitter

	engine Engine

	autoConnect bool

	readyState    types.Atomic[ReadyState]
	reconnecting  types.Atomic[bool]
	skipReconnect types.Atomic[bool]

	uri  string
	opts *ManagerOptions

	nsps *types.Map[string, *Socket]
	subs *types.Slice[*types.Subscription]

	backoff *backoff.Backoff

	reconnection         types.Atomic[bool]
	reconnectionAttempts types.Atomic[float64]
	reconnectionDelay    types.Atomic[float64]
	randomizationFactor  types.Atomic[float64]
	reconnectionDelayMax types.Atomic[float64]
	timeout              types.Atomic[*time.Duration]

	encoder wire.Encoder
	decoder wire.Decoder
}

// NewManager constructs a Manager for uri and, unless WithAutoConnect(false)
// is among opts, immediately begins connecting.
func NewManager(uri string, opts ...ManagerOption) *Manager {
	o := DefaultManagerOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Manager{
		EventEmitter: types.NewEventEmitter(),
		nsps:         &types.Map[string, *Socket]{},
		subs:         types.NewSlice[*types.Subscription](),
		uri:          uri,
		opts:         o,
	}

	m.readyState.Store(ReadyStateClosed)
	m.reconnection.Store(o.Reconnection)
	m.reconnectionAttempts.Store(o.ReconnectionAttempts)
	m.reconnectionDelay.Store(float64(o.ReconnectionDelay.Milliseconds()))
	m.reconnectionDelayMax.Store(float64(o.ReconnectionDelayMax.Milliseconds()))
	m.randomizationFactor.Store(o.RandomizationFactor)
	m.timeout.Store(o.Timeout)

	m.backoff = backoff.New(
		backoff.WithMin(m.reconnectionDelay.Load()),
		backoff.WithMax(m.reconnectionDelayMax.Load()),
		backoff.WithJitter(m.randomizationFactor.Load()),
	)

	if o.Codec != nil {
		m.encoder = o.Codec
	} else {
		m.encoder = wire.JSONCodec{}
	}
	m.decoder = &wire.JSONDecoder{}
	if _, ok := m.encoder.(wire.MsgpackCodec); ok {
		m.decoder = &wire.MsgpackDecoder{}
	}

	m.autoConnect = o.AutoConnect
	if m.autoConnect {
		m.Open(nil)
	}

	return m
}

// Opts returns the options the Manager was constructed with.
func (m *Manager) Opts() *ManagerOptions { return m.opts }

// Engine returns the currently active transport, or nil before the first
// Open.
func (m *Manager) Engine() Engine { return m.engine }

// Reconnection reports whether automatic reconnection is enabled.
func (m *Manager) Reconnection() bool { return m.reconnection.Load() }

// SetReconnection enables or disables automatic reconnection.
func (m *Manager) SetReconnection(enabled bool) {
	m.reconnection.Store(enabled)
	if !enabled {
		m.skipReconnect.Store(true)
	}
}

// ReconnectionAttempts returns the configured attempt cap.
func (m *Manager) ReconnectionAttempts() float64 { return m.reconnectionAttempts.Load() }

// SetReconnectionAttempts updates the attempt cap.
func (m *Manager) SetReconnectionAttempts(n float64) { m.reconnectionAttempts.Store(n) }

// ReconnectionDelay returns the minimum reconnection delay in milliseconds.
func (m *Manager) ReconnectionDelay() float64 { return m.reconnectionDelay.Load() }

// SetReconnectionDelay updates the minimum reconnection delay (ms).
func (m *Manager) SetReconnectionDelay(ms float64) {
	m.reconnectionDelay.Store(ms)
	if m.backoff != nil {
		m.backoff.SetMin(ms)
	}
}

// ReconnectionDelayMax returns the maximum reconnection delay in milliseconds.
func (m *Manager) ReconnectionDelayMax() float64 { return m.reconnectionDelayMax.Load() }

// SetReconnectionDelayMax updates the maximum reconnection delay (ms).
func (m *Manager) SetReconnectionDelayMax(ms float64) {
	m.reconnectionDelayMax.Store(ms)
	if m.backoff != nil {
		m.backoff.SetMax(ms)
	}
}

// RandomizationFactor returns the jitter factor in [0,1].
func (m *Manager) RandomizationFactor() float64 { return m.randomizationFactor.Load() }

// SetRandomizationFactor updates the jitter factor.
func (m *Manager) SetRandomizationFactor(f float64) {
	m.randomizationFactor.Store(f)
	if m.backoff != nil {
		m.backoff.SetJitter(f)
	}
}

// Timeout returns the connect-attempt timeout, or nil if disabled.
func (m *Manager) Timeout() *time.Duration { return m.timeout.Load() }

// SetTimeout updates the connect-attempt timeout.
func (m *Manager) SetTimeout(d time.Duration) { m.timeout.Store(&d) }

// ReadyState reports the Manager's current connection lifecycle state.
func (m *Manager) ReadyState() ReadyState { return m.readyState.Load() }

func (m *Manager) maybeReconnectOnOpen() {
	if !m.reconnecting.Load() && m.reconnection.Load() && m.backoff.Attempts() == 0 {
		m.reconnect()
	}
}

func (m *Manager) buildEngine() (Engine, error) {
	name := "websocket"
	if len(m.opts.Transports) > 0 {
		name = m.opts.Transports[0]
	}
	topts := &transport.Options{
		Path:                 m.opts.Path,
		Query:                m.opts.Query,
		ExtraHeaders:         m.opts.ExtraHeaders,
		CompressionAlgorithm: m.opts.CompressionAlgorithm,
	}
	switch name {
	case "websocket":
		return transport.NewWebSocket(m.uri, topts), nil
	case "polling":
		return transport.NewPolling(m.uri, topts), nil
	default:
		return nil, errors.New("sio: unknown transport " + name)
	}
}

// Open begins connecting. fn, if non-nil, is called once with the outcome
// (nil on success) of this specific attempt; it is not called again for
// later reconnection attempts.
func (m *Manager) Open(fn func(error)) *Manager {
	managerLog.Debug("readyState %s", m.readyState.Load())
	if state := m.readyState.Load(); state == ReadyStateOpen || state == ReadyStateOpening {
		return m
	}

	managerLog.Debug("opening %s", m.uri)
	engine, err := m.buildEngine()
	if err != nil {
		m.EventEmitter.Emit("error", err)
		if fn != nil {
			fn(err)
		}
		return m
	}
	m.engine = engine
	m.readyState.Store(ReadyStateOpening)
	m.skipReconnect.Store(false)

	var openSub *types.Subscription
	openSub = types.Subscribe(m.engine, "open", func(...any) {
		m.onopen()
		if fn != nil {
			fn(nil)
		}
	})

	onError := func(args ...any) {
		var err error
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			}
		}
		managerLog.Debug("error")
		m.cleanup()
		m.readyState.Store(ReadyStateClosed)
		m.EventEmitter.Emit("error", err)
		if fn != nil {
			fn(err)
		} else {
			m.maybeReconnectOnOpen()
		}
	}
	errorSub := types.Subscribe(m.engine, "error", onError)

	m.subs.Push(openSub, errorSub)

	if timeout := m.timeout.Load(); timeout != nil {
		managerLog.Debug("connect attempt will timeout after %v", *timeout)
		timer := xtime.SetTimeout(func() {
			managerLog.Debug("connect attempt timed out after %v", *timeout)
			openSub.Release()
			onError(errors.New("timeout"))
			m.engine.Close()
		}, *timeout)
		m.registerTimerSub(timer)
	}

	m.engine.Open()
	return m
}

// registerTimerSub wires a bare cleanup func into m.subs without requiring
// an EventEmitter subscription, reusing Subscription purely as a
// "something to Release on cleanup" handle.
func (m *Manager) registerTimerSub(timer *xtime.Timer) {
	m.subs.Push(types.NewReleaseOnly(func() { xtime.Clear(timer) }))
}

// Connect is an alias for Open.
func (m *Manager) Connect(fn func(error)) *Manager { return m.Open(fn) }

func (m *Manager) onopen() {
	managerLog.Debug("open")

	m.cleanup()
	m.readyState.Store(ReadyStateOpen)
	m.EventEmitter.Emit("open")

	m.subs.Push(
		types.Subscribe(m.engine, "ping", m.onping),
		types.Subscribe(m.engine, "data", m.ondata),
		types.Subscribe(m.engine, "error", m.onerror),
		types.Subscribe(m.engine, "close", func(args ...any) {
			reason, _ := args[0].(string)
			var description error
			if len(args) > 1 {
				description, _ = args[1].(error)
			}
			m.onclose(reason, description)
		}),
	)
}

func (m *Manager) onping(...any) {
	m.EventEmitter.Emit("ping")
}

func (m *Manager) ondata(args ...any) {
	if len(args) == 0 {
		return
	}
	if err := m.decoder.Add(args[0], m.ondecoded); err != nil {
		m.onclose("parse error", err)
	}
}

// ondecoded hands a fully-reassembled packet to namespace listeners. It
// dispatches on its own goroutine so that a slow or blocked user handler
// never wedges the transport's read loop.
func (m *Manager) ondecoded(p *wire.Packet) {
	go m.EventEmitter.Emit("packet", p)
}

func (m *Manager) onerror(args ...any) {
	managerLog.Debug("error: %v", args)
	m.EventEmitter.Emit("error", args...)
}

// Socket returns the Socket for namespace nsp, creating it on first use.
// If the Manager auto-connects and an existing Socket for nsp has gone
// inactive, this reconnects it.
func (m *Manager) Socket(nsp string, opts ...SocketOption) *Socket {
	if nsp == "" {
		nsp = "/"
	}
	socket, ok := m.nsps.Load(nsp)
	if !ok {
		so := DefaultSocketOptions()
		for _, opt := range opts {
			opt(so)
		}
		socket = newSocket(m, nsp, so)
		m.nsps.Store(nsp, socket)
	} else if m.autoConnect && !socket.Active() {
		socket.Connect()
	}
	return socket
}

func (m *Manager) destroySocket(_ *Socket) {
	shouldClose := true
	m.nsps.Range(func(nsp string, socket *Socket) bool {
		if socket.Active() {
			managerLog.Debug("socket %s is still active, skipping close", nsp)
			shouldClose = false
			return false
		}
		return true
	})
	if shouldClose {
		m.close()
	}
}

func (m *Manager) packet(p *wire.Packet) {
	managerLog.Debug("writing packet %+v", p)
	if p.Type == wire.CONNECT && p.Query != "" {
		p.Nsp += "?" + p.Query
	}
	frames, err := m.encoder.Encode(p)
	if err != nil {
		managerLog.Error("encode failed: %v", err)
		return
	}
	var wopts *transport.WriteOptions
	if p.Options != nil {
		wopts = &transport.WriteOptions{Compress: p.Options.Compress}
	}
	for _, frame := range frames {
		if err := m.engine.Write(frame, wopts); err != nil {
			managerLog.Error("write failed: %v", err)
		}
	}
}

func (m *Manager) cleanup() {
	managerLog.Debug("cleanup")
	for _, sub := range m.subs.All() {
		sub.Release()
	}
	m.subs.Clear()
	m.decoder.Destroy()
}

func (m *Manager) close() {
	managerLog.Debug("disconnect")
	m.skipReconnect.Store(true)
	m.reconnecting.Store(false)
	m.onclose("forced close", nil)
}

func (m *Manager) onclose(reason string, description error) {
	managerLog.Debug("closed due to %s", reason)

	m.cleanup()
	if m.engine != nil {
		m.engine.Close()
	}
	m.backoff.Reset()
	m.readyState.Store(ReadyStateClosed)
	m.EventEmitter.Emit("close", reason, description)

	if m.reconnection.Load() && !m.skipReconnect.Load() {
		m.reconnect()
	}
}

func (m *Manager) reconnect() {
	if m.reconnecting.Load() || m.skipReconnect.Load() {
		return
	}

	if float64(m.backoff.Attempts()) >= m.reconnectionAttempts.Load() {
		managerLog.Debug("reconnect failed")
		m.backoff.Reset()
		m.EventEmitter.Emit("reconnect_failed")
		m.reconnecting.Store(false)
		return
	}

	delay := m.backoff.Duration()
	managerLog.Debug("will wait %dms before reconnect attempt", delay)
	m.reconnecting.Store(true)

	timer := xtime.SetTimeout(func() {
		if m.skipReconnect.Load() {
			return
		}
		managerLog.Debug("attempting reconnect")
		m.EventEmitter.Emit("reconnect_attempt", m.backoff.Attempts())
		m.EventEmitter.Emit("reconnecting", m.backoff.Attempts())

		if m.skipReconnect.Load() {
			return
		}

		m.Open(func(err error) {
			if err != nil {
				managerLog.Debug("reconnect attempt error")
				m.reconnecting.Store(false)
				m.reconnect()
				m.EventEmitter.Emit("reconnect_error", err)
			} else {
				managerLog.Debug("reconnect success")
				m.onreconnect()
			}
		})
	}, time.Duration(delay)*time.Millisecond)
	m.registerTimerSub(timer)
}

func (m *Manager) onreconnect() {
	attempt := m.backoff.Attempts()
	m.reconnecting.Store(false)
	m.backoff.Reset()
	m.EventEmitter.Emit("reconnect", attempt)
}
