package sio

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/duplexio/sioclient/internal/types"
	"github.com/duplexio/sioclient/internal/xlog"
	"github.com/duplexio/sioclient/internal/xtime"
	"github.com/duplexio/sioclient/wire"
)

var socketLog = xlog.New("sio:socket")

// Socket is a virtual channel multiplexed over a Manager's single
// transport connection, scoped to one namespace. It carries its own
// connect/disconnect lifecycle, ack correlation, and buffering across
// disconnects, independent of any other Socket sharing the same Manager.
type Socket struct {
	types.EventEmitter

	io  *Manager
	nsp string

	id          types.Atomic[string]
	pid         types.Atomic[string]
	lastOffset  types.Atomic[string]
	connected   types.Atomic[bool]
	recovered   types.Atomic[bool]

	opts *SocketOptions
	auth map[string]any

	receiveBuffer *types.Slice[[]any]
	sendBuffer    *types.Slice[*wire.Packet]

	queue    *types.Slice[*QueuedPacket]
	queueSeq uint64
	queueMu  sync.Mutex

	ids  uint64
	idMu sync.Mutex
	acks *types.Map[uint64, Ack]

	flags   types.Atomic[*Flags]
	subs    types.Atomic[*types.Slice[*types.Subscription]]

	anyListeners         *types.Slice[types.Listener]
	anyOutgoingListeners *types.Slice[types.Listener]
}

func newSocket(io *Manager, nsp string, opts *SocketOptions) *Socket {
	s := &Socket{
		EventEmitter:         types.NewEventEmitter(),
		io:                   io,
		nsp:                  nsp,
		opts:                 opts,
		receiveBuffer:        types.NewSlice[[]any](),
		sendBuffer:           types.NewSlice[*wire.Packet](),
		queue:                types.NewSlice[*QueuedPacket](),
		acks:                 &types.Map[uint64, Ack]{},
		anyListeners:         types.NewSlice[types.Listener](),
		anyOutgoingListeners: types.NewSlice[types.Listener](),
	}
	s.flags.Store(&Flags{})
	if auth := opts.resolveAuth(); auth != nil {
		s.auth = auth
	}
	if io.autoConnect {
		s.Open()
	}
	return s
}

// Io returns the Manager that owns this Socket.
func (s *Socket) Io() *Manager { return s.io }

// Id returns the session id assigned by the server, or "" while
// disconnected.
func (s *Socket) Id() string { return s.id.Load() }

// Connected reports whether the socket has completed its handshake.
func (s *Socket) Connected() bool { return s.connected.Load() }

// Disconnected is the negation of Connected.
func (s *Socket) Disconnected() bool { return !s.connected.Load() }

// Recovered reports whether the last (re)connect successfully recovered
// prior session state via the pid/offset mechanism.
func (s *Socket) Recovered() bool { return s.recovered.Load() }

// Auth returns the authentication payload sent with the next CONNECT.
func (s *Socket) Auth() map[string]any { return s.auth }

func (s *Socket) subEvents() {
	if s.Active() {
		return
	}
	s.subs.Store(types.NewSlice(
		types.Subscribe(s.io, "open", s.onopen),
		types.Subscribe(s.io, "packet", func(args ...any) {
			if len(args) > 0 {
				if p, ok := args[0].(*wire.Packet); ok {
					s.onpacket(p)
				}
			}
		}),
		types.Subscribe(s.io, "error", s.onerror),
		types.Subscribe(s.io, "close", func(args ...any) {
			reason, _ := args[0].(string)
			var description error
			if len(args) > 1 {
				description, _ = args[1].(error)
			}
			s.onclose(reason, description)
		}),
	))
}

// Active reports whether this Socket will try to (re)join when its
// Manager connects or reconnects.
func (s *Socket) Active() bool { return s.subs.Load() != nil }

// Connect opens the socket: ensures the Manager is connecting and, if it's
// already open, immediately sends the CONNECT handshake.
func (s *Socket) Connect() *Socket {
	if s.connected.Load() {
		return s
	}
	s.subEvents()
	if !s.io.reconnecting.Load() {
		s.io.Open(nil)
	}
	if s.io.readyState.Load() == ReadyStateOpen {
		s.onopen()
	}
	return s
}

// Open is an alias for Connect.
func (s *Socket) Open() *Socket { return s.Connect() }

// Send emits a "message" event; args are forwarded as-is.
func (s *Socket) Send(args ...any) *Socket {
	s.Emit("message", args...)
	return s
}

// Emit sends ev with args to the server. If the last element of args is an
// Ack, it is registered as the server-acknowledgement callback and
// excluded from the event payload. Returns an error only if ev is a
// reserved event name.
func (s *Socket) Emit(ev string, args ...any) error {
	if reservedEvents[ev] {
		return fmt.Errorf("%q is a reserved event name", ev)
	}

	data := append([]any{ev}, args...)
	flags := s.flags.Load()

	if s.opts.Retries > 0 && !flags.FromQueue && !flags.Volatile {
		s.addToQueue(data)
		s.flags.Store(&Flags{})
		return nil
	}

	p := &wire.Packet{
		Type: wire.EVENT,
		Data: data,
		Options: &wire.Options{
			Compress: flags.Compress == nil || *flags.Compress,
		},
	}

	if ack, withAck := data[len(data)-1].(Ack); withAck {
		s.idMu.Lock()
		id := s.ids
		s.ids++
		s.idMu.Unlock()
		socketLog.Debug("emitting packet with ack id %d", id)

		p.Data = data[:len(data)-1]
		s.registerAckCallback(id, ack)
		p.Id = &id
	}

	isConnected := s.connected.Load()

	if flags.Volatile && !isConnected {
		socketLog.Debug("discard volatile packet: not connected")
	} else if isConnected {
		s.notifyOutgoingListeners(p)
		s.packet(p)
	} else {
		s.sendBuffer.Push(p)
	}

	s.flags.Store(&Flags{})
	return nil
}

func (s *Socket) registerAckCallback(id uint64, ack Ack) {
	flags := s.flags.Load()
	timeout := flags.Timeout
	if timeout == nil {
		timeout = s.opts.AckTimeout
	}

	if timeout == nil {
		s.acks.Store(id, ack)
		return
	}

	timer := xtime.SetTimeout(func() {
		s.acks.Delete(id)
		s.sendBuffer.RemoveAll(func(p *wire.Packet) bool {
			return p.Id != nil && *p.Id == id
		})
		socketLog.Debug("event with ack id %d timed out after %v", id, *timeout)
		ack(nil, errors.New("operation has timed out"))
	}, *timeout)

	s.acks.Store(id, func(data []any, err error) {
		xtime.Clear(timer)
		ack(data, err)
	})
}

// EmitWithAck returns a function that, called with an Ack, emits ev with
// args and that ack as the final argument.
func (s *Socket) EmitWithAck(ev string, args ...any) func(Ack) {
	return func(ack Ack) {
		s.Emit(ev, append(args, ack)...)
	}
}

func (s *Socket) addToQueue(args []any) {
	var ack Ack
	if a, ok := args[len(args)-1].(Ack); ok {
		ack = a
		args = args[:len(args)-1]
	}

	s.queueMu.Lock()
	id := s.queueSeq
	s.queueSeq++
	s.queueMu.Unlock()

	qp := &QueuedPacket{Id: id, Flags: s.flags.Load()}

	args = append(args, Ack(func(responseArgs []any, err error) {
		if head, loadErr := s.queue.Get(0); loadErr != nil || head != qp {
			return
		}
		if err != nil {
			if float64(qp.TryCount) > s.opts.Retries {
				socketLog.Debug("packet [%d] discarded after %d tries", qp.Id, qp.TryCount)
				s.queue.Shift()
				if ack != nil {
					ack(nil, err)
				}
			}
		} else {
			socketLog.Debug("packet [%d] sent successfully", qp.Id)
			s.queue.Shift()
			if ack != nil {
				ack(responseArgs, nil)
			}
		}
		qp.Pending = false
		s.drainQueue(false)
	}))
	qp.Args = args

	s.queue.Push(qp)
	s.drainQueue(false)
}

func (s *Socket) drainQueue(force bool) {
	socketLog.Debug("draining queue")
	if !s.connected.Load() || s.queue.Len() == 0 {
		return
	}
	qp, err := s.queue.Get(0)
	if err != nil {
		return
	}
	if !force && qp.Pending {
		socketLog.Debug("packet [%d] already sent, awaiting ack", qp.Id)
		return
	}
	qp.Pending = true
	qp.TryCount++
	socketLog.Debug("sending packet [%d] (try %d)", qp.Id, qp.TryCount)
	qp.Flags.FromQueue = true
	s.flags.Store(qp.Flags)
	ev, _ := qp.Args[0].(string)
	s.Emit(ev, qp.Args[1:]...)
}

func (s *Socket) packet(p *wire.Packet) {
	p.Nsp = s.nsp
	s.io.packet(p)
}

func (s *Socket) onopen(...any) {
	socketLog.Debug("transport is open - connecting")
	if s.opts != nil && s.opts.AuthFunc != nil {
		s.auth = s.opts.AuthFunc()
	}
	s.sendConnectPacket(s.auth)
}

func (s *Socket) sendConnectPacket(data map[string]any) {
	if pid := s.pid.Load(); pid != "" {
		if data == nil {
			data = map[string]any{}
		}
		data["pid"] = pid
		data["offset"] = s.lastOffset.Load()
	}
	s.packet(&wire.Packet{Type: wire.CONNECT, Data: data, Query: s.opts.Query})
}

func (s *Socket) onerror(args ...any) {
	if !s.connected.Load() {
		s.EventEmitter.Emit("connect_error", args...)
	}
}

func (s *Socket) onclose(reason string, description error) {
	socketLog.Debug("close (%s)", reason)
	s.connected.Store(false)
	s.id.Store("")
	s.EventEmitter.Emit("disconnect", reason, description)
	s.clearAcks()
}

func (s *Socket) clearAcks() {
	for _, id := range s.acks.Keys() {
		buffered := s.sendBuffer.FindIndex(func(p *wire.Packet) bool {
			return p.Id != nil && *p.Id == id
		}) >= 0
		if buffered {
			continue
		}
		if ack, ok := s.acks.Load(id); ok {
			s.acks.Delete(id)
			ack(nil, errors.New("socket has been disconnected"))
		}
	}
}

func (s *Socket) onpacket(p *wire.Packet) {
	if p.Nsp != s.nsp && !(p.Type == wire.ERROR && p.Nsp == "/") {
		return
	}

	switch p.Type {
	case wire.CONNECT:
		data, _ := p.Data.(map[string]any)
		handshake, err := processHandshake(data)
		if err != nil {
			s.EventEmitter.Emit("connect_error", errors.New("invalid handshake payload from server"))
			return
		}
		s.onconnect(handshake.Sid, handshake.Pid)

	case wire.EVENT, wire.BINARY_EVENT:
		s.onevent(p)

	case wire.ACK, wire.BINARY_ACK:
		s.onack(p)

	case wire.DISCONNECT:
		s.ondisconnect()

	case wire.ERROR:
		data, _ := p.Data.(map[string]any)
		extended, err := processExtendedError(data)
		if err != nil {
			s.EventEmitter.Emit("error", err)
			return
		}
		s.EventEmitter.Emit("error", extended)
	}
}

func (s *Socket) onevent(p *wire.Packet) {
	args, _ := p.Data.([]any)
	socketLog.Debug("emitting event %v", args)

	if p.Id != nil {
		socketLog.Debug("attaching ack callback to event")
		args = append(args, s.ack(*p.Id))
	}

	if s.connected.Load() {
		s.emitEvent(args)
	} else {
		s.receiveBuffer.Push(args)
	}
}

func (s *Socket) emitEvent(args []any) {
	for _, listener := range s.anyListeners.All() {
		listener(args...)
	}
	if len(args) > 0 {
		if name, ok := args[0].(string); ok {
			s.EventEmitter.Emit(types.EventName(name), args[1:]...)
		}
	}
	if pid := s.pid.Load(); pid != "" && len(args) > 0 {
		if lastOffset, ok := args[len(args)-1].(string); ok {
			s.lastOffset.Store(lastOffset)
		}
	}
}

// ack builds a one-shot callback that, invoked with the local handler's
// response, sends an ACK packet back to the server for id.
func (s *Socket) ack(id uint64) Ack {
	var once sync.Once
	return func(args []any, _ error) {
		once.Do(func() {
			socketLog.Debug("sending ack %v", args)
			s.packet(&wire.Packet{Type: wire.ACK, Id: &id, Data: args})
		})
	}
}

func (s *Socket) onack(p *wire.Packet) {
	if p.Id == nil {
		socketLog.Debug("bad ack: nil id")
		return
	}
	ack, ok := s.acks.Load(*p.Id)
	if !ok {
		socketLog.Debug("bad ack %d", *p.Id)
		return
	}
	s.acks.Delete(*p.Id)
	data, _ := p.Data.([]any)
	socketLog.Debug("calling ack %d with %v", *p.Id, data)
	ack(data, nil)
}

func (s *Socket) onconnect(id, pid string) {
	socketLog.Debug("connected with id %s", id)
	s.id.Store(id)
	s.recovered.Store(pid != "" && s.pid.Load() == pid)
	s.pid.Store(pid)
	s.connected.Store(true)
	s.emitBuffered()
	s.EventEmitter.Emit("connect")
	s.drainQueue(true)
}

func (s *Socket) emitBuffered() {
	s.receiveBuffer.DoWrite(func(values [][]any) [][]any {
		for _, args := range values {
			s.emitEvent(args)
		}
		return values[:0]
	})
	s.sendBuffer.DoWrite(func(packets []*wire.Packet) []*wire.Packet {
		for _, p := range packets {
			s.notifyOutgoingListeners(p)
			s.packet(p)
		}
		return packets[:0]
	})
}

func (s *Socket) ondisconnect() {
	socketLog.Debug("server disconnect (%s)", s.nsp)
	s.destroy()
	s.onclose("io server disconnect", nil)
}

// destroy detaches this Socket from its Manager's lifecycle events so that
// a subsequent reconnect doesn't revive it.
func (s *Socket) destroy() {
	if subs := s.subs.Load(); subs != nil {
		for _, sub := range subs.All() {
			sub.Release()
		}
		s.subs.Store(nil)
	}
	s.io.destroySocket(s)
}

// Disconnect closes this Socket. If it's the last active Socket on the
// Manager, the underlying transport connection closes too.
func (s *Socket) Disconnect() *Socket {
	if s.connected.Load() {
		socketLog.Debug("performing disconnect (%s)", s.nsp)
		s.packet(&wire.Packet{Type: wire.DISCONNECT})
	}
	s.destroy()
	if s.connected.Load() {
		s.onclose("io client disconnect", nil)
	}
	return s
}

// Close is an alias for Disconnect.
func (s *Socket) Close() *Socket { return s.Disconnect() }

// Compress sets whether the next Emit call should request transport
// compression; cleared after that call.
func (s *Socket) Compress(compress bool) *Socket {
	s.flags.Load().Compress = &compress
	return s
}

// Volatile marks the next Emit call as droppable when the socket is not
// connected; cleared after that call.
func (s *Socket) Volatile() *Socket {
	s.flags.Load().Volatile = true
	return s
}

// Timeout overrides the ack timeout for the next Emit call; cleared after
// that call.
func (s *Socket) Timeout(d time.Duration) *Socket {
	s.flags.Load().Timeout = &d
	return s
}

// OnAny registers a listener invoked for every incoming event, with the
// event name as its first argument.
func (s *Socket) OnAny(listener types.Listener) *Socket {
	s.anyListeners.Push(listener)
	return s
}

// PrependAny is OnAny but the listener runs before any already registered.
func (s *Socket) PrependAny(listener types.Listener) *Socket {
	s.anyListeners.Unshift(listener)
	return s
}

// OffAny removes listener, or every any-listener if listener is nil.
func (s *Socket) OffAny(listener types.Listener) *Socket {
	if listener == nil {
		s.anyListeners.Clear()
		return s
	}
	target := reflect.ValueOf(listener).Pointer()
	s.anyListeners.RangeAndSplice(func(l types.Listener, i int) (bool, int, int, []types.Listener) {
		return reflect.ValueOf(l).Pointer() == target, i, 1, nil
	})
	return s
}

// ListenersAny returns the current any-listeners.
func (s *Socket) ListenersAny() []types.Listener { return s.anyListeners.All() }

// OnAnyOutgoing registers a listener invoked for every outgoing emission
// (acks excluded), with the event name as its first argument.
func (s *Socket) OnAnyOutgoing(listener types.Listener) *Socket {
	s.anyOutgoingListeners.Push(listener)
	return s
}

// PrependAnyOutgoing is OnAnyOutgoing but runs before already-registered
// listeners.
func (s *Socket) PrependAnyOutgoing(listener types.Listener) *Socket {
	s.anyOutgoingListeners.Unshift(listener)
	return s
}

// OffAnyOutgoing removes listener, or every outgoing any-listener if nil.
func (s *Socket) OffAnyOutgoing(listener types.Listener) *Socket {
	if listener == nil {
		s.anyOutgoingListeners.Clear()
		return s
	}
	target := reflect.ValueOf(listener).Pointer()
	s.anyOutgoingListeners.RangeAndSplice(func(l types.Listener, i int) (bool, int, int, []types.Listener) {
		return reflect.ValueOf(l).Pointer() == target, i, 1, nil
	})
	return s
}

// ListenersAnyOutgoing returns the current outgoing any-listeners.
func (s *Socket) ListenersAnyOutgoing() []types.Listener { return s.anyOutgoingListeners.All() }

func (s *Socket) notifyOutgoingListeners(p *wire.Packet) {
	if s.anyOutgoingListeners.Len() == 0 {
		return
	}
	for _, listener := range s.anyOutgoingListeners.All() {
		if args, ok := p.Data.([]any); ok {
			listener(args...)
		} else {
			listener(p.Data)
		}
	}
}
