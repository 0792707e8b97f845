package sio

import (
	"testing"
	"time"

	"github.com/duplexio/sioclient/wire"
)

func connectedSocket(t *testing.T, nsp string) (*Manager, *Socket, *fakeEngine) {
	t.Helper()
	m, fe := fakeManager()
	s := m.Socket(nsp)
	s.onpacket(&wire.Packet{Type: wire.CONNECT, Nsp: nsp, Data: map[string]any{"sid": "abc123"}})
	return m, s, fe
}

func TestSocketIdMatchesHandshakeSid(t *testing.T) {
	_, s, _ := connectedSocket(t, "/")
	if s.Id() != "abc123" {
		t.Errorf("Id() = %q, want abc123", s.Id())
	}
	if !s.Connected() {
		t.Error("Connected() should be true after CONNECT packet")
	}
}

func TestSocketIdClearedOnDisconnect(t *testing.T) {
	_, s, _ := connectedSocket(t, "/")
	s.onclose("transport close", nil)
	if s.Id() != "" {
		t.Errorf("Id() = %q, want empty after disconnect", s.Id())
	}
	if s.Connected() {
		t.Error("Connected() should be false after disconnect")
	}
}

func TestSocketRejectsReservedEventName(t *testing.T) {
	_, s, _ := connectedSocket(t, "/")
	if err := s.Emit("connect"); err == nil {
		t.Error(`Emit("connect") should return an error`)
	}
}

func TestSocketEmitWhileDisconnectedBuffers(t *testing.T) {
	m, fe := fakeManager()
	s := m.Socket("/")
	s.Emit("hello", "world")
	if s.sendBuffer.Len() != 1 {
		t.Errorf("sendBuffer.Len() = %d, want 1", s.sendBuffer.Len())
	}
	if len(fe.written) != 0 {
		t.Error("nothing should be written to the transport before connect")
	}
}

func TestSocketConnectDrainsSendBuffer(t *testing.T) {
	m, fe := fakeManager()
	s := m.Socket("/")
	s.Emit("hello", "world")
	s.onpacket(&wire.Packet{Type: wire.CONNECT, Nsp: "/", Data: map[string]any{"sid": "s1"}})
	if len(fe.written) == 0 {
		t.Error("connecting should flush the buffered emit")
	}
	_ = m
}

func TestSocketOnAnyReceivesIncomingEvents(t *testing.T) {
	_, s, _ := connectedSocket(t, "/")
	var gotEvent string
	s.OnAny(func(args ...any) {
		if len(args) > 0 {
			gotEvent, _ = args[0].(string)
		}
	})
	s.onpacket(&wire.Packet{Type: wire.EVENT, Nsp: "/", Data: []any{"greet", "hi"}})
	if gotEvent != "greet" {
		t.Errorf("OnAny listener saw %q, want greet", gotEvent)
	}
}

func TestSocketAckRoundTrip(t *testing.T) {
	_, s, fe := connectedSocket(t, "/")
	fe.written = nil

	var gotErr error
	var gotData []any
	s.Emit("ping", Ack(func(data []any, err error) {
		gotData = data
		gotErr = err
	}))
	if len(fe.written) == 0 {
		t.Fatal("Emit with ack should write a packet")
	}

	id := uint64(0)
	s.onpacket(&wire.Packet{Type: wire.ACK, Nsp: "/", Id: &id, Data: []any{"pong"}})

	if gotErr != nil {
		t.Errorf("unexpected ack error: %v", gotErr)
	}
	if len(gotData) != 1 || gotData[0] != "pong" {
		t.Errorf("gotData = %v", gotData)
	}
}

func TestSocketActiveAfterConnect(t *testing.T) {
	m, _ := fakeManager()
	s := m.Socket("/")
	if s.Active() {
		t.Error("Socket should not be Active before Connect, with auto-connect disabled")
	}
	s.Connect()
	if !s.Active() {
		t.Error("Socket should be Active once Connect has subscribed it to the Manager")
	}
}

func TestSocketVolatileDroppedWhenDisconnected(t *testing.T) {
	m, fe := fakeManager()
	s := m.Socket("/")
	s.connected.Store(false)
	s.Volatile().Emit("tick")
	if len(fe.written) != 0 {
		t.Error("volatile emit while disconnected should be dropped, not buffered")
	}
	if s.sendBuffer.Len() != 0 {
		t.Error("volatile emit should not be buffered")
	}
}

func TestSocketCompressDefaultsTrue(t *testing.T) {
	_, s, fe := connectedSocket(t, "/")
	fe.written = nil
	fe.writeOpts = nil
	s.Emit("hello")
	if len(fe.written) == 0 {
		t.Fatal("expected a write")
	}
	if opts := fe.writeOpts[0]; opts == nil || !opts.Compress {
		t.Errorf("write options = %+v, want Compress true by default", opts)
	}
}

func TestSocketDisconnectedNegatesConnected(t *testing.T) {
	m, _ := fakeManager()
	s := m.Socket("/")
	if !s.Disconnected() {
		t.Error("fresh socket should be Disconnected")
	}
}

func TestSocketTimeoutFlagOverridesAckTimeout(t *testing.T) {
	m, _ := fakeManager()
	s := m.Socket("/", WithAckTimeout(time.Hour))
	s.onpacket(&wire.Packet{Type: wire.CONNECT, Nsp: "/", Data: map[string]any{"sid": "abc123"}})
	errCh := make(chan error, 1)
	s.Timeout(10 * time.Millisecond).Emit("slow", Ack(func(_ []any, err error) { errCh <- err }))
	if _, ok := s.acks.Load(0); !ok {
		t.Error("ack should be registered even with a short timeout")
	}
	select {
	case err := <-errCh:
		if err == nil {
			t.Error("ack should fail with a timeout error")
		}
	case <-time.After(time.Second):
		t.Error("ack did not time out after the 10ms Timeout flag despite the 1h AckTimeout")
	}
}
