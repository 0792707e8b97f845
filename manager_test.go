package sio

import (
	"strings"
	"testing"
	"time"

	"github.com/duplexio/sioclient/backoff"
	"github.com/duplexio/sioclient/wire"
)

func TestManagerDefaults(t *testing.T) {
	o := DefaultManagerOptions()
	if !o.Reconnection {
		t.Error("Reconnection should default true")
	}
	if o.Path != "/socket.io" {
		t.Errorf("Path = %q, want /socket.io", o.Path)
	}
	if o.Timeout != nil {
		t.Error("Timeout should default nil (uses no manager-level cap)")
	}
}

func TestManagerOnopenEmitsOpen(t *testing.T) {
	var gotOpen bool
	m, _ := fakeManager()
	m.On("open", func(...any) { gotOpen = true })
	m.onopen()
	if !gotOpen {
		t.Error("onopen did not emit open")
	}
	if m.ReadyState() != ReadyStateOpen {
		t.Errorf("ReadyState = %v, want open", m.ReadyState())
	}
}

func TestManagerOndataRoutesToDecoder(t *testing.T) {
	m, _ := fakeManager()
	received := make(chan struct{}, 1)
	m.EventEmitter.On("packet", func(args ...any) {
		received <- struct{}{}
	})
	m.ondata(`2/,["hi"]`)
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Error("packet event not emitted after ondata")
	}
}

func TestManagerSetReconnectionFalseSkipsReconnect(t *testing.T) {
	m, _ := fakeManager()
	m.SetReconnection(false)
	if m.Reconnection() {
		t.Error("Reconnection() should be false")
	}
	if !m.skipReconnect.Load() {
		t.Error("disabling reconnection should set skipReconnect")
	}
}

func TestManagerReconnectionDelaySyncsBackoff(t *testing.T) {
	m, _ := fakeManager()
	m.backoff = backoff.New(backoff.WithMin(100), backoff.WithMax(1000))
	m.SetReconnectionDelay(250)
	if got := m.backoff.Duration(); got < 250 {
		t.Errorf("backoff min not updated: got %v", got)
	}
}

func TestManagerCloseIsIdempotentAndReleasesSubs(t *testing.T) {
	m, fe := fakeManager()
	m.close()
	if !fe.closed {
		t.Error("close() should close the engine")
	}
	if m.ReadyState() != ReadyStateClosed {
		t.Errorf("ReadyState = %v, want closed", m.ReadyState())
	}
	if n := m.subs.Len(); n != 0 {
		t.Errorf("subs.Len() = %d after close, want 0", n)
	}
	// Calling again must not panic even with no pending subs.
	m.close()
}

func TestManagerSocketCreatesOncePerNamespace(t *testing.T) {
	m, _ := fakeManager()
	s1 := m.Socket("/chat")
	s2 := m.Socket("/chat")
	if s1 != s2 {
		t.Error("Socket() should return the same instance for the same namespace")
	}
	s3 := m.Socket("/other")
	if s3 == s1 {
		t.Error("Socket() should return distinct instances for distinct namespaces")
	}
}

func TestManagerDefaultNamespaceIsSlash(t *testing.T) {
	m, _ := fakeManager()
	s := m.Socket("")
	if s.nsp != "/" {
		t.Errorf("nsp = %q, want /", s.nsp)
	}
}

func TestManagerPacketFoldsQueryIntoNspForConnect(t *testing.T) {
	m, fe := fakeManager()
	fe.written = nil

	m.packet(&wire.Packet{Type: wire.CONNECT, Nsp: "/chat", Query: "token=1"})

	if len(fe.written) != 1 {
		t.Fatalf("got %d frames, want 1", len(fe.written))
	}
	frame, ok := fe.written[0].(string)
	if !ok {
		t.Fatalf("frame = %T, want string", fe.written[0])
	}
	if !strings.Contains(frame, "/chat?token=1,") {
		t.Errorf("frame = %q, want it to carry the query-folded namespace", frame)
	}
}

func TestManagerPacketDoesNotFoldQueryForNonConnect(t *testing.T) {
	m, fe := fakeManager()
	fe.written = nil

	m.packet(&wire.Packet{Type: wire.EVENT, Nsp: "/chat", Query: "token=1", Data: []any{"hi"}})

	frame, _ := fe.written[0].(string)
	if strings.Contains(frame, "token=1") {
		t.Errorf("frame = %q, query should only fold for CONNECT", frame)
	}
}

func TestManagerTimeoutConfigurable(t *testing.T) {
	m, _ := fakeManager()
	m.SetTimeout(5 * time.Second)
	if got := m.Timeout(); got == nil || *got != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", got)
	}
}
