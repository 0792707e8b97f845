package sio

import (
	"github.com/duplexio/sioclient/internal/types"
	"github.com/duplexio/sioclient/transport"
)

// fakeEngine is a hand-written test double for transport.Socket: it never
// touches the network, and lets a test drive open/data/close/error events
// and inspect everything written to it.
type fakeEngine struct {
	types.EventEmitter

	id        string
	written   []any
	writeOpts []*transport.WriteOptions
	closed    bool
}

var _ transport.Socket = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{EventEmitter: types.NewEventEmitter()}
}

func (f *fakeEngine) Open() {}

func (f *fakeEngine) Write(frame transport.Frame, opts *transport.WriteOptions) error {
	f.written = append(f.written, frame)
	f.writeOpts = append(f.writeOpts, opts)
	return nil
}

func (f *fakeEngine) Close() { f.closed = true }

func (f *fakeEngine) ID() string { return f.id }

func (f *fakeEngine) Name() string { return "fake" }

// fakeManager builds a Manager wired to a fakeEngine instead of a real
// transport, bypassing Manager.buildEngine/Open's network dial so tests can
// drive the protocol state machine directly.
func fakeManager() (*Manager, *fakeEngine) {
	m := NewManager("http://example.invalid", WithAutoConnect(false))

	fe := newFakeEngine()
	m.engine = fe
	m.readyState.Store(ReadyStateOpen)
	m.onopenForTest()
	return m, fe
}

// onopenForTest exposes onopen to _test.go files in this package without
// widening the exported surface.
func (m *Manager) onopenForTest() { m.onopen() }
