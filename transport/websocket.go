package transport

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/duplexio/sioclient/compress"
	"github.com/duplexio/sioclient/internal/types"
)

// ErrNotOpen is returned from Write when called before the transport has
// emitted "open".
var ErrNotOpen = errors.New("transport: not open")

// ErrUnsupportedFrame is returned from Write when frame is neither string
// nor []byte.
var ErrUnsupportedFrame = errors.New("transport: unsupported frame type")

// WebSocket is the full-duplex transport: a single upgraded TCP connection
// carrying text and binary frames both ways, with no polling fallback.
type WebSocket struct {
	types.EventEmitter

	uri    string
	opts   *Options
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	id   string

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Socket = (*WebSocket)(nil)

// NewWebSocket builds a WebSocket transport for uri (an http(s):// URI,
// rewritten to ws(s):// internally). It does not connect until Open.
func NewWebSocket(uri string, opts *Options) *WebSocket {
	return &WebSocket{
		EventEmitter: types.NewEventEmitter(),
		uri:          uri,
		opts:         opts,
		dialer: &websocket.Dialer{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig(opts),
			Subprotocols:    protocols(opts),
		},
		closed: make(chan struct{}),
	}
}

func tlsConfig(opts *Options) *tls.Config {
	if opts == nil {
		return nil
	}
	return opts.TLSClientConfig
}

func protocols(opts *Options) []string {
	if opts == nil {
		return nil
	}
	return opts.Protocols
}

func (w *WebSocket) wsURI() (string, error) {
	u, err := url.Parse(w.uri)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + w.opts.path()
	if w.opts != nil && w.opts.Query != "" {
		if u.RawQuery == "" {
			u.RawQuery = w.opts.Query
		} else {
			u.RawQuery += "&" + w.opts.Query
		}
	}
	return u.String(), nil
}

// Name implements Socket.
func (w *WebSocket) Name() string { return "websocket" }

// ID implements Socket.
func (w *WebSocket) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

// Open implements Socket: dials in its own goroutine and emits open/error.
func (w *WebSocket) Open() {
	go w.doOpen()
}

func (w *WebSocket) doOpen() {
	uri, err := w.wsURI()
	if err != nil {
		w.Emit("error", err)
		return
	}

	headers := http.Header{}
	if w.opts != nil {
		for k, vs := range w.opts.ExtraHeaders {
			for _, v := range vs {
				headers.Add(k, v)
			}
		}
	}

	conn, _, err := w.dialer.Dial(uri, headers)
	if err != nil {
		w.Emit("error", err)
		return
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.Emit("open")
	go w.readLoop(conn)
}

func (w *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				w.Emit("close", "transport close")
			default:
				w.Emit("error", err)
				w.Emit("close", "transport error")
			}
			return
		}
		switch msgType {
		case websocket.TextMessage:
			w.Emit("data", string(data))
		case websocket.BinaryMessage:
			w.Emit("data", data)
		}
	}
}

// Write implements Socket.
func (w *WebSocket) Write(frame Frame, opts *WriteOptions) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	wantCompress := opts != nil && opts.Compress
	conn.EnableWriteCompression(wantCompress)

	algo := w.algorithm()

	switch f := frame.(type) {
	case string:
		payload := []byte(f)
		if wantCompress && algo != nil && algo.Text != nil {
			compressed, err := algo.Text.Compress(payload)
			if err != nil {
				return err
			}
			payload = compressed
		}
		return conn.WriteMessage(websocket.TextMessage, payload)
	case []byte:
		payload := f
		if wantCompress && algo != nil && algo.Binary != nil {
			compressed, err := algo.Binary.Compress(payload)
			if err != nil {
				return err
			}
			payload = compressed
		}
		return conn.WriteMessage(websocket.BinaryMessage, payload)
	default:
		return ErrUnsupportedFrame
	}
}

func (w *WebSocket) algorithm() *compress.Algorithm {
	if w.opts == nil {
		return nil
	}
	return w.opts.CompressionAlgorithm
}

// Close implements Socket.
func (w *WebSocket) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}
