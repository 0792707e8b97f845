package transport

import (
	"bufio"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"resty.dev/v3"

	"github.com/duplexio/sioclient/compress"
	"github.com/duplexio/sioclient/internal/types"
)

// Polling implements the HTTP long-polling transport: a GET loop that
// blocks until the peer has data (or times out), and POSTs outgoing
// frames as they're written. It exists as a fallback for links where a
// WebSocket upgrade is unavailable.
type Polling struct {
	types.EventEmitter

	uri    string
	opts   *Options
	client *resty.Client

	id atomic.Pointer[string]

	mu     sync.Mutex
	closed bool
}

var _ Socket = (*Polling)(nil)

// NewPolling builds a Polling transport for uri. It does not connect
// until Open.
func NewPolling(uri string, opts *Options) *Polling {
	client := resty.New()
	if opts != nil {
		if opts.RequestTimeout > 0 {
			client.SetTimeout(opts.RequestTimeout)
		}
		if opts.TLSClientConfig != nil {
			client.SetTLSClientConfig(opts.TLSClientConfig)
		}
		for k, vs := range opts.ExtraHeaders {
			for _, v := range vs {
				client.SetHeader(k, v)
			}
		}
	}
	return &Polling{
		EventEmitter: types.NewEventEmitter(),
		uri:          uri,
		opts:         opts,
		client:       client,
	}
}

// Name implements Socket.
func (p *Polling) Name() string { return "polling" }

// ID implements Socket.
func (p *Polling) ID() string {
	if id := p.id.Load(); id != nil {
		return *id
	}
	return ""
}

func (p *Polling) endpoint() string {
	var b strings.Builder
	b.WriteString(p.uri)
	b.WriteString(strings.TrimRight(p.opts.path(), "/"))
	if p.opts != nil && p.opts.Query != "" {
		b.WriteByte('?')
		b.WriteString(p.opts.Query)
	}
	return b.String()
}

// Open implements Socket: emits "open" immediately (long-polling has no
// handshake of its own below the protocol layer) and starts the poll loop.
func (p *Polling) Open() {
	p.Emit("open")
	go p.pollLoop()
}

func (p *Polling) pollLoop() {
	for {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}

		resp, err := p.client.R().Get(p.endpoint())
		if err != nil {
			p.Emit("error", err)
			p.Emit("close", "transport error")
			return
		}
		if resp.IsError() {
			p.Emit("error", errors.New(resp.String()))
			continue
		}

		for _, frame := range splitPayload(resp.String()) {
			p.Emit("data", frame)
		}
	}
}

// splitPayload breaks a polling response body into individual frames: one
// frame per line, matching the newline-delimited batching a long-polling
// GET uses to return several queued frames in one round trip.
func splitPayload(body string) []string {
	var frames []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			frames = append(frames, line)
		}
	}
	return frames
}

// Write implements Socket: POSTs frame as the request body.
func (p *Polling) Write(frame Frame, opts *WriteOptions) error {
	wantCompress := opts != nil && opts.Compress
	var algo *compress.Algorithm
	if p.opts != nil {
		algo = p.opts.CompressionAlgorithm
	}

	req := p.client.R()
	var err error
	switch f := frame.(type) {
	case string:
		payload := []byte(f)
		if wantCompress && algo != nil && algo.Text != nil {
			if payload, err = algo.Text.Compress(payload); err != nil {
				return err
			}
		}
		_, err = req.SetBody(payload).Post(p.endpoint())
	case []byte:
		payload := f
		if wantCompress && algo != nil && algo.Binary != nil {
			if payload, err = algo.Binary.Compress(payload); err != nil {
				return err
			}
		}
		_, err = req.SetBody(payload).Post(p.endpoint())
	default:
		return ErrUnsupportedFrame
	}
	return err
}

// Close implements Socket.
func (p *Polling) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.client.Close()
}
