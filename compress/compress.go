// Package compress implements the frame compression strategies applied at
// the transport write boundary (transport.Options.CompressionAlgorithm)
// when an outgoing frame's WriteOptions.Compress flag is set.
package compress

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
)

// Codec compresses and decompresses a single frame's bytes.
type Codec interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
	Name() string
}

// Brotli is a Codec backed by andybalholm/brotli, favored for its
// compression ratio on the typically-JSON-shaped event payloads this
// protocol carries.
type Brotli struct {
	// Quality in [0,11]; zero uses brotli's default.
	Quality int
}

var _ Codec = Brotli{}

// Name implements Codec.
func (Brotli) Name() string { return "br" }

// Compress implements Codec.
func (b Brotli) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.quality())
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b Brotli) quality() int {
	if b.Quality <= 0 {
		return brotli.DefaultCompression
	}
	return b.Quality
}

// Decompress implements Codec.
func (Brotli) Decompress(p []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(p))
	return io.ReadAll(r)
}

// Flate is a Codec backed by klauspost/compress/flate, a drop-in,
// faster-but-lower-ratio alternative to Brotli for latency-sensitive
// links.
type Flate struct {
	// Level is the flate compression level; zero uses flate's default.
	Level int
}

var _ Codec = Flate{}

// Name implements Codec.
func (Flate) Name() string { return "deflate" }

// Compress implements Codec.
func (f Flate) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := f.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress implements Codec.
func (Flate) Decompress(p []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(p))
	defer r.Close()
	return io.ReadAll(r)
}

// Algorithm pairs the Codec applied to text frames with the one applied to
// binary frames, since the two favor different strategies (ratio for
// infrequent binary attachments, speed for the far more common text frames).
type Algorithm struct {
	Text   Codec
	Binary Codec
}

// DefaultAlgorithm pairs Flate for text frames with Brotli for binary
// attachment frames, matching the teacher's declared dependency on both.
func DefaultAlgorithm() *Algorithm {
	return &Algorithm{Text: Flate{}, Binary: Brotli{}}
}
