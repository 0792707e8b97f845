package wire

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Encoder turns one Packet into an ordered list of wire frames. A frame is
// either a string (the text frame) or a []byte (a binary attachment,
// always following the text frame that referenced it via Placeholder).
type Encoder interface {
	Encode(p *Packet) ([]any, error)
}

// Decoder reassembles frames back into Packets. Feed it frames in the
// order they arrive; it calls onPacket exactly once per complete packet,
// buffering internally while attachments are still outstanding.
type Decoder interface {
	Add(frame any, onPacket func(*Packet)) error
	Destroy()
}

// JSONCodec is the default Encoder (JSONDecoder decodes its output): JSON payloads, binary
// attachments deconstructed into Placeholder objects and streamed as
// separate frames, matching the wire contract honored regardless of the
// underlying transport implementation.
type JSONCodec struct{}

var _ Encoder = JSONCodec{}

// Encode implements Encoder.
func (JSONCodec) Encode(p *Packet) ([]any, error) {
	if HasBinary(p.Data) {
		return encodeAsBinary(p)
	}
	s, err := encodeAsString(p)
	if err != nil {
		return nil, err
	}
	return []any{s}, nil
}

func encodeAsString(p *Packet) (string, error) {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(p.Type)))

	if p.Nsp != "" && p.Nsp != "/" {
		b.WriteString(p.Nsp)
		b.WriteByte(',')
	}
	if p.Id != nil {
		b.WriteString(strconv.FormatUint(*p.Id, 10))
	}
	if p.Data != nil {
		payload, err := json.Marshal(p.Data)
		if err != nil {
			return "", err
		}
		b.Write(payload)
	}
	return b.String(), nil
}

func encodeAsBinary(p *Packet) ([]any, error) {
	deconstructed, buffers := deconstructPacket(p)
	switch deconstructed.Type {
	case EVENT:
		deconstructed.Type = BINARY_EVENT
	case ACK:
		deconstructed.Type = BINARY_ACK
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(int(deconstructed.Type)))
	b.WriteString(strconv.FormatUint(*deconstructed.Attachments, 10))
	b.WriteByte('-')
	if deconstructed.Nsp != "" && deconstructed.Nsp != "/" {
		b.WriteString(deconstructed.Nsp)
		b.WriteByte(',')
	}
	if deconstructed.Id != nil {
		b.WriteString(strconv.FormatUint(*deconstructed.Id, 10))
	}
	payload, err := json.Marshal(deconstructed.Data)
	if err != nil {
		return nil, err
	}
	b.Write(payload)

	frames := make([]any, 0, 1+len(buffers))
	frames = append(frames, b.String())
	for _, buf := range buffers {
		frames = append(frames, buf)
	}
	return frames, nil
}
