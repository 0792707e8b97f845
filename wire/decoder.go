package wire

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidPayload is returned when a text frame cannot be parsed as a
// packet of one of the known types.
var ErrInvalidPayload = errors.New("wire: invalid payload")

// JSONDecoder is the streaming counterpart to JSONCodec: Add is called
// once per frame, in arrival order, and drives onPacket whenever a full
// packet (including any trailing binary attachments) has been assembled.
type JSONDecoder struct {
	reconstructing *Packet
	buffers        [][]byte
	remaining      int
}

var _ Decoder = (*JSONDecoder)(nil)

// Add implements Decoder.
func (d *JSONDecoder) Add(frame any, onPacket func(*Packet)) error {
	switch f := frame.(type) {
	case string:
		p, err := decodeString(f)
		if err != nil {
			return err
		}
		if p.Attachments != nil && *p.Attachments > 0 {
			d.reconstructing = p
			d.buffers = make([][]byte, 0, *p.Attachments)
			d.remaining = int(*p.Attachments)
			return nil
		}
		onPacket(p)
		return nil
	case []byte:
		if d.reconstructing == nil {
			return ErrInvalidPayload
		}
		d.buffers = append(d.buffers, f)
		d.remaining--
		if d.remaining <= 0 {
			full := reconstructPacket(d.reconstructing, d.buffers)
			switch full.Type {
			case BINARY_EVENT:
				full.Type = EVENT
			case BINARY_ACK:
				full.Type = ACK
			}
			d.Destroy()
			onPacket(full)
		}
		return nil
	default:
		return ErrInvalidPayload
	}
}

// Destroy discards any in-progress reconstruction, e.g. on transport error.
func (d *JSONDecoder) Destroy() {
	d.reconstructing = nil
	d.buffers = nil
	d.remaining = 0
}

func decodeString(s string) (*Packet, error) {
	if len(s) == 0 {
		return nil, ErrInvalidPayload
	}
	i := 0

	typeDigit := s[i] - '0'
	if typeDigit > 9 {
		return nil, ErrInvalidPayload
	}
	t := PacketType(typeDigit)
	if !t.Valid() {
		return nil, ErrInvalidPayload
	}
	i++

	p := &Packet{Type: t, Nsp: "/"}

	if t == BINARY_EVENT || t == BINARY_ACK {
		dash := strings.IndexByte(s[i:], '-')
		if dash < 0 {
			return nil, ErrInvalidPayload
		}
		n, err := strconv.ParseUint(s[i:i+dash], 10, 64)
		if err != nil {
			return nil, ErrInvalidPayload
		}
		p.Attachments = &n
		i += dash + 1
	}

	if i < len(s) && s[i] == '/' {
		end := strings.IndexByte(s[i:], ',')
		if end < 0 {
			p.Nsp = s[i:]
			i = len(s)
		} else {
			p.Nsp = s[i : i+end]
			i += end + 1
		}
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.ParseUint(s[start:i], 10, 64)
		if err != nil {
			return nil, ErrInvalidPayload
		}
		p.Id = &id
	}

	if i < len(s) {
		var data any
		if err := json.Unmarshal([]byte(s[i:]), &data); err != nil {
			return nil, ErrInvalidPayload
		}
		p.Data = data
	}

	return p, nil
}
