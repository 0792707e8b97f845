package wire

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec is an alternate wire format: the same packet shape as
// JSONCodec, but each packet is one msgpack-encoded byte frame instead of
// a JSON string. Namespaces that
// negotiate this codec (e.g. for payload-size-sensitive links) get it by
// constructing a Manager with WithCodec(MsgpackCodec{}) instead of the
// default.
type MsgpackCodec struct{}

var _ Encoder = MsgpackCodec{}

// Encode implements Encoder. Unlike JSONCodec, binary attachments are not
// deconstructed: msgpack encodes []byte natively, so the whole packet
// collapses to a single frame.
func (MsgpackCodec) Encode(p *Packet) ([]any, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, err
	}
	return []any{b}, nil
}

// MsgpackDecoder decodes frames produced by MsgpackCodec. Every frame is a
// complete packet; there is no multi-frame reconstruction phase.
type MsgpackDecoder struct{}

var _ Decoder = (*MsgpackDecoder)(nil)

// Add implements Decoder.
func (*MsgpackDecoder) Add(frame any, onPacket func(*Packet)) error {
	b, ok := frame.([]byte)
	if !ok {
		return ErrInvalidPayload
	}
	var p Packet
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return err
	}
	onPacket(&p)
	return nil
}

// Destroy implements Decoder; MsgpackDecoder holds no cross-frame state.
func (*MsgpackDecoder) Destroy() {}
