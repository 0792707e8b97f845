package wire

// Placeholder is the sentinel object the encoder substitutes for each
// binary value found while walking a packet's Data, and the decoder looks
// for while walking it back.
type Placeholder struct {
	Placeholder bool `json:"_placeholder" msgpack:"_placeholder"`
	Num         int  `json:"num" msgpack:"num"`
}

// deconstructPacket walks p.Data depth-first, replacing every []byte it
// finds with a Placeholder and collecting the removed bytes in order. The
// returned Packet is a shallow copy safe to JSON-encode as text; buffers
// holds the extracted binary attachments in attachment order.
func deconstructPacket(p *Packet) (out *Packet, buffers [][]byte) {
	cp := *p
	cp.Data = deconstructValue(p.Data, &buffers)
	n := uint64(len(buffers))
	cp.Attachments = &n
	return &cp, buffers
}

func deconstructValue(v any, buffers *[][]byte) any {
	switch val := v.(type) {
	case []byte:
		idx := len(*buffers)
		*buffers = append(*buffers, val)
		return Placeholder{Placeholder: true, Num: idx}
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = deconstructValue(elem, buffers)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = deconstructValue(elem, buffers)
		}
		return out
	default:
		return v
	}
}

// reconstructPacket walks p.Data depth-first, replacing every Placeholder
// (or its map[string]any decode shape) with the corresponding entry from
// buffers.
func reconstructPacket(p *Packet, buffers [][]byte) *Packet {
	cp := *p
	cp.Data = reconstructValue(p.Data, buffers)
	cp.Attachments = nil
	return &cp
}

func reconstructValue(v any, buffers [][]byte) any {
	switch val := v.(type) {
	case map[string]any:
		if isPlaceholder, ok := val["_placeholder"].(bool); ok && isPlaceholder {
			if num, ok := asInt(val["num"]); ok && num >= 0 && num < len(buffers) {
				return buffers[num]
			}
			return nil
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = reconstructValue(elem, buffers)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = reconstructValue(elem, buffers)
		}
		return out
	default:
		return v
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// HasBinary reports whether v contains a []byte anywhere in its structure,
// determining whether a packet must be encoded as BINARY_EVENT/BINARY_ACK
// rather than EVENT/ACK.
func HasBinary(v any) bool {
	switch val := v.(type) {
	case []byte:
		return true
	case []any:
		for _, elem := range val {
			if HasBinary(elem) {
				return true
			}
		}
	case map[string]any:
		for _, elem := range val {
			if HasBinary(elem) {
				return true
			}
		}
	}
	return false
}
