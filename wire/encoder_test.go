package wire

import "testing"

func idPtr(v uint64) *uint64 { return &v }

func TestEncodeConnect(t *testing.T) {
	codec := JSONCodec{}
	frames, err := codec.Encode(&Packet{Type: CONNECT, Nsp: "/"})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0] != "0" {
		t.Errorf("got %v, want [\"0\"]", frames)
	}
}

func TestEncodeEventWithNamespaceAndData(t *testing.T) {
	codec := JSONCodec{}
	frames, err := codec.Encode(&Packet{
		Type: EVENT,
		Nsp:  "/chat",
		Data: []any{"hello", float64(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `2/chat,["hello",1]`
	if len(frames) != 1 || frames[0] != want {
		t.Errorf("got %v, want [%q]", frames, want)
	}
}

func TestEncodeAckWithId(t *testing.T) {
	codec := JSONCodec{}
	frames, err := codec.Encode(&Packet{
		Type: ACK,
		Nsp:  "/",
		Id:   idPtr(12),
		Data: []any{"ok"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `312["ok"]`
	if len(frames) != 1 || frames[0] != want {
		t.Errorf("got %v, want [%q]", frames, want)
	}
}

func TestEncodeBinaryEventSplitsAttachment(t *testing.T) {
	codec := JSONCodec{}
	payload := []byte{0x01, 0x02, 0x03}
	frames, err := codec.Encode(&Packet{
		Type: EVENT,
		Nsp:  "/",
		Data: []any{"upload", payload},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	text, ok := frames[0].(string)
	if !ok || text != `51-["upload",{"_placeholder":true,"num":0}]` {
		t.Errorf("unexpected text frame: %v", frames[0])
	}
	buf, ok := frames[1].([]byte)
	if !ok || string(buf) != string(payload) {
		t.Errorf("unexpected binary frame: %v", frames[1])
	}
}

func TestDecodeEvent(t *testing.T) {
	var got *Packet
	d := &JSONDecoder{}
	if err := d.Add(`2/chat,["hello",1]`, func(p *Packet) { got = p }); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("onPacket not called")
	}
	if got.Type != EVENT || got.Nsp != "/chat" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeBinaryEventReassembles(t *testing.T) {
	var got *Packet
	d := &JSONDecoder{}
	onPacket := func(p *Packet) { got = p }

	if err := d.Add(`51-["upload",{"_placeholder":true,"num":0}]`, onPacket); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("onPacket called before attachment arrived")
	}
	if err := d.Add([]byte{0xAA, 0xBB}, onPacket); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("onPacket not called after attachment arrived")
	}
	if got.Type != EVENT {
		t.Errorf("got type %v, want EVENT", got.Type)
	}
	data, ok := got.Data.([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("unexpected reconstructed data: %#v", got.Data)
	}
	buf, ok := data[1].([]byte)
	if !ok || string(buf) != "\xAA\xBB" {
		t.Errorf("unexpected reconstructed attachment: %#v", data[1])
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	d := &JSONDecoder{}
	if err := d.Add("9oops", func(*Packet) {}); err == nil {
		t.Error("expected error for unknown packet type")
	}
}

func TestHasBinaryDetectsNested(t *testing.T) {
	if !HasBinary([]any{"a", map[string]any{"b": []byte{1}}}) {
		t.Error("expected HasBinary to find nested []byte")
	}
	if HasBinary([]any{"a", "b"}) {
		t.Error("expected HasBinary to be false for plain strings")
	}
}
