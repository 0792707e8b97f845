package compress

import (
	"bytes"
	"testing"
)

func TestBrotliRoundTrip(t *testing.T) {
	codec := Brotli{}
	original := []byte(`{"hello":"world","n":12345}` + string(bytes.Repeat([]byte("x"), 256)))

	compressed, err := codec.Compress(original)
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("round trip mismatch")
	}
}

func TestFlateRoundTrip(t *testing.T) {
	codec := Flate{}
	original := []byte(`["event",{"a":1,"b":[1,2,3]}]`)

	compressed, err := codec.Compress(original)
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("round trip mismatch")
	}
}

func TestCodecNames(t *testing.T) {
	if Brotli{}.Name() != "br" {
		t.Error("unexpected brotli name")
	}
	if Flate{}.Name() != "deflate" {
		t.Error("unexpected flate name")
	}
}
