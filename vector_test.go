package pocketrag

import (
	"bytes"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.14159}
	decoded, err := DecodeVector(EncodeVector(v))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(v) {
		t.Fatalf("expected %d floats, got %d", len(v), len(decoded))
	}
	for i := range v {
		if decoded[i] != v[i] {
			t.Errorf("index %d: got %v, want %v", i, decoded[i], v[i])
		}
	}
}

func TestEncodeVectorLittleEndian(t *testing.T) {
	// 1.0 as IEEE 754 float32 is 0x3F800000.
	got := EncodeVector([]float32{1.0})
	want := []byte{0x00, 0x00, 0x80, 0x3F}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestDecodeVectorBadLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for a buffer that is not a multiple of 4 bytes")
	}
}

func TestDecodeVectorEmpty(t *testing.T) {
	decoded, err := DecodeVector(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty vector, got %d floats", len(decoded))
	}
}
