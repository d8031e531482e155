package pocketrag

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultDimensions is the embedding dimensionality assumed when a store or
// provider is not configured otherwise.
const DefaultDimensions = 2048

// EncodeVector serializes a vector as a raw contiguous little-endian float32
// byte buffer of length 4*len(v). This is the wire and storage format shared
// by the stores and the embedding providers.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector parses a raw little-endian float32 buffer back into a vector.
// The buffer length must be a multiple of 4.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode vector: buffer length %d not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
