package postgres

import (
	"strings"
	"testing"
)

func TestSerializeEmbedding(t *testing.T) {
	tests := []struct {
		in   []float32
		want string
	}{
		{[]float32{0.1, 0.2, 0.3}, "[0.1,0.2,0.3]"},
		{[]float32{1, -2, 0}, "[1,-2,0]"},
		{[]float32{}, "[]"},
	}
	for _, tt := range tests {
		if got := serializeEmbedding(tt.in); got != tt.want {
			t.Errorf("serializeEmbedding(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVectorType(t *testing.T) {
	s := New(nil)
	if got := s.vectorType(); got != "vector" {
		t.Errorf("vectorType() = %q", got)
	}
	s = New(nil, WithEmbeddingDimension(2048))
	if got := s.vectorType(); got != "vector(2048)" {
		t.Errorf("vectorType() = %q", got)
	}
}

func TestHNSWWithClause(t *testing.T) {
	s := New(nil)
	if got := s.hnswWithClause(); got != "" {
		t.Errorf("hnswWithClause() = %q", got)
	}

	s = New(nil, WithHNSWM(32), WithEFConstruction(128))
	got := s.hnswWithClause()
	if !strings.Contains(got, "m = 32") || !strings.Contains(got, "ef_construction = 128") {
		t.Errorf("hnswWithClause() = %q", got)
	}
	if !strings.HasPrefix(got, " WITH (") {
		t.Errorf("hnswWithClause() = %q", got)
	}
}
