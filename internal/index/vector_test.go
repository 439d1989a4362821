package index

import (
	"math"
	"testing"
)

func TestEncodeDecodeVector(t *testing.T) {
	original := []float32{0, 1.5, -2.25, math.MaxFloat32, math.SmallestNonzeroFloat32}

	decoded := decodeVector(encodeVector(original))
	if len(decoded) != len(original) {
		t.Fatalf("expected %d values, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("value %d: expected %v, got %v", i, original[i], decoded[i])
		}
	}

	if encodeVector(nil) != nil {
		t.Error("expected nil encoding for nil vector")
	}
	if decodeVector([]byte{1, 2, 3}) != nil {
		t.Error("expected nil for a blob that is not a multiple of 4 bytes")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, expected: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, expected: -1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expected: 0},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, expected: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0},
		{name: "empty", a: nil, b: nil, expected: 0},
	}

	const epsilon = 0.0001
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > epsilon {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestMetadataEncoding(t *testing.T) {
	b, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("failed to encode nil metadata: %v", err)
	}
	if string(b) != "{}" {
		t.Errorf("expected '{}', got %q", b)
	}

	m, err := decodeMetadata(nil)
	if err != nil || m == nil || len(m) != 0 {
		t.Errorf("expected empty non-nil map, got %v (%v)", m, err)
	}

	if _, err := decodeMetadata([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
}
