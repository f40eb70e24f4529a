// Package embedding holds the output of a run: the embedding matrix and the
// list of source paths, kept positionally aligned. Row i of the matrix
// always belongs to path i; the two are only ever written and read together.
package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Set is an embedding matrix with its aligned path list.
type Set struct {
	Dim     int
	Paths   []string
	Vectors [][]float32
}

// New creates an empty set of dim-wide embeddings.
func New(dim int) *Set {
	return &Set{Dim: dim, Paths: []string{}, Vectors: [][]float32{}}
}

// Len returns the number of rows.
func (s *Set) Len() int {
	return len(s.Paths)
}

// Append adds one row. The vector is copied.
func (s *Set) Append(path string, vec []float32) error {
	if len(vec) != s.Dim {
		return fmt.Errorf("embedding: %s has width %d, want %d", path, len(vec), s.Dim)
	}
	s.Paths = append(s.Paths, path)
	s.Vectors = append(s.Vectors, append([]float32(nil), vec...))
	return nil
}

// Validate checks the alignment and width invariants.
func (s *Set) Validate() error {
	if s.Dim < 0 {
		return fmt.Errorf("embedding: negative width %d", s.Dim)
	}
	if len(s.Paths) != len(s.Vectors) {
		return fmt.Errorf("embedding: %d paths but %d vectors", len(s.Paths), len(s.Vectors))
	}
	for i, v := range s.Vectors {
		if len(v) != s.Dim {
			return fmt.Errorf("embedding: row %d (%s) has width %d, want %d", i, s.Paths[i], len(v), s.Dim)
		}
	}
	return nil
}

// Row returns the vector stored for path, or false.
func (s *Set) Row(path string) ([]float32, bool) {
	for i, p := range s.Paths {
		if p == path {
			return s.Vectors[i], true
		}
	}
	return nil, false
}

// Hit is one nearest neighbor result.
type Hit struct {
	Index int
	Path  string
	Score float64
}

// EncodeVector encodes a slice of float32 values into a little-endian IEEE 754
// BLOB without a length prefix.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector decodes a BLOB produced by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding: invalid vector blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
