// Package embeddings generates the vectors behind technique similarity
// search. Production uses a local Ollama model; the static driver
// produces deterministic vectors for tests and offline use.
package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns text into fixed-dimension vectors. Blank input always
// embeds to the zero vector without touching the backend, so callers
// can store "no signal" rows cheaply.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Static is a deterministic hash-based embedder. Equal texts produce
// equal unit vectors and distinct texts almost always diverge, which is
// all the test suite and the offline driver need.
type Static struct {
	dims int
}

// NewStatic creates a static embedder with the given dimensionality.
func NewStatic(dims int) *Static {
	if dims <= 0 {
		dims = 384
	}
	return &Static{dims: dims}
}

func (s *Static) Dimensions() int { return s.dims }

func (s *Static) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, s.dims)
	if strings.TrimSpace(text) == "" {
		return v, nil
	}
	// Token hashing: every word bumps a handful of buckets so similar
	// texts share mass.
	var norm float64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(word))
		seed := h.Sum64()
		for k := 0; k < 4; k++ {
			idx := int((seed >> (k * 8)) % uint64(s.dims))
			v[idx] += 1
		}
	}
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) * inv)
		}
	}
	return v, nil
}

func (s *Static) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// IsZero reports whether a vector carries no signal.
func IsZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
