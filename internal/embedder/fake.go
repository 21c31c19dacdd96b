package embedder

import (
	"context"
	"crypto/sha256"
	"strings"
)

// FakeDimension is the vector width produced by Fake.
const FakeDimension = 384

// Fake is a deterministic embedder with no model dependency: the same
// text always yields the same vector, derived from its SHA-256 hash.
// Used by pipeline and search tests, and as a safety-net default when no
// real provider is configured.
type Fake struct{}

// NewFake returns a ready-to-use Fake embedder.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, FakeDimension)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}

// CountTokens approximates token count as whitespace-separated words,
// matching the rough granularity real subword tokenizers produce for
// prose-like embedding text.
func (f *Fake) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (f *Fake) Dimension() int { return FakeDimension }

func (f *Fake) Close() error { return nil }
