// Package embedder defines the minimal contract the pipeline and search
// engine depend on for turning text into vectors, plus a deterministic
// test double and an optional local ONNX-backed implementation. Model
// selection, download, and caching are the caller's responsibility; this
// package only consumes an already-resolved model directory.
package embedder

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Embed is called with an empty string.
var ErrEmptyText = errors.New("text cannot be empty")

// Embedder produces a vector embedding for a piece of text and reports the
// token cost of text under its own tokenizer, so the chunker's token
// budget and the embedder's actual cost can be compared.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	CountTokens(text string) int
	Dimension() int
	Close() error
}

// ModelProvider resolves the on-disk directory holding a model's
// artifacts (config.json, tokenizer_config.json, tokenizer.json,
// vocab.txt, onnx/model_quantized.onnx). Downloading or caching the model
// is the provider's concern; the embedder only reads from the result.
type ModelProvider interface {
	ModelDir(ctx context.Context) (string, error)
}
