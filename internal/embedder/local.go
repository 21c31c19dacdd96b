//go:build localmodel

package embedder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/daulet/tokenizers"
	"github.com/knights-analytics/hugot"
)

// Local is an ONNX-backed embedder, built only when the binary is
// compiled with -tags localmodel so the native ONNX runtime dependency
// stays optional. The model directory comes from a ModelProvider and is
// read only, never written or downloaded by Local itself.
type Local struct {
	session   *hugot.Session
	pipeline  *hugot.FeatureExtractionPipeline
	tokenizer *tokenizers.Tokenizer
	dimension int
}

// NewLocal loads the tokenizer and ONNX pipeline from provider's model
// directory.
func NewLocal(ctx context.Context, provider ModelProvider) (Embedder, error) {
	dir, err := provider.ModelDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve model directory: %w", err)
	}

	tok, err := tokenizers.FromFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		tok.Close()
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: dir,
		Name:      "xmlindex-embedder",
	})
	if err != nil {
		session.Destroy()
		tok.Close()
		return nil, fmt.Errorf("create embedding pipeline: %w", err)
	}

	return &Local{session: session, pipeline: pipeline, tokenizer: tok, dimension: 384}, nil
}

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	result, err := l.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding pipeline returned no vectors")
	}
	return result.Embeddings[0], nil
}

func (l *Local) CountTokens(text string) int {
	ids, _ := l.tokenizer.Encode(text, false)
	return len(ids)
}

func (l *Local) Dimension() int { return l.dimension }

func (l *Local) Close() error {
	l.tokenizer.Close()
	return l.session.Destroy()
}
