//go:build !localmodel

package embedder

import (
	"context"
	"errors"
)

// ErrLocalModelNotCompiledIn is returned by NewLocal in binaries built
// without -tags localmodel, keeping the native ONNX runtime and
// tokenizer dependencies optional at build time.
var ErrLocalModelNotCompiledIn = errors.New("local embedding model support not compiled in; rebuild with -tags localmodel")

// NewLocal is a stub in this build; callers should fall back to Fake or
// a remote provider.
func NewLocal(ctx context.Context, provider ModelProvider) (Embedder, error) {
	return nil, ErrLocalModelNotCompiledIn
}
