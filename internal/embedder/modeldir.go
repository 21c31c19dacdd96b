package embedder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// requiredModelFiles are the artifacts a model directory must contain
// before Local will load it (§6 Model artifact layout).
var requiredModelFiles = []string{
	"config.json",
	"tokenizer_config.json",
	"tokenizer.json",
	"vocab.txt",
	filepath.Join("onnx", "model_quantized.onnx"),
}

// DirModelProvider resolves a fixed, pre-populated directory on disk. It
// never downloads or writes anything; ModelDir only validates that the
// expected artifacts are present.
type DirModelProvider struct {
	Dir string
}

// NewDirModelProvider wraps dir, a model directory the caller has already
// populated.
func NewDirModelProvider(dir string) *DirModelProvider {
	return &DirModelProvider{Dir: dir}
}

func (p *DirModelProvider) ModelDir(ctx context.Context) (string, error) {
	for _, name := range requiredModelFiles {
		full := filepath.Join(p.Dir, name)
		if _, err := os.Stat(full); err != nil {
			return "", fmt.Errorf("model artifact %s: %w", name, err)
		}
	}
	return p.Dir, nil
}
