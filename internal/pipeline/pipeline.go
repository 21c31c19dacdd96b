// Package pipeline implements the Pipeline (C6): it orchestrates
// Scanner -> Chunker -> (reuse or embed) -> Store, turning a set of file
// changes into a reconciled chunk table, one file at a time.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/xmlindex/internal/chunker"
	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/scan"
	"github.com/dshills/xmlindex/internal/store"
)

// Stage is one of the four progress states a processChanges call reports.
// Scanning is reported once at the start and complete once at the end;
// updating and embedding are interleaved per file rather than run as two
// separate phases.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageEmbedding Stage = "embedding"
	StageUpdating  Stage = "updating"
	StageComplete  Stage = "complete"
)

// ProgressFunc receives one scanning notification, one updating
// notification per changed file (before that file is reconciled), one
// embedding notification per chunk sent to the embedder, and one
// complete notification.
type ProgressFunc func(stage Stage, detail string, fileIndex, totalFiles int)

// Stats summarizes one processChanges run.
type Stats struct {
	FilesChanged int
	FilesDeleted int
	FilesFailed  int
	ChunksReused int
	ChunksEmbedded int
	ChunksDeleted  int
	ChunksSkipped  int
	Errors         []error
}

// Pipeline wires a Scanner, Chunker, Store, and Embedder together.
type Pipeline struct {
	Scanner  *scan.Scanner
	Chunker  *chunker.Chunker
	Store    *store.Store
	Embedder embedder.Embedder
}

// New builds a Pipeline from its four collaborators.
func New(s *scan.Scanner, c *chunker.Chunker, st *store.Store, e embedder.Embedder) *Pipeline {
	return &Pipeline{Scanner: s, Chunker: c, Store: st, Embedder: e}
}

// ProcessInitial is the first pass after service start: it warm-starts
// the scanner from the store's recorded file hashes (so files untouched
// since the last run are not re-flagged as changed) and then walks dirs.
func (p *Pipeline) ProcessInitial(ctx context.Context, dirs []string, onProgress ProgressFunc) (*Stats, error) {
	hashes, err := p.Store.LatestFileHashes(ctx)
	if err == nil {
		p.Scanner.WarmStart(hashes)
	}
	return p.processChanges(ctx, dirs, onProgress)
}

// ProcessIncremental re-scans dirs (typically a single changed file's
// directory, per notify_file_change) without altering warm-start state.
func (p *Pipeline) ProcessIncremental(ctx context.Context, dirs []string, onProgress ProgressFunc) (*Stats, error) {
	return p.processChanges(ctx, dirs, onProgress)
}

func noopProgress(Stage, string, int, int) {}

// processChanges is the single funnel both entry points pass through
// (§4.6): scan, then reconcile each changed file's chunks in turn.
func (p *Pipeline) processChanges(ctx context.Context, dirs []string, onProgress ProgressFunc) (*Stats, error) {
	if onProgress == nil {
		onProgress = noopProgress
	}

	onProgress(StageScanning, "", 0, 0)
	changes, err := p.Scanner.Scan(ctx, dirs)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	stats := &Stats{}
	total := len(changes)
	for i, change := range changes {
		onProgress(StageUpdating, change.Path, i, total)

		if err := p.processFile(ctx, change, onProgress, i, total, stats); err != nil {
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", change.Path, err))
			continue
		}
		if change.Exists {
			stats.FilesChanged++
		} else {
			stats.FilesDeleted++
		}
	}

	onProgress(StageComplete, "", total, total)
	return stats, nil
}

// processFile reconciles one file's chunks atomically: a deleted file
// drops every chunk it owns, an existing file is re-chunked and matched
// against what the store already has for that path (§4.6).
func (p *Pipeline) processFile(ctx context.Context, change scan.FileChange, onProgress ProgressFunc, fileIndex, totalFiles int, stats *Stats) error {
	tx, err := p.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !change.Exists {
		if err := tx.DeleteByFile(ctx, change.Path); err != nil {
			return fmt.Errorf("delete chunks for removed file: %w", err)
		}
		return tx.Commit()
	}

	content, err := os.ReadFile(change.Path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	chunks, err := p.Chunker.ChunkFile(change.Path, content)
	if err != nil {
		return fmt.Errorf("chunk file: %w", err)
	}

	existing, err := tx.GetByFile(ctx, change.Path)
	if err != nil {
		return fmt.Errorf("load existing chunks: %w", err)
	}

	result, err := p.reconcile(ctx, tx, change.Path, chunks, existing, onProgress, fileIndex, totalFiles)
	if err != nil {
		return err
	}
	stats.ChunksReused += result.reused
	stats.ChunksEmbedded += result.embedded
	stats.ChunksDeleted += result.deleted
	stats.ChunksSkipped += result.skipped

	if err := p.linkReferences(ctx, tx, chunks, result.indexToID); err != nil {
		return fmt.Errorf("link references: %w", err)
	}

	return tx.Commit()
}
