package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dshills/xmlindex/internal/store"
	"github.com/dshills/xmlindex/pkg/types"
)

// reconcileResult tallies what happened to one file's chunks and records
// the chunk_index -> db_id mapping assigned during this pass, used both
// for parent resolution within the same file and by linkReferences.
type reconcileResult struct {
	reused, embedded, deleted, skipped int
	indexToID                          map[int]int64
}

// reconcile matches freshly chunked content against what the store
// already holds for filePath, keyed by slot (chunk_index, start_line,
// end_line), and applies the reuse/re-embed/insert/delete decision from
// §4.6. chunks is processed in chunk_index order, which the chunker
// already guarantees, so a chunk's parent (an earlier chunk_index) has
// always been assigned its db id before the child needs it.
func (p *Pipeline) reconcile(ctx context.Context, tx *store.Tx, filePath string, chunks, existing []*types.Chunk, onProgress ProgressFunc, fileIndex, totalFiles int) (*reconcileResult, error) {
	bySlot := make(map[types.Slot]*types.Chunk, len(existing))
	for _, prev := range existing {
		bySlot[types.SlotOf(prev)] = prev
	}

	result := &reconcileResult{indexToID: make(map[int]int64, len(chunks))}
	matched := make(map[int64]bool, len(chunks))

	for _, c := range chunks {
		resolveParent(c, result.indexToID)

		prev, found := bySlot[types.SlotOf(c)]
		embedFailed := false
		switch {
		case found && prev.ContentHash == c.ContentHash:
			c.ID = prev.ID
			c.Embedding = prev.Embedding
			if err := tx.Update(ctx, c); err != nil {
				return nil, fmt.Errorf("update reused chunk: %w", err)
			}
			result.reused++

		case found:
			onProgress(StageEmbedding, filePath, fileIndex, totalFiles)
			vec, err := p.Embedder.Embed(ctx, c.EmbeddingText)
			if err != nil {
				log.Printf("pipeline: embed failed for %s chunk %d, keeping its previous version: %v", filePath, c.ChunkIndex, err)
				c.ID = prev.ID
				embedFailed = true
				result.skipped++
				break
			}
			c.Embedding = vec
			c.ID = prev.ID
			if err := tx.Update(ctx, c); err != nil {
				return nil, fmt.Errorf("update re-embedded chunk: %w", err)
			}
			result.embedded++

		default:
			onProgress(StageEmbedding, filePath, fileIndex, totalFiles)
			vec, err := p.Embedder.Embed(ctx, c.EmbeddingText)
			if err != nil {
				log.Printf("pipeline: embed failed for new chunk %d in %s, dropping it from this pass: %v", c.ChunkIndex, filePath, err)
				embedFailed = true
				result.skipped++
				break
			}
			c.Embedding = vec
			if err := tx.Insert(ctx, c); err != nil {
				return nil, fmt.Errorf("insert new chunk: %w", err)
			}
			result.embedded++
		}

		// §7 EmbedError: "Log, skip chunk; do not poison the pipeline."
		// A failed embed on an existing chunk keeps its previous row (so it
		// survives the stale-chunk cleanup below); a failed embed on a
		// brand-new chunk leaves no row and no parent id for any child to
		// resolve against, same as an unresolvable reference.
		if embedFailed && c.ID == 0 {
			continue
		}
		matched[c.ID] = true
		result.indexToID[c.ChunkIndex] = c.ID
	}

	for _, prev := range existing {
		if matched[prev.ID] {
			continue
		}
		if err := tx.Delete(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("delete stale chunk: %w", err)
		}
		result.deleted++
	}

	return result, nil
}

// resolveParent rewrites c.ParentChunkID from a new_chunk_index (the
// only thing the chunker can know while it is still walking the tree)
// into the real db id its parent was just assigned. An unresolvable
// index clears the field rather than pointing at a stale id.
func resolveParent(c *types.Chunk, indexToID map[int]int64) {
	if c.ParentChunkID == nil {
		return
	}
	id, ok := indexToID[int(*c.ParentChunkID)]
	if !ok {
		c.ParentChunkID = nil
		return
	}
	c.ParentChunkID = &id
}

// linkReferences resolves each chunk's referenced sequence names against
// the store and records a sequence_references edge for every hit.
// Unresolved references are skipped silently (§4.6); any other store
// error aborts the file's reconciliation.
//
// Every processed chunk's outgoing edges are cleared before re-linking,
// whether or not it currently carries references: a reused or
// re-embedded chunk is re-resolved on every pass (processFile runs this
// after reconcile for every chunk that pass gave a db id), so clearing first keeps edges
// from an earlier pass of the same caller from accumulating as
// duplicates, and correctly drops an edge whose reference was removed
// from the content.
func (p *Pipeline) linkReferences(ctx context.Context, tx *store.Tx, chunks []*types.Chunk, indexToID map[int]int64) error {
	for _, c := range chunks {
		callerID, ok := indexToID[c.ChunkIndex]
		if !ok {
			continue
		}
		if err := tx.ClearOutgoingReferences(ctx, callerID); err != nil {
			return err
		}
		for _, ref := range c.ReferencedSequences {
			def, err := tx.FindDefinition(ctx, ref)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					continue
				}
				return err
			}
			if err := tx.LinkReference(ctx, callerID, def.ID, ref); err != nil {
				return err
			}
		}
	}
	return nil
}
