package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/xmlindex/pkg/types"
)

// FindDefinition resolves a "type:name" reference (as produced by the
// chunker's reference extractor, e.g. "sequence:ValidateRequest") to the
// chunk that defines it.
//
// The qualifier ("type") is ignored unless StrictQualifierMatch is set;
// this preserves the observed historical behavior rather than silently
// tightening it (see DESIGN.md for the resolved open question).
func (x *crud) FindDefinition(ctx context.Context, ref string) (*types.Chunk, error) {
	typ, name := splitRef(ref)
	if name == "" {
		return nil, types.ErrNotFound
	}

	var chunk *types.Chunk
	var err error
	if x.StrictQualifierMatch && typ != "" {
		chunk, err = x.queryDefinition(ctx,
			`WHERE is_sequence_definition = 1 AND sequence_key = ? AND resource_type = ? LIMIT 1`,
			name, typ)
	} else {
		chunk, err = x.queryDefinition(ctx,
			`WHERE is_sequence_definition = 1 AND sequence_key = ? LIMIT 1`, name)
	}
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		return nil, types.ErrNotFound
	}
	return chunk, nil
}

func (x *crud) queryDefinition(ctx context.Context, whereClause string, args ...any) (*types.Chunk, error) {
	row := x.q.QueryRowContext(ctx, selectChunkColumns+" "+whereClause, args...)
	c, err := scanChunkRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// splitRef splits a "type:name" reference into its two parts. A reference
// with no colon is treated as a bare name with an empty type.
func splitRef(ref string) (typ, name string) {
	i := strings.IndexByte(ref, ':')
	if i < 0 {
		return "", ref
	}
	return ref[:i], ref[i+1:]
}

// ClearOutgoingReferences deletes every edge callerChunkID is the caller
// of. The pipeline calls this before re-resolving a chunk's references on
// each pass so edges from an earlier run of the same caller don't
// accumulate as duplicates across re-indexes.
func (x *crud) ClearOutgoingReferences(ctx context.Context, callerChunkID int64) error {
	_, err := x.q.ExecContext(ctx, `DELETE FROM sequence_references WHERE caller_chunk_id = ?`, callerChunkID)
	if err != nil {
		return fmt.Errorf("clear outgoing references: %w", err)
	}
	return nil
}

// CountOutgoingReferences returns how many sequence_references rows have
// callerChunkID as their caller. Used by tests to confirm re-indexing the
// same caller does not accumulate duplicate edges.
func (x *crud) CountOutgoingReferences(ctx context.Context, callerChunkID int64) (int, error) {
	var n int
	err := x.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sequence_references WHERE caller_chunk_id = ?`, callerChunkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outgoing references: %w", err)
	}
	return n, nil
}

// LinkReference records a resolved caller -> callee edge (§4.6 step, §9
// Cyclic references design note).
func (x *crud) LinkReference(ctx context.Context, callerChunkID, calleeChunkID int64, sequenceKey string) error {
	_, err := x.q.ExecContext(ctx, `
INSERT INTO sequence_references (caller_chunk_id, callee_chunk_id, sequence_key, timestamp)
VALUES (?, ?, ?, ?)`,
		callerChunkID, calleeChunkID, sequenceKey, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("link reference: %w", err)
	}
	return nil
}
