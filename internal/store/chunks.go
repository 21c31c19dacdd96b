package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/xmlindex/pkg/types"
)

// Insert writes a new chunk row plus its FTS mirror row, assigning c.ID and
// c.Timestamp.
func (x *crud) Insert(ctx context.Context, c *types.Chunk) error {
	q := x.q
	contextJSON, err := json.Marshal(c.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	refsJSON, err := json.Marshal(c.ReferencedSequences)
	if err != nil {
		return fmt.Errorf("marshal referenced_sequences: %w", err)
	}

	c.Timestamp = time.Now().UnixMilli()

	row := q.QueryRowContext(ctx, `
INSERT INTO chunks (
	file_path, file_hash, resource_name, resource_type, chunk_type,
	chunk_index, start_line, end_line, embedding, parent_chunk_id,
	timestamp, content_hash, semantic_type, semantic_intent, context_json,
	sequence_key, is_sequence_definition, referenced_sequences, embedding_text
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		c.FilePath, c.FileHash, c.ResourceName, c.ResourceType, c.ChunkType,
		c.ChunkIndex, c.StartLine, c.EndLine, serializeVector(c.Embedding), nullableInt64(c.ParentChunkID),
		c.Timestamp, c.ContentHash, string(c.SemanticType), string(c.SemanticIntent), string(contextJSON),
		nullableString(c.SequenceKey), boolToInt(c.IsSequenceDefinition), string(refsJSON), c.EmbeddingText,
	)
	if err := row.Scan(&c.ID); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO chunks_fts (chunk_id, embedding_text) VALUES (?, ?)`,
		c.ID, c.EmbeddingText); err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

// Update overwrites an existing chunk row identified by c.ID and resyncs its
// FTS mirror via delete-then-insert, since FTS5 has no in-place update
// (§4.4 FTS invariant).
func (x *crud) Update(ctx context.Context, c *types.Chunk) error {
	q := x.q

	contextJSON, err := json.Marshal(c.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	refsJSON, err := json.Marshal(c.ReferencedSequences)
	if err != nil {
		return fmt.Errorf("marshal referenced_sequences: %w", err)
	}

	c.Timestamp = time.Now().UnixMilli()

	res, err := q.ExecContext(ctx, `
UPDATE chunks SET
	file_path = ?, file_hash = ?, resource_name = ?, resource_type = ?,
	chunk_type = ?, chunk_index = ?, start_line = ?, end_line = ?,
	embedding = ?, parent_chunk_id = ?, timestamp = ?, content_hash = ?,
	semantic_type = ?, semantic_intent = ?, context_json = ?,
	sequence_key = ?, is_sequence_definition = ?, referenced_sequences = ?,
	embedding_text = ?
WHERE id = ?`,
		c.FilePath, c.FileHash, c.ResourceName, c.ResourceType,
		c.ChunkType, c.ChunkIndex, c.StartLine, c.EndLine,
		serializeVector(c.Embedding), nullableInt64(c.ParentChunkID), c.Timestamp, c.ContentHash,
		string(c.SemanticType), string(c.SemanticIntent), string(contextJSON),
		nullableString(c.SequenceKey), boolToInt(c.IsSequenceDefinition), string(refsJSON),
		c.EmbeddingText, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, c.ID); err != nil {
		return fmt.Errorf("drop stale fts row: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO chunks_fts (chunk_id, embedding_text) VALUES (?, ?)`,
		c.ID, c.EmbeddingText); err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

// Delete removes one chunk and its FTS mirror row. sequence_references rows
// referencing it are removed by the CASCADE foreign key.
func (x *crud) Delete(ctx context.Context, id int64) error {
	q := x.q
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, id); err != nil {
		return fmt.Errorf("delete fts row: %w", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteByFile removes every chunk (and FTS mirror row) for a given path.
func (x *crud) DeleteByFile(ctx context.Context, filePath string) error {
	q := x.q
	if _, err := q.ExecContext(ctx, `
DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE file_path = ?)`,
		filePath); err != nil {
		return fmt.Errorf("delete fts rows for file: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("delete chunks for file: %w", err)
	}
	return nil
}

// GetByFile returns every chunk for a path, ordered by chunk_index.
func (x *crud) GetByFile(ctx context.Context, filePath string) ([]*types.Chunk, error) {
	rows, err := x.q.QueryContext(ctx,
		selectChunkColumns+` WHERE file_path = ? ORDER BY chunk_index`, filePath)
	if err != nil {
		return nil, fmt.Errorf("get chunks by file: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetAll returns every chunk in the store, used by the dense brute-force
// search scan (§4.7 step 4).
func (x *crud) GetAll(ctx context.Context) ([]*types.Chunk, error) {
	rows, err := x.q.QueryContext(ctx, selectChunkColumns)
	if err != nil {
		return nil, fmt.Errorf("get all chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Count returns the total number of stored chunks.
func (x *crud) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// LatestFileHashes returns the most recent file_hash seen for every
// distinct file_path, used to warm-start the scanner (§4.5).
func (x *crud) LatestFileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT file_path, file_hash FROM chunks ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("latest file hashes: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		out[path] = hash
	}
	return out, rows.Err()
}

const selectChunkColumns = `
SELECT id, file_path, file_hash, resource_name, resource_type, chunk_type,
	chunk_index, start_line, end_line, embedding, parent_chunk_id, timestamp,
	content_hash, semantic_type, semantic_intent, context_json, sequence_key,
	is_sequence_definition, referenced_sequences, embedding_text
FROM chunks`

func scanChunks(rows *sql.Rows) ([]*types.Chunk, error) {
	var out []*types.Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunkRow(row rowScanner) (*types.Chunk, error) {
	var c types.Chunk
	var embeddingBlob []byte
	var parentChunkID sql.NullInt64
	var sequenceKey sql.NullString
	var contextJSON, refsJSON string
	var isDef int

	if err := row.Scan(
		&c.ID, &c.FilePath, &c.FileHash, &c.ResourceName, &c.ResourceType, &c.ChunkType,
		&c.ChunkIndex, &c.StartLine, &c.EndLine, &embeddingBlob, &parentChunkID, &c.Timestamp,
		&c.ContentHash, &c.SemanticType, &c.SemanticIntent, &contextJSON, &sequenceKey,
		&isDef, &refsJSON, &c.EmbeddingText,
	); err != nil {
		return nil, fmt.Errorf("scan chunk row: %w", err)
	}

	c.Embedding = deserializeVector(embeddingBlob)
	c.IsSequenceDefinition = isDef != 0
	if parentChunkID.Valid {
		v := parentChunkID.Int64
		c.ParentChunkID = &v
	}
	if sequenceKey.Valid {
		v := sequenceKey.String
		c.SequenceKey = &v
	}
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &c.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if refsJSON != "" {
		if err := json.Unmarshal([]byte(refsJSON), &c.ReferencedSequences); err != nil {
			return nil, fmt.Errorf("unmarshal referenced_sequences: %w", err)
		}
	}
	return &c, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FTSHit is a sparse-match candidate returned by SearchFTS (§4.7 step 3).
type FTSHit struct {
	ChunkID int64
	Rank    float64 // raw FTS5 bm25 rank: negative, more negative is better
}

// SearchFTS runs query as a verbatim FTS MATCH expression, ordered by rank,
// returning up to limit hits. A syntax error in query is reported to the
// caller, who is expected to treat it as an empty sparse set (§4.7 step 3,
// §7 FtsSyntaxError).
func (x *crud) SearchFTS(ctx context.Context, query string, limit int) ([]FTSHit, error) {
	rows, err := x.q.QueryContext(ctx, `
SELECT chunk_id, rank FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.ChunkID, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
