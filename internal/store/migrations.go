package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Migration is one versioned schema change, applied in order by
// applyMigrations and tracked in the schema_version table.
type Migration struct {
	Version string
	Up      string
}

// CurrentSchemaVersion is the version the schema converges to once every
// migration in allMigrations has been applied.
const CurrentSchemaVersion = "1.0.0"

var allMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: `
CREATE TABLE IF NOT EXISTS schema_version (
	version    TEXT PRIMARY KEY,
	applied_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path              TEXT    NOT NULL,
	file_hash              TEXT    NOT NULL,
	resource_name          TEXT    NOT NULL,
	resource_type          TEXT    NOT NULL,
	chunk_type             TEXT    NOT NULL,
	chunk_index            INTEGER NOT NULL,
	start_line             INTEGER NOT NULL,
	end_line               INTEGER NOT NULL,
	embedding              BLOB,
	parent_chunk_id        INTEGER REFERENCES chunks(id) ON DELETE SET NULL,
	timestamp              INTEGER NOT NULL,
	content_hash           TEXT    NOT NULL,
	semantic_type          TEXT    NOT NULL,
	semantic_intent        TEXT    NOT NULL,
	context_json           TEXT    NOT NULL,
	sequence_key           TEXT,
	is_sequence_definition INTEGER NOT NULL DEFAULT 0,
	referenced_sequences   TEXT,
	embedding_text         TEXT    NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_slot
	ON chunks(file_path, chunk_index, start_line, end_line);

CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_definition
	ON chunks(resource_type, sequence_key) WHERE is_sequence_definition = 1;

CREATE TABLE IF NOT EXISTS sequence_references (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_chunk_id  INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	callee_chunk_id  INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	sequence_key     TEXT    NOT NULL,
	timestamp        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sequence_references_caller
	ON sequence_references(caller_chunk_id);
CREATE INDEX IF NOT EXISTS idx_sequence_references_callee
	ON sequence_references(callee_chunk_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	embedding_text
);
`,
	},
}

// applyMigrations brings the schema up to CurrentSchemaVersion, skipping any
// migration whose version is not newer than what's already recorded.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
	version    TEXT PRIMARY KEY,
	applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	sorted := make([]Migration, len(allMigrations))
	copy(sorted, allMigrations)
	sort.Slice(sorted, func(i, j int) bool {
		vi, _ := semver.NewVersion(sorted[i].Version)
		vj, _ := semver.NewVersion(sorted[j].Version)
		return vi.LessThan(vj)
	})

	for _, m := range sorted {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("migration %s has invalid version: %w", m.Version, err)
		}
		if current != nil && !v.GreaterThan(current) {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_version (version, applied_at) VALUES (?, unixepoch() * 1000)`,
			m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	var latest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}
