package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/xmlindex/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChunk(path string, idx int) *types.Chunk {
	name := "SeqA"
	return &types.Chunk{
		FilePath:            path,
		FileHash:            "filehash",
		ChunkIndex:          idx,
		StartLine:           1,
		EndLine:             3,
		ResourceName:        "SeqA",
		ResourceType:        "sequence",
		ChunkType:           "sequence",
		ContentHash:         "contenthash",
		SemanticType:        types.SemanticSequence,
		SemanticIntent:      types.IntentMediation,
		Context:             types.Context{"sequence": map[string]string{"name": "SeqA"}},
		SequenceKey:         &name,
		IsSequenceDefinition: true,
		ReferencedSequences: []string{"endpoint:BackendEP"},
		Embedding:            []float32{0.1, 0.2, 0.3},
		EmbeddingText:        "sequence SeqA",
	}
}

func TestInsertAndGetByFile_RoundTripsAllFieldsExceptID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := sampleChunk("/proj/sequences/SeqA.xml", 0)
	require.NoError(t, s.Insert(ctx, c))
	require.NotZero(t, c.ID)

	got, err := s.GetByFile(ctx, c.FilePath)
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	require.Equal(t, c.FilePath, g.FilePath)
	require.Equal(t, c.ResourceName, g.ResourceName)
	require.Equal(t, c.SemanticType, g.SemanticType)
	require.Equal(t, c.ReferencedSequences, g.ReferencedSequences)
	require.Equal(t, c.Embedding, g.Embedding)
	require.True(t, g.IsSequenceDefinition)
	require.NotNil(t, g.SequenceKey)
	require.Equal(t, "SeqA", *g.SequenceKey)
}

func TestUpdate_ResyncsFTSMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := sampleChunk("/proj/sequences/SeqA.xml", 0)
	require.NoError(t, s.Insert(ctx, c))

	c.EmbeddingText = "updated text mentioning orders"
	require.NoError(t, s.Update(ctx, c))

	hits, err := s.SearchFTS(ctx, "orders", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, c.ID, hits[0].ChunkID)

	hits, err = s.SearchFTS(ctx, "SeqA", 10)
	require.NoError(t, err)
	require.Empty(t, hits, "stale fts row from before the update should be gone")
}

func TestDeleteByFile_RemovesChunksAndFTSRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1 := sampleChunk("/proj/sequences/SeqA.xml", 0)
	c2 := sampleChunk("/proj/sequences/SeqA.xml", 1)
	require.NoError(t, s.Insert(ctx, c1))
	require.NoError(t, s.Insert(ctx, c2))

	other := sampleChunk("/proj/sequences/SeqB.xml", 0)
	other.EmbeddingText = "sequence SeqB"
	require.NoError(t, s.Insert(ctx, other))

	require.NoError(t, s.DeleteByFile(ctx, c1.FilePath))

	got, err := s.GetByFile(ctx, c1.FilePath)
	require.NoError(t, err)
	require.Empty(t, got)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	hits, err := s.SearchFTS(ctx, "SeqA", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestLatestFileHashes_WarmStartsFromStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := sampleChunk("/proj/sequences/SeqA.xml", 0)
	require.NoError(t, s.Insert(ctx, c))

	hashes, err := s.LatestFileHashes(ctx)
	require.NoError(t, err)
	require.Equal(t, "filehash", hashes["/proj/sequences/SeqA.xml"])
}

func TestFindDefinition_MatchesOnNameIgnoringQualifierByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	def := sampleChunk("/proj/sequences/SeqA.xml", 0)
	require.NoError(t, s.Insert(ctx, def))

	found, err := s.FindDefinition(ctx, "template:SeqA")
	require.NoError(t, err)
	require.Equal(t, def.ID, found.ID)

	s.StrictQualifierMatch = true
	_, err = s.FindDefinition(ctx, "template:SeqA")
	require.ErrorIs(t, err, types.ErrNotFound)

	found, err = s.FindDefinition(ctx, "sequence:SeqA")
	require.NoError(t, err)
	require.Equal(t, def.ID, found.ID)
}

func TestLinkReference_CascadesOnDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	caller := sampleChunk("/proj/sequences/Caller.xml", 0)
	callee := sampleChunk("/proj/sequences/Callee.xml", 0)
	require.NoError(t, s.Insert(ctx, caller))
	require.NoError(t, s.Insert(ctx, callee))
	require.NoError(t, s.LinkReference(ctx, caller.ID, callee.ID, "sequence:Callee"))

	require.NoError(t, s.Delete(ctx, callee.ID))

	var n int
	require.NoError(t, s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sequence_references`).Scan(&n))
	require.Equal(t, 0, n, "cascade delete should remove the edge row")
}

func TestClearOutgoingReferences_RemovesOnlyThatCallersEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	callerA := sampleChunk("/proj/sequences/CallerA.xml", 0)
	callerB := sampleChunk("/proj/sequences/CallerB.xml", 0)
	callee := sampleChunk("/proj/sequences/Callee.xml", 0)
	require.NoError(t, s.Insert(ctx, callerA))
	require.NoError(t, s.Insert(ctx, callerB))
	require.NoError(t, s.Insert(ctx, callee))
	require.NoError(t, s.LinkReference(ctx, callerA.ID, callee.ID, "sequence:Callee"))
	require.NoError(t, s.LinkReference(ctx, callerB.ID, callee.ID, "sequence:Callee"))

	require.NoError(t, s.ClearOutgoingReferences(ctx, callerA.ID))

	var n int
	require.NoError(t, s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sequence_references WHERE caller_chunk_id = ?`, callerA.ID).Scan(&n))
	require.Equal(t, 0, n)
	require.NoError(t, s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sequence_references WHERE caller_chunk_id = ?`, callerB.ID).Scan(&n))
	require.Equal(t, 1, n, "a different caller's edge must survive")
}

func TestTx_CommitPersistsAndRollbackDiscards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	c := sampleChunk("/proj/sequences/SeqA.xml", 0)
	require.NoError(t, tx.Insert(ctx, c))
	require.NoError(t, tx.Commit())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Insert(ctx, sampleChunk("/proj/sequences/SeqB.xml", 0)))
	require.NoError(t, tx2.Rollback())

	n, err = s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "rolled-back insert should not be visible")
}

func TestOpen_RecoversFromCorruptDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "embeddings.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite file"), 0o644))

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
