package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/xmlindex/internal/chunker"
	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/registry"
	"github.com/dshills/xmlindex/internal/scan"
	"github.com/dshills/xmlindex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEmbedder wraps embedder.Fake and fails whenever the embedding text
// contains one of its configured trigger substrings, used to exercise the
// §7 EmbedError "log, skip chunk" path without a real model dependency.
type flakyEmbedder struct {
	*embedder.Fake
	failOn []string
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	for _, trigger := range f.failOn {
		if strings.Contains(text, trigger) {
			return nil, errors.New("simulated embed failure")
		}
	}
	return f.Fake.Embed(ctx, text)
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := registry.New()
	return New(scan.New(nil), chunker.New(reg, nil, 0), st, embedder.NewFake()), st
}

const endpointXML = `<endpoint name="BackendEP" xmlns="http://ws.apache.org/ns/synapse">
    <address uri="http://backend.local/api"/>
</endpoint>
`

const sequenceXML = `<sequence name="Main" xmlns="http://ws.apache.org/ns/synapse">
    <endpoint key="BackendEP"/>
    <respond/>
</sequence>
`

func TestProcessInitial_IndexesNewFilesAndLinksReferences(t *testing.T) {
	p, st := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "endpoints"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sequences"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "endpoints", "BackendEP.xml"), []byte(endpointXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sequences", "Main.xml"), []byte(sequenceXML), 0o644))

	var stages []Stage
	stats, err := p.ProcessInitial(context.Background(), []string{dir}, func(s Stage, detail string, i, n int) {
		stages = append(stages, s)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesChanged)
	assert.Equal(t, 2, stats.ChunksEmbedded)
	assert.Contains(t, stages, StageScanning)
	assert.Contains(t, stages, StageEmbedding)
	assert.Contains(t, stages, StageComplete)

	all, err := st.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		require.Len(t, c.Embedding, embedder.FakeDimension)
	}
}

func TestProcessInitial_ThenWarmStartSkipsUnchangedFiles(t *testing.T) {
	p, _ := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.xml"), []byte(sequenceXML), 0o644))

	_, err := p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	// A fresh Pipeline sharing the same store warm-starts from it and
	// should see no changes on an unmodified tree.
	p2, _ := newTestPipelineSharingStore(t, p)
	stats, err := p2.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesChanged)
}

func newTestPipelineSharingStore(t *testing.T, p *Pipeline) (*Pipeline, *store.Store) {
	t.Helper()
	return New(scan.New(nil), chunker.New(registry.New(), nil, 0), p.Store, embedder.NewFake()), p.Store
}

func TestProcessIncremental_ContentChangeReEmbedsChangedFile(t *testing.T) {
	p, st := newTestPipeline(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "A.xml")
	require.NoError(t, os.WriteFile(path, []byte(sequenceXML), 0o644))

	_, err := p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	changed := `<sequence name="Main" xmlns="http://ws.apache.org/ns/synapse">
    <endpoint key="BackendEP"/>
    <respond/>
    <log level="full"/>
</sequence>
`
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
	stats, err := p.ProcessIncremental(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesChanged)
	assert.Equal(t, 1, stats.ChunksEmbedded)

	all, err := st.GetByFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestProcessIncremental_DeletedFileRemovesAllItsChunks(t *testing.T) {
	p, st := newTestPipeline(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "A.xml")
	require.NoError(t, os.WriteFile(path, []byte(sequenceXML), 0o644))

	_, err := p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	stats, err := p.ProcessIncremental(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)

	all, err := st.GetByFile(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProcessInitial_LinksResolvedReference(t *testing.T) {
	p, st := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "endpoints"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sequences"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "endpoints", "BackendEP.xml"), []byte(endpointXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sequences", "Main.xml"), []byte(sequenceXML), 0o644))

	_, err := p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	def, err := st.FindDefinition(context.Background(), "endpoint:BackendEP")
	require.NoError(t, err)
	assert.Equal(t, "BackendEP", *def.SequenceKey)
}

func TestProcessIncremental_RepeatedReindexDoesNotAccumulateDuplicateReferenceEdges(t *testing.T) {
	p, st := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "endpoints"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sequences"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "endpoints", "BackendEP.xml"), []byte(endpointXML), 0o644))
	seqPath := filepath.Join(dir, "sequences", "Main.xml")
	require.NoError(t, os.WriteFile(seqPath, []byte(sequenceXML), 0o644))

	_, err := p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	// Touch the file (content hash changes) so reconcile re-resolves its
	// references on each of several incremental passes.
	for i := 0; i < 3; i++ {
		touched := sequenceXML + fmt.Sprintf("<!-- rev %d -->\n", i)
		require.NoError(t, os.WriteFile(seqPath, []byte(touched), 0o644))
		_, err := p.ProcessIncremental(context.Background(), []string{dir}, nil)
		require.NoError(t, err)
	}

	all, err := st.GetByFile(context.Background(), seqPath)
	require.NoError(t, err)
	var callerID int64
	for _, c := range all {
		if len(c.ReferencedSequences) > 0 {
			callerID = c.ID
		}
	}
	require.NotZero(t, callerID, "expected one chunk in Main.xml to carry the endpoint reference")

	n, err := st.CountOutgoingReferences(context.Background(), callerID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-indexing the same caller repeatedly must not accumulate duplicate edges")
}

func TestProcessInitial_EmbedFailureOnNewChunkIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := &flakyEmbedder{Fake: embedder.NewFake(), failOn: []string{"Main"}}
	p := New(scan.New(nil), chunker.New(registry.New(), nil, 0), st, emb)

	projDir := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	path := filepath.Join(projDir, "Main.xml")
	require.NoError(t, os.WriteFile(path, []byte(sequenceXML), 0o644))

	stats, err := p.ProcessInitial(context.Background(), []string{projDir}, nil)
	require.NoError(t, err, "a single chunk's embed failure must not abort the file or the run")
	assert.Equal(t, 1, stats.ChunksSkipped)
	assert.Equal(t, 0, stats.ChunksEmbedded)

	all, err := st.GetByFile(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, all, "a new chunk that never embedded leaves no row behind")
}

func TestProcessIncremental_EmbedFailureOnChangedChunkKeepsPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reliable := embedder.NewFake()
	p := New(scan.New(nil), chunker.New(registry.New(), nil, 0), st, reliable)

	projDir := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	path := filepath.Join(projDir, "Main.xml")
	require.NoError(t, os.WriteFile(path, []byte(sequenceXML), 0o644))

	_, err = p.ProcessInitial(context.Background(), []string{projDir}, nil)
	require.NoError(t, err)

	before, err := st.GetByFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, before, 1)
	prevEmbedding := before[0].Embedding

	// Same line count (so the slot still matches), different content.
	changed := strings.Replace(sequenceXML, "<respond/>", "<drop/>", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	flaky := &flakyEmbedder{Fake: embedder.NewFake(), failOn: []string{"Main"}}
	p2 := New(scan.New(nil), chunker.New(registry.New(), nil, 0), st, flaky)
	stats, err := p2.ProcessIncremental(context.Background(), []string{projDir}, nil)
	require.NoError(t, err, "a re-embed failure must not abort the file")
	assert.Equal(t, 1, stats.ChunksSkipped)

	after, err := st.GetByFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, after, 1, "the chunk's previous row must survive rather than being swept up as stale")
	assert.Equal(t, prevEmbedding, after[0].Embedding, "embedding left untouched since the re-embed never succeeded")
}
