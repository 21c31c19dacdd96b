// Package service implements the Service Facade (C8): the per-project
// lifecycle object the host talks to. It owns the store, embedder and FS
// watcher for one project, drives the Pipeline on startup and on
// file-change notifications, and answers search queries once ready. It
// does no periodic polling: changes reach it only through the FS watcher
// and NotifyFileChange.
//
// No internal error ever crosses the facade boundary as a raw Go error
// (§7 Propagation): Search returns a structured types.SearchResponse with
// an Err field, and start-up failure is signaled only through readiness.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/dshills/xmlindex/internal/chunker"
	"github.com/dshills/xmlindex/internal/config"
	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/pipeline"
	"github.com/dshills/xmlindex/internal/registry"
	"github.com/dshills/xmlindex/internal/scan"
	"github.com/dshills/xmlindex/internal/search"
	"github.com/dshills/xmlindex/internal/store"
	"github.com/dshills/xmlindex/pkg/types"
)

// State is one point in the facade's lifecycle (§4.8).
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Deps are the collaborators a Facade builds its pipeline and search
// engine from. ModelProvider is optional; when nil the Facade falls back
// to a deterministic Fake embedder (useful for hosts without a local
// model directory configured, and for tests).
type Deps struct {
	Config        *config.Config
	ModelProvider embedder.ModelProvider
	Watch         []string // directories to scan and watch; defaults to []string{ProjectPath}
}

// Facade is the per-project C8 object. Construct one through the package
// Registry rather than directly, so every caller for a given project path
// shares the same instance (§9 "registry keyed by normalized project
// path").
type Facade struct {
	ProjectPath string
	deps        Deps

	mu      sync.Mutex
	state   State
	lastErr *types.IndexError
	readyCh chan struct{}
	waiters []func(bool)

	store    *store.Store
	emb      embedder.Embedder
	pipeline *pipeline.Pipeline
	engine   *search.Engine

	watcher *fsnotify.Watcher
	watchWG sync.WaitGroup

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	// reindexMu guards the single-flight re-index run: at most one
	// ProcessIncremental call is ever in flight (§5 "at most one re-index
	// task is in flight per service"). A directory whose debounce timer
	// fires while a run is already in progress is coalesced into
	// pendingDirs and picked up by the next cycle instead of launching a
	// concurrent pass against the shared store.
	reindexMu   sync.Mutex
	reindexBusy bool
	pendingDirs map[string]bool
}

// New builds a Facade for projectPath. It does not start anything; call
// Start to begin initialization.
func New(projectPath string, deps Deps) *Facade {
	return &Facade{
		ProjectPath:    projectPath,
		deps:           deps,
		debounceTimers: make(map[string]*time.Timer),
	}
}

// IsAvailable reports whether the facade is ready to serve Search calls.
func (f *Facade) IsAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateReady
}

// IsInitializing reports whether a Start call is currently in flight.
func (f *Facade) IsInitializing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateInitializing
}

// LastError returns the structured error from the most recent failed
// initialization attempt, or nil if the facade never failed.
func (f *Facade) LastError() *types.IndexError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Start begins initialization if none is running and the facade is not
// already ready. Concurrent callers all coalesce onto the same attempt
// (§4.8): Start never launches a second init goroutine while one is in
// flight. On failure the in-flight task handle is cleared so a later
// Start retries from scratch.
func (f *Facade) Start(ctx context.Context) {
	f.mu.Lock()
	if f.state == StateInitializing || f.state == StateReady {
		f.mu.Unlock()
		return
	}
	f.state = StateInitializing
	f.lastErr = nil
	f.readyCh = make(chan struct{})
	f.mu.Unlock()

	attemptID := uuid.NewString()
	go f.runInit(ctx, attemptID)
}

// OnReady registers cb to run exactly once, with the outcome of the
// current or next initialization attempt. If the facade has already left
// the initializing state, cb fires synchronously before OnReady returns.
func (f *Facade) OnReady(cb func(success bool)) {
	f.mu.Lock()
	switch f.state {
	case StateReady, StateFailed:
		success := f.state == StateReady
		f.mu.Unlock()
		cb(success)
		return
	default:
		f.waiters = append(f.waiters, cb)
		f.mu.Unlock()
	}
}

// WaitForReady blocks until initialization leaves the initializing state,
// or ctx is done. It never returns an error (§4.8): a caller that needs
// to distinguish success from failure should check IsAvailable afterward.
func (f *Facade) WaitForReady(ctx context.Context) {
	f.mu.Lock()
	ch := f.readyCh
	state := f.state
	f.mu.Unlock()

	if state != StateInitializing || ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (f *Facade) runInit(ctx context.Context, attemptID string) {
	log.Printf("service[%s]: start init attempt %s", f.ProjectPath, attemptID)
	idxErr := f.initialize(ctx)

	f.mu.Lock()
	if idxErr != nil {
		f.state = StateFailed
		f.lastErr = idxErr
	} else {
		f.state = StateReady
	}
	waiters := f.waiters
	f.waiters = nil
	ch := f.readyCh
	f.mu.Unlock()

	close(ch)

	success := idxErr == nil
	if success {
		log.Printf("service[%s]: init attempt %s ready", f.ProjectPath, attemptID)
	} else {
		log.Printf("service[%s]: init attempt %s failed: %v", f.ProjectPath, attemptID, idxErr)
	}
	for _, w := range waiters {
		w(success)
	}

	if !success {
		// Clear the attempt so a later Start retries instead of being
		// coalesced onto this failed one (§4.8).
		f.mu.Lock()
		f.readyCh = nil
		f.mu.Unlock()
	}
}

// initialize builds the store, embedder, pipeline and search engine, runs
// the initial index, and starts the FS watcher. Every failure is turned
// into a *types.IndexError before returning, matching §7's taxonomy.
func (f *Facade) initialize(ctx context.Context) *types.IndexError {
	cfg := f.deps.Config
	dbPath, err := cfg.ProjectDBPath(f.ProjectPath)
	if err != nil {
		return types.NewIndexError(types.KindStoreCorruption,
			"could not resolve the project's data directory", "", err)
	}

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		if idxErr, ok := asIndexError(err); ok {
			return idxErr
		}
		return types.NewIndexError(types.KindStoreCorruption, "could not open the project store", "", err)
	}

	emb, err := f.buildEmbedder(ctx)
	if err != nil {
		st.Close()
		return types.NewIndexError(types.KindModelUnavailable,
			"the embedding model is unavailable",
			"check that the configured model directory contains the required artifacts", err)
	}

	reg := registry.New()
	// A loaded local model's tokenizer counts tokens for the chunker;
	// without one the chunker uses its chars/4 estimate.
	var tc chunker.TokenCounter
	if f.deps.ModelProvider != nil {
		tc = emb
	}
	ch := chunker.New(reg, tc, cfg.MaxTokens)
	sc := scan.New(nil)
	pl := pipeline.New(sc, ch, st, emb)

	dirs := f.watchDirs()
	if _, err := pl.ProcessInitial(ctx, dirs, f.logProgress); err != nil {
		emb.Close()
		st.Close()
		return types.NewIndexError(types.KindStoreCorruption, "initial indexing failed", "", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		emb.Close()
		st.Close()
		return types.NewIndexError(types.KindModelUnavailable, "could not start the file watcher", "", err)
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			log.Printf("service[%s]: watch %s: %v", f.ProjectPath, d, err)
		}
	}

	f.mu.Lock()
	f.store = st
	f.emb = emb
	f.pipeline = pl
	f.engine = search.New(st, emb)
	f.watcher = watcher
	f.mu.Unlock()

	f.watchWG.Add(1)
	go f.watchLoop(watcher)

	return nil
}

func (f *Facade) buildEmbedder(ctx context.Context) (embedder.Embedder, error) {
	if f.deps.ModelProvider == nil {
		return embedder.NewFake(), nil
	}
	return embedder.NewLocal(ctx, f.deps.ModelProvider)
}

func (f *Facade) watchDirs() []string {
	if len(f.deps.Watch) > 0 {
		return f.deps.Watch
	}
	return []string{f.ProjectPath}
}

func (f *Facade) logProgress(stage pipeline.Stage, detail string, fileIndex, totalFiles int) {
	log.Printf("service[%s]: %s %s (%d/%d)", f.ProjectPath, stage, detail, fileIndex, totalFiles)
}

func asIndexError(err error) (*types.IndexError, bool) {
	var idxErr *types.IndexError
	for err != nil {
		if ie, ok := err.(*types.IndexError); ok {
			idxErr = ie
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return idxErr, idxErr != nil
}

// Status is a read-only snapshot of a project's index, consumed by the
// CLI `status` subcommand and by §7's "structured response with
// guidance" behaviors (IndexNotReady, EmptyIndex): a caller can check
// ChunkCount before deciding whether to fall back to plain text search.
type Status struct {
	State      State
	ChunkCount int
	FileCount  int
	LastError  *types.IndexError
}

// Status reports the facade's current lifecycle state and, once ready,
// the size of the index it is serving. Never blocks on store I/O unless
// the facade is ready.
func (f *Facade) Status(ctx context.Context) Status {
	f.mu.Lock()
	st := f.store
	state := f.state
	lastErr := f.lastErr
	f.mu.Unlock()

	status := Status{State: state, LastError: lastErr}
	if st == nil {
		return status
	}

	if n, err := st.Count(ctx); err == nil {
		status.ChunkCount = n
	}
	if hashes, err := st.LatestFileHashes(ctx); err == nil {
		status.FileCount = len(hashes)
	}
	return status
}

// Search delegates to the search engine once ready, and returns the
// IndexNotReady structured response otherwise (§7).
func (f *Facade) Search(ctx context.Context, query string, opts types.SearchOptions) *types.SearchResponse {
	f.mu.Lock()
	engine := f.engine
	ready := f.state == StateReady
	f.mu.Unlock()

	if !ready || engine == nil {
		return &types.SearchResponse{
			Err: types.NewIndexError(types.KindIndexNotReady,
				"the index is not ready yet",
				"fall back to plain text search until the index finishes building", nil),
		}
	}

	resp, err := engine.Search(ctx, query, opts)
	if err != nil {
		return &types.SearchResponse{
			Err: types.NewIndexError(types.KindIndexNotReady, "search failed", "", err),
		}
	}
	return resp
}

// Stop releases every resource the facade owns (§4.8, §5 Resource
// ownership): the FS watcher, debounce timers, embedder and store. It
// waits for any in-flight file processing to finish before tearing down,
// then resets state so a later Start rebuilds from scratch.
func (f *Facade) Stop() {
	f.mu.Lock()
	watcher := f.watcher
	st := f.store
	emb := f.emb
	f.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	f.watchWG.Wait()

	f.debounceMu.Lock()
	for _, t := range f.debounceTimers {
		t.Stop()
	}
	f.debounceTimers = make(map[string]*time.Timer)
	f.debounceMu.Unlock()

	if emb != nil {
		if err := emb.Close(); err != nil {
			log.Printf("service[%s]: close embedder: %v", f.ProjectPath, err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			log.Printf("service[%s]: close store: %v", f.ProjectPath, err)
		}
	}

	f.mu.Lock()
	f.state = StateUninitialized
	f.lastErr = nil
	f.readyCh = nil
	f.store = nil
	f.emb = nil
	f.pipeline = nil
	f.engine = nil
	f.watcher = nil
	f.mu.Unlock()
}
