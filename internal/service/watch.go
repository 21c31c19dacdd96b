package service

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/xmlindex/internal/scan"
)

// watchLoop drains the FS watcher's event and error channels until the
// watcher is closed by Stop, debouncing every change before it reaches the
// pipeline (§5 Backpressure).
func (f *Facade) watchLoop(watcher *fsnotify.Watcher) {
	defer f.watchWG.Done()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isWatchedPath(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				f.NotifyFileChange(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("service[%s]: watcher error: %v", f.ProjectPath, err)
		}
	}
}

// NotifyFileChange runs a best-effort, debounced incremental pass limited
// to path's directory (§4.8, §5: 2-second collapse window per file path).
// File-system events that fire again before the window elapses reset it;
// at most one re-index task per path is ever pending.
func (f *Facade) NotifyFileChange(path string) {
	debounce := f.debounceWindow()

	f.debounceMu.Lock()
	if existing, ok := f.debounceTimers[path]; ok {
		existing.Stop()
	}
	f.debounceTimers[path] = time.AfterFunc(debounce, func() {
		f.debounceMu.Lock()
		delete(f.debounceTimers, path)
		f.debounceMu.Unlock()
		f.runIncremental(path)
	})
	f.debounceMu.Unlock()
}

func (f *Facade) debounceWindow() time.Duration {
	if f.deps.Config != nil && f.deps.Config.DebounceMs > 0 {
		return time.Duration(f.deps.Config.DebounceMs) * time.Millisecond
	}
	return 2 * time.Second
}

// runIncremental enforces the single-flight guard described on
// Facade.reindexMu: a debounce timer that fires while a previous
// runIncremental is still processing does not start a second concurrent
// pass against the shared single-connection store. Instead its directory
// is coalesced into pendingDirs and the in-flight call picks it up as an
// extra cycle once its current pass completes.
func (f *Facade) runIncremental(path string) {
	dir := filepath.Dir(path)

	f.reindexMu.Lock()
	if f.reindexBusy {
		if f.pendingDirs == nil {
			f.pendingDirs = make(map[string]bool)
		}
		f.pendingDirs[dir] = true
		f.reindexMu.Unlock()
		return
	}
	f.reindexBusy = true
	f.reindexMu.Unlock()

	dirs := map[string]bool{dir: true}
	for {
		f.processReindexDirs(dirs)

		f.reindexMu.Lock()
		if len(f.pendingDirs) == 0 {
			f.reindexBusy = false
			f.reindexMu.Unlock()
			return
		}
		dirs = f.pendingDirs
		f.pendingDirs = nil
		f.reindexMu.Unlock()
	}
}

func (f *Facade) processReindexDirs(dirs map[string]bool) {
	f.mu.Lock()
	pl := f.pipeline
	eng := f.engine
	ready := f.state == StateReady
	f.mu.Unlock()
	if !ready || pl == nil {
		return
	}

	list := make([]string, 0, len(dirs))
	for d := range dirs {
		list = append(list, d)
	}
	if _, err := pl.ProcessIncremental(context.Background(), list, f.logProgress); err != nil {
		log.Printf("service[%s]: incremental re-index of %v failed: %v", f.ProjectPath, list, err)
		return
	}
	// A successful re-index may have changed chunks a cached response
	// already answered for; purge rather than risk serving stale results
	// until natural LRU eviction (SPEC_FULL.md: "explicit invalidation on
	// any successful pipeline run").
	if eng != nil {
		eng.Invalidate()
	}
}

func isWatchedPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range scan.DefaultExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
