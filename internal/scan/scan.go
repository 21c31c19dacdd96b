// Package scan implements the Scanner (C5): a directory walk that hashes
// watched files and reports what changed since the last scan.
package scan

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions is the file-type watch set: primary .xml, plus the
// secondary artifact formats a project may mix in.
var DefaultExtensions = []string{".xml", ".yaml", ".yml", ".properties", ".dmc"}

// FileChange is one path's hash-comparison result from a scan.
type FileChange struct {
	Path   string
	Hash   string
	Exists bool
}

// Scanner walks a set of directories, hashes watched files, and diffs
// against an in-memory map of last-seen hashes.
type Scanner struct {
	extensions map[string]bool

	mu         sync.Mutex
	lastHashes map[string]string
}

// New builds a Scanner watching the given extensions (case-insensitive,
// with or without a leading dot). DefaultExtensions is used if extensions
// is empty.
func New(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[strings.ToLower(e)] = true
	}
	return &Scanner{extensions: set, lastHashes: make(map[string]string)}
}

// WarmStart seeds the last-seen hash map so that an initial scan after
// service start does not re-flag untouched files as changed. Intended to
// be called once with Store.LatestFileHashes.
func (s *Scanner) WarmStart(hashes map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, hash := range hashes {
		s.lastHashes[path] = hash
	}
}

// Scan walks dirs, hashes every watched file, and returns the set of
// changes relative to the last scan. Deletions are only reported for
// previously-seen files that fall under one of dirs, so a scan scoped to
// a single directory never declares other directories' files deleted
// (§4.5 Deletion scope).
func (s *Scanner) Scan(ctx context.Context, dirs []string) ([]FileChange, error) {
	discovered, err := s.discover(dirs)
	if err != nil {
		return nil, err
	}

	hashes, err := hashFiles(ctx, discovered)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []FileChange
	seen := make(map[string]bool, len(discovered))
	for _, path := range discovered {
		seen[path] = true
		hash := hashes[path]
		if prev, ok := s.lastHashes[path]; !ok || prev != hash {
			changes = append(changes, FileChange{Path: path, Hash: hash, Exists: true})
			s.lastHashes[path] = hash
		}
	}

	for path := range s.lastHashes {
		if seen[path] {
			continue
		}
		if !underAnyDir(path, dirs) {
			continue
		}
		changes = append(changes, FileChange{Path: path, Exists: false})
		delete(s.lastHashes, path)
	}

	return changes, nil
}

// discover walks every dir, returning watched, non-ignored file paths.
func (s *Scanner) discover(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		matcher := loadIgnoreMatcher(dir)
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.extensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if rel, relErr := filepath.Rel(dir, path); relErr == nil && matcher.MatchesPath(rel) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	return files, nil
}

// loadIgnoreMatcher compiles the .gitignore patterns found at the root of
// dir, if any. A missing .gitignore yields a matcher that ignores nothing.
func loadIgnoreMatcher(dir string) *gitignore.GitIgnore {
	lines, err := readGitignoreLines(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return gitignore.CompileIgnoreLines()
	}
	return gitignore.CompileIgnoreLines(lines...)
}

func readGitignoreLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// hashFiles computes SHA-256 hex digests for every path, bounded by
// runtime.NumCPU() concurrent readers. Used only for the hashing fan-out;
// result reconciliation against the store stays strictly sequential.
func hashFiles(ctx context.Context, paths []string) (map[string]string, error) {
	result := make(map[string]string, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		path := path
		g.Go(func() error {
			hash, err := hashFile(gctx, path)
			if err != nil {
				return fmt.Errorf("hash %s: %w", path, err)
			}
			mu.Lock()
			result[path] = hash
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func hashFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func underAnyDir(path string, dirs []string) bool {
	for _, dir := range dirs {
		if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}
