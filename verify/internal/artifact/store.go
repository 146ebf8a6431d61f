package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrScope is wrapped by store errors caused by paths escaping the root.
var ErrScope = fmt.Errorf("artifact: path escapes store root")

// Store writes artifacts under a single root directory. All paths are
// relative to the root; traversal outside it is rejected. The root and
// any intermediate directories are created on demand.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir, creating it if absent.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// Path resolves a relative artifact path inside the root.
func (s *Store) Path(rel string) (string, error) {
	rel = strings.TrimPrefix(strings.TrimSpace(rel), "/")
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrScope, rel)
	}
	return p, nil
}

// Write stores raw bytes at a relative path, creating parent directories.
// Writes replace existing files whole; artifacts are never appended to.
func (s *Store) Write(rel string, data []byte) (string, error) {
	p, err := s.Path(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("artifact: create parent: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", rel, err)
	}
	return p, nil
}

// WriteText stores a string artifact.
func (s *Store) WriteText(rel, content string) (string, error) {
	return s.Write(rel, []byte(content))
}

// Exists reports whether a relative artifact path exists.
func (s *Store) Exists(rel string) bool {
	p, err := s.Path(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
