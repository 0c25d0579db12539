// Package capability declares the filesystem paths this process may touch and
// commits that declaration to the kernel before any agent code runs.
//
// The set itself is advisory: Check answers "would this access be permitted"
// for bookkeeping and tool-event reporting. The real deny decision is made by
// Landlock on every syscall after Apply, so nothing the agent is manipulated
// into requesting can widen access.
package capability

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// Mode is the access mode granted for a path entry.
type Mode string

const (
	ModeRead      Mode = "read"
	ModeReadWrite Mode = "read_write"
)

// Entry grants Mode access to an absolute path and all of its descendants.
type Entry struct {
	Path string
	Mode Mode
}

// Set is an immutable-after-Apply collection of path grants. One Set is
// constructed per process lifetime; Apply is a one-way transition.
type Set struct {
	mu      sync.Mutex
	entries []Entry
	applied bool
	logger  *slog.Logger

	// enforcer commits entries to the kernel. A function field so tests can
	// avoid restricting the test process itself.
	enforcer func(entries []Entry, logger *slog.Logger) error
}

// NewSet creates an empty capability set.
func NewSet(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		logger:   logger.With("component", "capability"),
		enforcer: enforce,
	}
}

// Allow registers one path grant. The path is canonicalized (absolute,
// symlinks resolved) so that Check and the kernel ruleset agree on what was
// granted. Allow fails after Apply; the set can never be widened.
func (s *Set) Allow(path string, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied {
		return ErrAlreadyApplied
	}

	canonical, err := Canonicalize(path)
	if err != nil {
		return &EntryError{Path: path, Cause: err}
	}

	s.entries = append(s.entries, Entry{Path: canonical, Mode: mode})
	return nil
}

// Check reports whether an access of mode (or weaker) to path is covered by
// the declared entries. Matching is prefix-based against canonical paths, so
// granting a directory covers all of its descendants.
func (s *Set) Check(path string, mode Mode) bool {
	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()

	canonical, err := Canonicalize(path)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if !pathWithin(canonical, entry.Path) {
			continue
		}
		if entry.Mode == ModeReadWrite || mode == ModeRead {
			return true
		}
	}
	return false
}

// Apply commits the set to the kernel enforcement layer. It succeeds at most
// once per process; a second call returns ErrAlreadyApplied. After Apply no
// code path, including the agent loop, can expand permissions.
func (s *Set) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied {
		return ErrAlreadyApplied
	}

	if err := s.enforcer(s.entries, s.logger); err != nil {
		return err
	}

	s.applied = true
	s.logger.Info("sandbox applied", "entries", len(s.entries))
	return nil
}

// Applied reports whether Apply has completed.
func (s *Set) Applied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Entries returns a copy of the declared grants.
func (s *Set) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Canonicalize resolves a path to its absolute, symlink-free form. Components
// that do not exist yet (e.g. a database file created later) are re-attached
// to the nearest resolvable ancestor, so the canonical form is stable before
// and after creation.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	remainder := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if filepath.Dir(dir) == dir {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(dir), remainder)
	}
}

// pathWithin reports whether path is root itself or a descendant of root.
func pathWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
