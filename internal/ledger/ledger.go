// Package ledger keeps the set of article links that have already been
// handled, keyed by link with the epoch-millisecond time they were handled.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Ledger maps an article link to the epoch milliseconds it was last handled.
type Ledger map[string]int64

// Store reads and writes a Ledger as a single JSON object on disk.
type Store struct {
	path   string
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Load never fails: a missing or unreadable file yields an empty ledger.
func (s *Store) Load() Ledger {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("ledger unreadable, starting empty", "path", s.path, "error", err)
		}
		return Ledger{}
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		s.logger.Warn("ledger corrupt, starting empty", "path", s.path, "error", err)
		return Ledger{}
	}
	if l == nil {
		// "null" decodes without error
		return Ledger{}
	}
	return l
}

// Save replaces the file contents with l. The write goes to a temp file in the
// same directory and is renamed over the target.
func (s *Store) Save(l Ledger) error {
	if l == nil {
		l = Ledger{}
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing ledger %s: %w", s.path, err)
	}
	return nil
}

// Prune returns a new ledger holding only entries newer than now-window.
func Prune(l Ledger, now time.Time, window time.Duration) Ledger {
	cutoff := now.Add(-window).UnixMilli()
	out := make(Ledger, len(l))
	for link, ts := range l {
		if ts > cutoff {
			out[link] = ts
		}
	}
	return out
}

func (l Ledger) MarkHandled(link string, now time.Time) {
	l[link] = now.UnixMilli()
}

func (l Ledger) IsHandled(link string) bool {
	_, ok := l[link]
	return ok
}
