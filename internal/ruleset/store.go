// internal/ruleset/store.go
//
// Current rule set and hot reload.
//
// Context
//   The server validates on request and the scheduler validates on every
//   run, so both read the rule set through a Store.  Reads are lock-free
//   (atomic.Pointer); Watch swaps in a freshly built Set whenever the rules
//   file changes on disk.
//
//   Editors rarely write in place: most write a temp file and rename it into
//   place.  We therefore watch the parent directory, filter events by
//   file name, and debounce bursts into one reload.  A file that fails to
//   load leaves the previous Set active and is logged, never fatal.
//
//------------------------------------------------------------------------------

package ruleset

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yanizio/harvest/internal/metrics"
	"github.com/yanizio/harvest/internal/xmldoc"
)

// DefaultDebounce coalesces editor write bursts.
const DefaultDebounce = 250 * time.Millisecond

// Store holds the active Set.  The zero value is empty; use NewStore.
type Store struct {
	cur atomic.Pointer[Set]
}

// NewStore returns a Store holding s.
func NewStore(s *Set) *Store {
	st := &Store{}
	st.cur.Store(s)
	return st
}

// Current returns the active Set.
func (s *Store) Current() *Set { return s.cur.Load() }

// Swap installs next and returns the previous Set.
func (s *Store) Swap(next *Set) *Set { return s.cur.Swap(next) }

// Reload rebuilds the Set from path.  On failure the active Set is kept.
func (s *Store) Reload(path string, ns xmldoc.NamespaceTable) (*Set, error) {
	next, err := Load(path, ns)
	metrics.RulesetReloadsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.cur.Store(next)
	return next, nil
}

// Watch reloads path into the store after every change until ctx ends.
// onReload, when non-nil, is called after each attempt.
func (s *Store) Watch(ctx context.Context, path string, ns xmldoc.NamespaceTable, debounce time.Duration,
	log *zap.SugaredLogger, onReload func(*Set, error)) error {

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rules file %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	reload := func() {
		next, err := s.Reload(abs, ns)
		if err != nil {
			log.Errorw("rules reload failed, keeping previous set",
				"file", abs, "active_version", s.Current().Version, "err", err)
		} else {
			log.Infow("rules reloaded", "file", abs, "version", next.Version, "rules", len(next.Rules))
		}
		if onReload != nil {
			onReload(next, err)
		}
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev.Op) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnw("rules watcher error", "err", err)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
