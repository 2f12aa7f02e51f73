package observation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/logging"
)

// cacheTTL is a backstop; normally the mtime check or the file watcher
// invalidates an entry long before it expires.
const (
	cacheTTL      = 15 * time.Minute
	cacheCleanup  = 30 * time.Minute
	sourceLogName = "observation"
)

type cachedTable struct {
	table   *Table
	modTime time.Time
	size    int64
}

// Source is a read-through cached loader for the observation file. The file
// is treated as read-only by this application; external updates are picked up
// on the next load after the modification is visible.
type Source struct {
	path  string
	cache *cache.Cache
	mu    sync.Mutex
	log   *slog.Logger
	gen   uint64

	// OnReload, when set, is called after every successful parse of the file.
	OnReload func(rows int, elapsed time.Duration)

	// OnLoadError, when set, is called when a load attempt fails.
	OnLoadError func(elapsed time.Duration)

	// OnInvalidate, when set, is called whenever the cached parse is dropped.
	OnInvalidate func()
}

// NewSource creates a Source for the given file path.
func NewSource(path string) *Source {
	logger := logging.ForService(sourceLogName)
	if logger == nil {
		logger = slog.Default().With("service", sourceLogName)
	}
	return &Source{
		path:  path,
		cache: cache.New(cacheTTL, cacheCleanup),
		log:   logger,
	}
}

// Path returns the source file path.
func (s *Source) Path() string {
	return s.path
}

// Table returns the parsed observation table, reloading the file when its
// modification time or size changed since the cached parse.
func (s *Source) Table() (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.path)
	if err != nil {
		if s.OnLoadError != nil {
			s.OnLoadError(0)
		}
		return nil, errors.New(err).
			Component("observation").
			Category(errors.CategoryConfiguration).
			FileContext(s.path).
			Context("operation", "stat-source").
			Build()
	}

	if entry, found := s.cache.Get(s.path); found {
		ct := entry.(*cachedTable)
		if ct.modTime.Equal(fi.ModTime()) && ct.size == fi.Size() {
			return ct.table, nil
		}
		s.log.Info("source file changed, reloading", "path", s.path)
	}

	start := time.Now()
	table, err := LoadFile(s.path)
	if err != nil {
		if s.OnLoadError != nil {
			s.OnLoadError(time.Since(start))
		}
		return nil, err
	}
	elapsed := time.Since(start)

	s.gen++
	table.generation = s.gen
	s.cache.Set(s.path, &cachedTable{table: table, modTime: fi.ModTime(), size: fi.Size()}, cache.DefaultExpiration)
	s.log.Info("source file loaded", "path", s.path, "rows", table.Len(), "columns", len(table.Columns()))

	if s.OnReload != nil {
		s.OnReload(table.Len(), elapsed)
	}
	return table, nil
}

// Invalidate drops the cached parse so the next Table call re-reads the file.
func (s *Source) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(s.path)
	if s.OnInvalidate != nil {
		s.OnInvalidate()
	}
}

// Watch invalidates the cache whenever the source file changes on disk.
// The watcher runs until the context is cancelled. Editors often replace
// files by rename, so the parent directory is watched and events are matched
// by name.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component("observation").
			Category(errors.CategoryFileIO).
			Context("operation", "create-watcher").
			Build()
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.New(err).
			Component("observation").
			Category(errors.CategoryFileIO).
			FileContext(dir).
			Context("operation", "watch-source-dir").
			Build()
	}

	go func() {
		defer watcher.Close()
		base := filepath.Base(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					s.log.Debug("source file event, invalidating cache", "event", event.Op.String())
					s.Invalidate()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("source watcher error", "error", err)
			}
		}
	}()

	return nil
}
