package config

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentdeck/agentdeck/internal/logging"
)

// Watcher caches resolved configuration per directory and invalidates entries
// when their config files change on disk.
type Watcher struct {
	mu      sync.RWMutex
	cache   map[string]*Resolved
	watcher *fsnotify.Watcher
	watched map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewWatcher creates a config watcher.
func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cache:   make(map[string]*Resolved),
		watcher: fsw,
		watched: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins processing file events.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

// Resolve returns the cached configuration for a directory, loading and
// registering watches on first use.
func (w *Watcher) Resolve(directory string) (*Resolved, error) {
	w.mu.RLock()
	cached, ok := w.cache[directory]
	w.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err := Load(directory)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.cache[directory] = resolved
	for _, dir := range configDirs(directory) {
		if w.watched[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			logging.Debug().Err(err).Str("dir", dir).Msg("config watch skipped")
			continue
		}
		w.watched[dir] = true
	}
	w.mu.Unlock()

	return resolved, nil
}

// configDirs lists every directory Load reads config files from, so edits to
// any of them invalidate the cache.
func configDirs(directory string) []string {
	dirs := []string{GlobalConfigDir()}
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".agentdeck"))
	}
	return dirs
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.Contains(ev.Name, "agentdeck.json") {
				continue
			}
			w.mu.Lock()
			w.cache = make(map[string]*Resolved)
			w.mu.Unlock()
			logging.Debug().Str("file", ev.Name).Msg("config cache invalidated")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config watcher error")
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
