package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the docs directory and keeps the index current.
// Events are debounced so editor save bursts trigger one re-index.
type Watcher struct {
	index        *Index
	watcher      *fsnotify.Watcher
	debounceTime time.Duration

	mu      sync.Mutex
	pending map[string]fsnotify.Op

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over the index's docs root, including
// subdirectories.
func NewWatcher(index *Index) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		index:        index,
		watcher:      fsw,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]fsnotify.Op),
		ctx:          ctx,
		cancel:       cancel,
	}

	if err := w.addRecursive(index.DocsRoot()); err != nil {
		fsw.Close()
		cancel()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				log.Printf("[knowledge] cannot watch %s: %v", path, err)
			}
		}
		return nil
	})
}

// Start begins processing filesystem events until Stop is called.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			w.pending[event.Name] |= event.Op
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[knowledge] watch error: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush applies accumulated events to the index.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	for path, op := range batch {
		rel, err := filepath.Rel(w.index.DocsRoot(), path)
		if err != nil {
			continue
		}

		if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			if err := w.index.Remove(rel); err != nil {
				log.Printf("[knowledge] remove %s: %v", rel, err)
			}
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			// New directory: watch it and index its contents
			_ = w.addRecursive(path)
			continue
		}
		if !isTextFile(path) {
			continue
		}
		if err := w.index.IndexFile(rel); err != nil {
			log.Printf("[knowledge] reindex %s: %v", rel, err)
		}
	}
}

// Stop halts event processing and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}
