// Package watch monitors an input tree and feeds newly written images
// into the pipeline as they appear.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/scan"
)

// debounceDelay is how long a file must stay quiet before it is
// processed; editors and exporters write in bursts.
const debounceDelay = 500 * time.Millisecond

// Watcher monitors a directory tree for new or rewritten images.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	paths   chan string

	mu       sync.Mutex
	debounce map[string]*time.Timer
}

// NewWatcher creates a watcher over root and its current subtree.
func NewWatcher(root string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		watcher:  fsWatcher,
		paths:    make(chan string, 100),
		debounce: make(map[string]*time.Timer),
	}

	if err := w.addRecursive(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers root and every existing subdirectory.
// fsnotify watches are not recursive on their own.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		logger.WithField("folder", path).Debug("Watching folder")
		return nil
	})
}

// Start begins event processing until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
	logger.WithField("root", w.root).Info("Watch mode started")
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// New directories must be added to the watch set or images dropped
	// inside them are invisible.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logger.WithError(err).WithField("folder", event.Name).Warn("Failed to watch new folder")
			}
			return
		}
	}

	if !scan.IsImagePath(event.Name) {
		return
	}
	if base := filepath.Base(event.Name); base != "" && base[0] == '.' {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.debounce[event.Name]; exists {
		timer.Stop()
	}
	name := event.Name
	w.debounce[name] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.debounce, name)
		w.mu.Unlock()

		select {
		case w.paths <- name:
		default:
			logger.WithField("path", name).Warn("Watch queue full, dropping event")
		}
	})
}

// Paths returns the channel of settled image paths.
func (w *Watcher) Paths() <-chan string {
	return w.paths
}

// Stop stops the watcher and releases its OS resources.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
