package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// k8sDataLink is the symlink swapped atomically by projected-volume token mounts.
const k8sDataLink = "..data"

// WatchTokenFile invalidates the cached handle whenever the token file at
// path is created, written, removed or replaced, releasing sessions built
// from a rotated token before the next query arrives. Acquire semantics are
// unchanged: the token is still compared on every acquisition.
//
// The watch is registered before WatchTokenFile returns. It stops when ctx is
// done, after which the returned channel is closed.
func (m *Manager) WatchTokenFile(ctx context.Context, path string) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create token watcher: %w", err)
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch token directory %s: %w", dir, err)
	}
	m.logger.Verbose("Watching token file %s", path)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil {
				m.logger.Error("Failed to close token watcher: %v", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if affectsToken(event, path) {
					m.logger.Verbose("Token file event %s on %s", event.Op, event.Name)
					m.Invalidate()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Error("Token watcher error: %v", err)
			}
		}
	}()

	return done, nil
}

func affectsToken(event fsnotify.Event, path string) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == path || strings.HasPrefix(filepath.Base(name), k8sDataLink)
}
