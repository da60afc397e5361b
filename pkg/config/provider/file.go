// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (editors commonly
// write a file via a temp-file-plus-rename, which fires more than one
// event per logical save) into a single reload signal.
const watchDebounce = 100 * time.Millisecond

// rewatchInterval and rewatchAttempts bound how long FileProvider keeps
// trying to re-establish a watch after the config file disappears (an
// editor's atomic-save can briefly unlink the file before recreating it).
const (
	rewatchInterval = 500 * time.Millisecond
	rewatchAttempts = 10
)

// FileProvider reads config from a path on the local filesystem and,
// when asked to Watch, reports changes to it via fsnotify.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider resolves path to an absolute location and returns a
// provider over it. The file need not exist yet; Load surfaces any
// read error at call time.
func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	return &FileProvider{path: abs}, nil
}

func (p *FileProvider) Type() Type { return TypeFile }

func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch reports on the returned channel whenever the config file is
// written or recreated. fsnotify watches the containing directory
// rather than the file itself, since not every platform supports
// watching a single file, and filters events down to the one entry we
// care about.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("config provider is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}
	p.watcher = watcher

	changed := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, changed)

	slog.Info("config: watching file for changes", "path", p.path)
	return changed, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changed chan<- struct{}) {
	defer close(changed)
	defer watcher.Close()

	name := filepath.Base(p.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
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
			if filepath.Base(event.Name) != name {
				continue
			}
			p.handleEvent(ctx, watcher, event, name, changed, &debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config: file watcher error", "error", err)
		}
	}
}

func (p *FileProvider) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, name string, changed chan<- struct{}, debounce **time.Timer) {
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if *debounce != nil {
			(*debounce).Stop()
		}
		*debounce = time.AfterFunc(watchDebounce, func() {
			select {
			case changed <- struct{}{}:
				slog.Debug("config: file changed", "path", p.path)
			default:
				// a reload is already pending
			}
		})

	case event.Op&fsnotify.Remove != 0:
		slog.Warn("config: watched file was removed", "path", p.path)
		go p.rewatch(ctx, watcher, changed)
	}
}

// rewatch retries adding the watch after the target file is removed,
// covering editors whose atomic save briefly unlinks the old file
// before renaming the new one into place.
func (p *FileProvider) rewatch(ctx context.Context, watcher *fsnotify.Watcher, changed chan<- struct{}) {
	ticker := time.NewTicker(rewatchInterval)
	defer ticker.Stop()

	dir := filepath.Dir(p.path)
	for i := 0; i < rewatchAttempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(p.path); err != nil {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				continue
			}
			slog.Info("config: re-established watch after file recreation", "path", p.path)
			select {
			case changed <- struct{}{}:
			default:
			}
			return
		}
	}
	slog.Warn("config: gave up re-establishing watch", "path", p.path)
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
