package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/gofaas/executor"
	"github.com/caffeineduck/gofaas/language/javascript"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// functionsDir deploys every handler file in a directory under its base
// name and keeps the deployments in step with the directory.
type functionsDir struct {
	dir  string
	exec *executor.Executor
	lang *javascript.JavaScript
	log  *zap.Logger

	mu     sync.Mutex
	loaded map[string]struct{}
}

func newFunctionsDir(dir string, exec *executor.Executor, log *zap.Logger) *functionsDir {
	return &functionsDir{
		dir:    dir,
		exec:   exec,
		lang:   javascript.New(),
		log:    log.With(zap.String("dir", dir)),
		loaded: make(map[string]struct{}),
	}
}

// reload deploys all handler files and undeploys functions whose file is
// gone. A file that fails to compile keeps its previous deployment, if
// any. It returns the first deploy error.
func (f *functionsDir) reload() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("read functions dir: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !f.lang.Matches(e.Name()) {
			continue
		}
		name := f.lang.FunctionName(e.Name())
		seen[name] = struct{}{}

		src, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err == nil {
			err = f.exec.Deploy(name, string(src))
		}
		if err != nil {
			f.log.Error("deploy failed", zap.String("function", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		f.loaded[name] = struct{}{}
	}

	for name := range f.loaded {
		if _, ok := seen[name]; ok {
			continue
		}
		if err := f.exec.Undeploy(name); err != nil {
			f.log.Warn("undeploy failed", zap.String("function", name), zap.Error(err))
		}
		delete(f.loaded, name)
	}
	return firstErr
}

// watch reloads the directory whenever a handler file changes, until ctx
// is done. Bursts of events are debounced into one reload.
func (f *functionsDir) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch functions directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		const debounceDelay = 200 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !f.lang.Matches(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					if err := f.reload(); err != nil {
						f.log.Warn("functions reload incomplete", zap.Error(err))
						return
					}
					f.log.Info("functions reloaded")
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.log.Warn("file watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
