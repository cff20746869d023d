// Package watch re-runs the analysis whenever Python sources or
// configuration files under a project root change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/unbound-force/paramcheck/internal/analysis"
	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/loader"
	"github.com/unbound-force/paramcheck/internal/pyscan"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// DefaultDebounce is how long the watcher waits for a burst of events
// to settle before re-running.
const DefaultDebounce = 200 * time.Millisecond

// configFiles are the files whose change reloads configuration.
var configFiles = map[string]bool{
	config.FileName:  true,
	"pytest.ini":     true,
	"pyproject.toml": true,
	"tox.ini":        true,
	"setup.cfg":      true,
}

// Options configures a Watch invocation.
type Options struct {
	// Root is the project directory.
	Root string

	// ConfigPath is an explicit tool configuration file. Empty means
	// config.FileName in Root.
	ConfigPath string

	// Analysis is passed to every run. Config and Framework are
	// replaced when configuration files change.
	Analysis analysis.Options

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnResult receives each run's result. A returned error stops
	// the watcher.
	OnResult func(*taxonomy.Result) error

	// OnError receives run errors, such as a project without Python
	// files. The watcher keeps going. Nil logs them.
	OnError func(error)

	Logger *log.Logger
}

// Relevant reports whether a change to path can affect the analysis.
func Relevant(path string) (relevant, configChange bool) {
	base := filepath.Base(path)
	if configFiles[base] {
		return true, true
	}
	return strings.HasSuffix(base, ".py"), false
}

type watcher struct {
	opts  Options
	cache *loader.Cache
	fs    *fsnotify.Watcher
}

// Watch runs the analysis once, then again after every settled batch
// of relevant changes, until ctx is done or OnResult fails.
func Watch(ctx context.Context, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.OnResult == nil {
		return errors.New("watch: OnResult is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", opts.Root, err)
	}
	opts.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	w := &watcher{opts: opts, cache: loader.NewCache(), fs: fsw}
	if err := w.addTree(root); err != nil {
		return err
	}
	if err := w.reloadConfig(); err != nil {
		return err
	}
	if err := w.run(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending, reload := false, false
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.warn("watcher error", "err", err)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			relevant, cfg := Relevant(ev.Name)
			if ev.Op == fsnotify.Chmod {
				relevant = false
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.warn("watching new directory", "dir", ev.Name, "err", err)
					}
					relevant = true
				}
			}
			if !relevant {
				continue
			}
			reload = reload || cfg
			pending = true
			timer.Reset(opts.Debounce)
		case <-timer.C:
			if !pending {
				continue
			}
			if reload {
				if err := w.reloadConfig(); err != nil {
					w.report(err)
				}
			}
			pending, reload = false, false
			if err := w.run(ctx); err != nil {
				return err
			}
		}
	}
}

// run analyzes the project. Only OnResult errors stop the watcher.
func (w *watcher) run(ctx context.Context) error {
	if w.opts.Logger != nil {
		w.opts.Logger.Info("running analysis", "root", w.opts.Root)
	}
	result, err := analysis.LoadAndAnalyze(ctx, w.opts.Root, w.cache, w.opts.Analysis)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.report(err)
		return nil
	}
	return w.opts.OnResult(result)
}

// reloadConfig re-reads both configuration layers, bypassing the
// per-process framework memo. On failure the previous settings stay.
func (w *watcher) reloadConfig() error {
	cfg, err := config.Find(w.opts.Root, w.opts.ConfigPath)
	if err != nil {
		return err
	}
	fw, err := config.ReadFramework(w.opts.Root)
	if err != nil {
		return err
	}
	w.opts.Analysis.Config = cfg
	w.opts.Analysis.Framework = fw
	return nil
}

// addTree watches dir and its subdirectories.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && pyscan.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *watcher) report(err error) {
	if w.opts.OnError != nil {
		w.opts.OnError(err)
		return
	}
	w.warn("analysis failed", "err", err)
}

func (w *watcher) warn(msg string, keyvals ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Warn(msg, keyvals...)
	}
}
