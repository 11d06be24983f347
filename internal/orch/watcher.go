package orch

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the stats cache artifact on disk and, when the
// external job's output is replaced underneath us, reloads the cache
// and republishes the index. The artifact's directory is watched, not
// the file itself, so temp-file renames are seen.
type Watcher struct {
	orch     *Orchestrator
	path     string
	debounce *debouncer

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

type WatcherOptions struct {
	Debounce time.Duration
}

// NewWatcher watches the stats artifact at path for the orchestrator.
func NewWatcher(o *Orchestrator, path string, opts WatcherOptions) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("stats artifact path is required")
	}
	if o == nil || o.opts.Stats == nil {
		return nil, fmt.Errorf("orchestrator with a stats store is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		orch:   o,
		path:   abs,
		fsw:    fsw,
		closed: make(chan struct{}),
	}
	w.debounce = newDebouncer(opts.Debounce, w.reload)

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.closed:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.debounce.Push()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("orch: stats watcher: %v", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

func (w *Watcher) reload() {
	select {
	case <-w.closed:
		return
	default:
	}

	if err := w.orch.opts.Stats.Load(); err != nil {
		// A half-written or incompatible artifact leaves the previous
		// snapshot serving.
		log.Printf("orch: replaced stats artifact unusable: %v", err)
		return
	}
	if _, err := w.orch.Rebuild(); err != nil {
		log.Printf("orch: rebuild after stats change: %v", err)
	}
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		close(w.closed)
		w.debounce.Stop()
		_ = w.fsw.Close()
	})
	return nil
}
