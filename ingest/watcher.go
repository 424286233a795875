// Package ingest watches a drop directory and auto-imports CSV files
// as they appear.
package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ipvc/tabx/config"
	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/logger"
	"github.com/ipvc/tabx/service"
)

// Watcher monitors a directory for dropped CSV files and imports each
// one through the service. Rapid write events for the same file are
// debounced, and imports are throttled so a bulk drop cannot saturate
// the importer.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	svc      *service.Service
	limiter  *rate.Limiter
	debounce time.Duration
	log      *zap.SugaredLogger

	mu     sync.Mutex
	timers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher over cfg.WatchDir. The directory must exist.
func New(cfg config.IngestConfig, svc *service.Service) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(cfg.WatchDir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch directory %s", cfg.WatchDir)
	}

	perMinute := cfg.ImportsPerMinute
	if perMinute <= 0 {
		perMinute = 12
	}
	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      cfg.WatchDir,
		watcher:  fsw,
		svc:      svc,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		debounce: debounce,
		log:      logger.Named("ingest"),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
	w.log.Infow("Watching for CSV drops", "dir", w.dir)
}

// Stop cancels pending imports and ends watching.
func (w *Watcher) Stop() error {
	w.cancel()
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isCSV(event.Name) {
				continue
			}
			w.scheduleImport(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("Watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

// scheduleImport debounces per file: a timer is reset while the file
// is still being written, so the import runs once the writes settle.
func (w *Watcher) scheduleImport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.importFile(path)
	})
}

func (w *Watcher) importFile(path string) {
	if err := w.limiter.Wait(w.ctx); err != nil {
		return
	}

	result, err := w.svc.ImportCSV(w.ctx, path, "", "auto-imported from "+w.dir)
	if err != nil {
		w.log.Errorw("Auto-import failed", "file", path, "error", err)
		return
	}
	w.log.Infow("Auto-imported dataset",
		"file", path,
		"dataset_id", result.DatasetID,
		"rows", result.Imported,
	)
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(filepath.Base(path)), ".csv")
}
