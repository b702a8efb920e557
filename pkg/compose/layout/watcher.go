package layout

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig controls template root watching.
type WatcherConfig struct {
	// DebounceInterval is how long to wait after the last change before
	// reloading, so bulk template updates trigger one reload, not one
	// per file. Default: 250ms.
	DebounceInterval time.Duration
}

// Watcher watches the template root and rebuilds the library when layer
// files or manifests change. The current library is swapped atomically;
// in-flight compositions keep the library they started with.
type Watcher struct {
	loader   *Loader
	config   WatcherConfig
	onReload func(*Library)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher. onReload is called with each successfully
// rebuilt library; a failed reload keeps the previous library and logs.
func NewWatcher(loader *Loader, cfg WatcherConfig, onReload func(*Library), logger *slog.Logger) *Watcher {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		loader:   loader,
		config:   cfg,
		onReload: onReload,
		logger:   logger.With("component", "layout.watcher"),
	}
}

// Start begins watching. It returns once the watch is established.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	// Watch the root and every directory beneath it; fsnotify is not
	// recursive on its own.
	err = filepath.WalkDir(w.loader.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return fmt.Errorf("watching template root: %w", err)
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(fsw)
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.running = false
}

func (w *Watcher) run(fsw *fsnotify.Watcher) {
	defer close(w.doneCh)
	defer fsw.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// A new layer directory must be watched too.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceInterval)
				timerCh = timer.C
			} else {
				timer.Reset(w.config.DebounceInterval)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("template watch error", "error", err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		}
	}
}

// relevant filters events down to template and manifest changes.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return true
	}
	return strings.HasSuffix(event.Name, TemplateSuffix) || base == manifestFile
}

func (w *Watcher) reload() {
	library, err := w.loader.Load()
	if err != nil {
		w.logger.Error("template reload failed, keeping previous library", "error", err)
		return
	}
	w.logger.Info("template library reloaded", "layers", library.Len())
	w.onReload(library)
}
