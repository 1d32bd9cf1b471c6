// Package inbox processes referral documents dropped into a watched
// directory.
package inbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/store"
)

// DefaultDebounce is how long a file must stay quiet before it is processed
const DefaultDebounce = 500 * time.Millisecond

// Processor turns a document of the watched directory into a stored fiche
type Processor interface {
	ProcessFile(ctx context.Context, path string) (*store.FicheRecord, error)
}

// Watcher watches one directory and hands every new .docx or .pdf file to
// a Processor. Files are processed one at a time.
type Watcher struct {
	dir      string
	proc     Processor
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	ready   chan string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for dir
func New(dir string, proc Processor, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		proc:     proc,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the directory is registered; events
// are handled in the background until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return fmt.Errorf("inbox watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.watchLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		w.processLoop(ctx)
	}()
	go func() {
		wg.Wait()
		close(w.done)
	}()

	w.logger.Info("inbox watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop stops watching and waits for the file in progress, if any
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.watcher.Close()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	done := w.done
	w.watcher = nil
	w.mu.Unlock()

	<-done
	w.logger.Info("inbox watcher stopped", zap.String("dir", w.dir))
}

func (w *Watcher) watchLoop(ctx context.Context) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !watched(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the quiet timer of a file. Word and LibreOffice write a
// document in several steps, so each new event pushes processing back.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		default:
			w.logger.Warn("inbox queue full, file skipped", zap.String("path", path))
		}
	})
}

func (w *Watcher) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	start := time.Now()
	rec, err := w.proc.ProcessFile(ctx, path)
	if err != nil {
		w.logger.Error("inbox file failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("inbox file processed",
		zap.String("path", path),
		zap.Int64("fiche_id", rec.ID),
		zap.Duration("duration", time.Since(start)),
	)
}

// watched skips hidden files, Office lock files (~$name.docx) and anything
// that is not an accepted upload
func watched(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return document.IsUploadName(name)
}
