package watch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	wasmdevhost "github.com/wippyai/wasm-devhost"
	"github.com/wippyai/wasm-devhost/errors"
)

// DefaultDebounce is how long a burst of filesystem events must settle
// before the reload hook fires. Bundlers emit several writes per rebuild.
const DefaultDebounce = 200 * time.Millisecond

var _ wasmdevhost.HotReload = (*Watcher)(nil)

// Watcher implements the HotReload capability on top of filesystem
// notifications: a settled burst of changes under the watched paths is one
// replacement cycle.
//
// Hook errors are logged and swallowed; a failed disposal must surface to
// the developer, not kill the harness.
type Watcher struct {
	paths    []string
	debounce time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	accepted bool
	hook     func(ctx context.Context) error

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the watcher's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// New creates a watcher for the given paths. Start must be called before
// any events are delivered.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.InvalidInput(errors.PhaseWatch, "no paths to watch")
	}

	w := &Watcher{
		paths:    paths,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	return w, nil
}

// Accept opts in to replacement notifications. Events observed before
// Accept are ignored.
func (w *Watcher) Accept() {
	w.mu.Lock()
	w.accepted = true
	w.mu.Unlock()
}

// OnBeforeReplace registers the pre-replacement hook.
func (w *Watcher) OnBeforeReplace(hook func(ctx context.Context) error) {
	w.mu.Lock()
	w.hook = hook
	w.mu.Unlock()
}

// Start begins watching. The ctx bounds the watch loop and is passed to
// the hook on each replacement cycle.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Watch("create watcher", err)
	}
	for _, p := range w.paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return errors.New(errors.PhaseWatch, errors.KindIO).
				Module(p).
				Cause(err).
				Detail("watch path").
				Build()
		}
	}
	w.fsw = fsw

	w.log.Info("watching for source changes",
		zap.Strings("paths", w.paths),
		zap.Duration("debounce", w.debounce))

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug("source change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			armed = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			armed = false
			w.fire(ctx)

		case <-ctx.Done():
			_ = w.Close()
			return

		case <-w.done:
			return
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Create) ||
		ev.Op.Has(fsnotify.Rename) ||
		ev.Op.Has(fsnotify.Remove)
}

func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	accepted := w.accepted
	hook := w.hook
	w.mu.Unlock()

	if !accepted || hook == nil {
		return
	}

	w.log.Info("source changed, replacing module")
	if err := hook(ctx); err != nil {
		w.log.Error("reload hook failed", zap.Error(err))
	}
}

// Close stops delivering events. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}
