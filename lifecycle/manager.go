package lifecycle

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wasmdevhost "github.com/wippyai/wasm-devhost"
	"github.com/wippyai/wasm-devhost/errors"
)

// generation is one load attempt and its eventual handle. A generation
// settles exactly once (done closes) and is disposed at most once
// (disposed closes after disposal settles, or immediately when the load
// failed and there is nothing to dispose).
type generation struct {
	id     string
	seq    uint64
	done   chan struct{}
	handle wasmdevhost.Handle
	err    error

	disposeOnce sync.Once
	disposed    chan struct{}
	disposeErr  error
}

func (g *generation) settled() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

func (g *generation) isDisposed() bool {
	select {
	case <-g.disposed:
		return true
	default:
		return false
	}
}

// Manager owns the process-wide module handle. It is the single writer:
// the factory result of the newest Load is the only thing ever published,
// and disposal is the only privileged read that consumes it.
//
// Construct one Manager per process and pass it explicitly; there is no
// ambient global.
type Manager struct {
	factory wasmdevhost.Factory
	log     *zap.Logger

	mu  sync.Mutex
	cur *generation
	seq uint64

	// reloadMu serializes reload cycles so disposal of generation N fully
	// settles before the load of generation N+1 starts. Overlapping reload
	// notifications queue here instead of racing.
	reloadMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// New constructs the manager and registers its reload hook with the host's
// replacement capability. Pass wasmdevhost.NopHotReload{} when the host has
// no reload support; the manager behaves identically, the hook is simply
// never invoked.
func New(factory wasmdevhost.Factory, reload wasmdevhost.HotReload, opts ...Option) *Manager {
	m := &Manager{factory: factory}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = Logger()
	}
	if reload == nil {
		reload = wasmdevhost.NopHotReload{}
	}

	reload.Accept()
	reload.OnBeforeReplace(m.Reload)

	return m
}

// Load starts the asynchronous load of the next generation and returns
// immediately. The new generation replaces the current one for all future
// Acquire calls, whether or not the previous instance is still referenced.
//
// Load does not dispose the previous generation; use Reload for the
// dispose-then-replace cycle.
func (m *Manager) Load(ctx context.Context) {
	g := &generation{
		id:       uuid.NewString(),
		done:     make(chan struct{}),
		disposed: make(chan struct{}),
	}

	m.mu.Lock()
	m.seq++
	g.seq = m.seq
	m.cur = g
	m.mu.Unlock()

	m.log.Info("module load started",
		zap.String("generation", g.id),
		zap.Uint64("seq", g.seq))

	go m.run(ctx, g)
}

func (m *Manager) run(ctx context.Context, g *generation) {
	handle, err := m.factory(ctx)
	if err != nil {
		if _, ok := err.(*errors.Error); !ok {
			err = errors.Load("instantiate module", err)
		}
		g.err = err
		close(g.done)
		m.log.Error("module load failed",
			zap.String("generation", g.id),
			zap.Error(err))
		return
	}

	g.handle = handle
	close(g.done)
	m.log.Info("module ready", zap.String("generation", g.id))
}

// Acquire awaits the current generation's load and returns its handle.
// There is no synchronous fallback: before the first Load settles every
// caller suspends here. A failed load surfaces its load failure to every
// acquirer; callers wanting a bound on the wait pass a ctx with deadline.
func (m *Manager) Acquire(ctx context.Context) (wasmdevhost.Handle, error) {
	m.mu.Lock()
	g := m.cur
	m.mu.Unlock()

	if g == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "module")
	}

	select {
	case <-g.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if g.err != nil {
		return nil, g.err
	}
	return g.handle, nil
}

// Release awaits the current generation's load, then disposes its handle.
// Disposal runs exactly once per generation: overlapping releases coalesce
// onto the same disposal and all return its result. Releasing a failed
// load disposes nothing and returns nil. Releasing before any Load is a
// no-op.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	g := m.cur
	m.mu.Unlock()
	return m.release(ctx, g)
}

func (m *Manager) release(ctx context.Context, g *generation) error {
	if g == nil {
		return nil
	}

	// dispose cannot start before this generation's load resolved
	select {
	case <-g.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.disposeOnce.Do(func() {
		defer close(g.disposed)
		if g.err != nil {
			// failed load: nothing to dispose
			return
		}
		m.log.Info("disposing module", zap.String("generation", g.id))
		if err := g.handle.Dispose(ctx); err != nil {
			if _, ok := err.(*errors.Error); !ok {
				err = errors.Dispose("dispose module", err)
			}
			g.disposeErr = err
		}
	})

	// coalesced callers wait for the winning disposal to settle
	select {
	case <-g.disposed:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.disposeErr
}

// Reload is the pre-replacement hook: it disposes the current generation,
// fully awaited, then starts the next load. Because the current generation
// is only swapped after its disposal settles, no code path can observe
// generation N+1 as ready before generation N finished disposing.
//
// A dispose failure does not abort the cycle; the next generation still
// loads and the failure is returned for the reload machinery to surface.
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.mu.Lock()
	old := m.cur
	m.mu.Unlock()

	err := m.release(ctx, old)
	if ctx.Err() != nil {
		return err
	}

	m.Load(ctx)
	return err
}
