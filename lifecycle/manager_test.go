package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	wasmdevhost "github.com/wippyai/wasm-devhost"
	"github.com/wippyai/wasm-devhost/errors"
)

// fakeHandle records disposal and can block it to simulate slow teardown.
type fakeHandle struct {
	id         int
	disposeErr error
	block      chan struct{} // when non-nil, Dispose waits for close

	mu       sync.Mutex
	disposed int
}

func (h *fakeHandle) Dispose(ctx context.Context) error {
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.mu.Lock()
	h.disposed++
	h.mu.Unlock()
	return h.disposeErr
}

func (h *fakeHandle) disposeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// fakeFactory yields a fresh handle per call and records event ordering.
type fakeFactory struct {
	err   error
	block chan struct{} // when non-nil, the first call waits for close

	mu      sync.Mutex
	calls   int
	handles []*fakeHandle
	events  []string
}

func (f *fakeFactory) record(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeFactory) load(ctx context.Context) (wasmdevhost.Handle, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	block := f.block
	f.mu.Unlock()

	if block != nil && n == 1 {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	h := &fakeHandle{id: n}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	f.record(fmt.Sprintf("load:%d", n))
	return h, nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) handle(i int) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[i]
}

// fakeHotReload captures the registered hook so tests can fire it like the
// host environment would.
type fakeHotReload struct {
	mu       sync.Mutex
	accepted bool
	hook     func(ctx context.Context) error
}

func (f *fakeHotReload) Accept() {
	f.mu.Lock()
	f.accepted = true
	f.mu.Unlock()
}

func (f *fakeHotReload) OnBeforeReplace(hook func(ctx context.Context) error) {
	f.mu.Lock()
	f.hook = hook
	f.mu.Unlock()
}

func (f *fakeHotReload) fire(ctx context.Context) error {
	f.mu.Lock()
	hook := f.hook
	f.mu.Unlock()
	if hook == nil {
		return stderrors.New("no hook registered")
	}
	return hook(ctx)
}

func waitReady(t *testing.T, m *Manager) wasmdevhost.Handle {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	return h
}

func TestAcquire_SuspendsUntilLoadResolves(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{block: make(chan struct{})}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)

	got := make(chan wasmdevhost.Handle, 1)
	go func() {
		h, err := m.Acquire(ctx)
		if err != nil {
			t.Errorf("acquire: %v", err)
		}
		got <- h
	}()

	select {
	case <-got:
		t.Fatalf("acquire returned before load resolved")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.block)

	select {
	case h := <-got:
		if h == nil {
			t.Fatalf("acquire returned nil handle")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("acquire did not resolve after load completed")
	}
}

func TestAcquire_BeforeAnyLoad(t *testing.T) {
	f := &fakeFactory{}
	m := New(f.load, wasmdevhost.NopHotReload{})

	_, err := m.Acquire(context.Background())
	if err == nil {
		t.Fatalf("expected error acquiring before Load")
	}
}

func TestAcquire_LoadFailure(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{err: stderrors.New("fetch failed")}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)

	_, err := m.Acquire(ctx)
	if err == nil {
		t.Fatalf("expected load failure")
	}
	if !errors.IsLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}

	// a failed load leaves nothing to dispose
	if err := m.Release(ctx); err != nil {
		t.Fatalf("release after failed load: %v", err)
	}
}

func TestRelease_WaitsForLoadThenDisposes(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{block: make(chan struct{})}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)

	released := make(chan error, 1)
	go func() { released <- m.Release(ctx) }()

	select {
	case <-released:
		t.Fatalf("release settled before load resolved")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.block)

	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("release did not settle")
	}

	if n := f.handle(0).disposeCount(); n != 1 {
		t.Fatalf("dispose count = %d, want 1", n)
	}
}

func TestRelease_OverlappingCallsCoalesce(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)
	waitReady(t, m)

	h := f.handle(0)
	h.block = make(chan struct{})

	results := make(chan error, 2)
	go func() { results <- m.Release(ctx) }()
	go func() { results <- m.Release(ctx) }()

	time.Sleep(50 * time.Millisecond)
	close(h.block)

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("release %d: %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("release %d did not settle", i)
		}
	}

	if n := h.disposeCount(); n != 1 {
		t.Fatalf("dispose count = %d, want 1", n)
	}
}

func TestRelease_BeforeAnyLoad(t *testing.T) {
	f := &fakeFactory{}
	m := New(f.load, wasmdevhost.NopHotReload{})

	if err := m.Release(context.Background()); err != nil {
		t.Fatalf("release before load: %v", err)
	}
}

func TestNoReload_NoDispose(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)
	waitReady(t, m)

	if n := f.handle(0).disposeCount(); n != 0 {
		t.Fatalf("dispose called %d times without any reload", n)
	}
}

func TestReload_DisposesOldBeforeLoadingNext(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	hr := &fakeHotReload{}
	m := New(f.load, hr)

	if !hr.accepted {
		t.Fatalf("manager did not opt in to reload notifications")
	}
	if hr.hook == nil {
		t.Fatalf("manager did not register a pre-replacement hook")
	}

	m.Load(ctx)
	first := waitReady(t, m)

	if err := hr.fire(ctx); err != nil {
		t.Fatalf("reload hook: %v", err)
	}

	second := waitReady(t, m)
	if first == second {
		t.Fatalf("reload did not replace the handle")
	}

	if n := f.handle(0).disposeCount(); n != 1 {
		t.Fatalf("old generation dispose count = %d, want 1", n)
	}
	if n := f.handle(1).disposeCount(); n != 0 {
		t.Fatalf("new generation disposed prematurely")
	}

	f.mu.Lock()
	events := append([]string(nil), f.events...)
	f.mu.Unlock()
	if len(events) != 2 || events[0] != "load:1" || events[1] != "load:2" {
		t.Fatalf("unexpected load order: %v", events)
	}
}

func TestReload_RapidSuccessionSerializes(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	hr := &fakeHotReload{}
	m := New(f.load, hr)
	m.Load(ctx)
	waitReady(t, m)

	h1 := f.handle(0)
	h1.block = make(chan struct{})

	done := make(chan error, 2)
	go func() { done <- hr.fire(ctx) }()
	go func() { done <- hr.fire(ctx) }()

	// both reloads are pending on the first disposal
	time.Sleep(50 * time.Millisecond)
	close(h1.block)

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("reload %d: %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("reload %d did not settle", i)
		}
	}

	waitReady(t, m)

	if got := f.callCount(); got != 3 {
		t.Fatalf("factory calls = %d, want 3 (initial + two reloads)", got)
	}
	for i := 0; i < 2; i++ {
		if n := f.handle(i).disposeCount(); n != 1 {
			t.Fatalf("generation %d dispose count = %d, want exactly 1", i+1, n)
		}
	}
	if n := f.handle(2).disposeCount(); n != 0 {
		t.Fatalf("final generation disposed prematurely")
	}
}

func TestReload_DisposeFailurePropagatesButReplacementLoads(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	hr := &fakeHotReload{}
	m := New(f.load, hr)
	m.Load(ctx)
	waitReady(t, m)

	f.handle(0).disposeErr = errors.Dispose("guest dispose trapped", nil)

	err := hr.fire(ctx)
	if err == nil {
		t.Fatalf("expected dispose failure from reload")
	}
	if !errors.IsDisposeFailure(err) {
		t.Fatalf("expected dispose failure, got %v", err)
	}

	// the failure is surfaced, not fatal: the replacement still loads
	waitReady(t, m)
	if got := f.callCount(); got != 2 {
		t.Fatalf("factory calls = %d, want 2", got)
	}
}

func TestNopHotReload_HappyPathIdentical(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)

	h := waitReady(t, m)
	if h == nil {
		t.Fatalf("nil handle")
	}
	if n := f.handle(0).disposeCount(); n != 0 {
		t.Fatalf("dispose called with no reload support")
	}
}

func TestStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{block: make(chan struct{})}
	m := New(f.load, wasmdevhost.NopHotReload{})

	if st := m.Status(); st.State != StateUnloaded {
		t.Fatalf("state before load = %v", st.State)
	}

	m.Load(ctx)
	if st := m.Status(); st.State != StatePending {
		t.Fatalf("state during load = %v", st.State)
	}

	close(f.block)
	waitReady(t, m)
	if st := m.Status(); st.State != StateReady {
		t.Fatalf("state after load = %v", st.State)
	}

	if err := m.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if st := m.Status(); st.State != StateDisposed {
		t.Fatalf("state after release = %v", st.State)
	}
}

func TestStatus_FailedLoad(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{err: stderrors.New("no artifact")}
	m := New(f.load, wasmdevhost.NopHotReload{})
	m.Load(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := m.Status()
		if st.State == StateFailed {
			if st.Err == nil {
				t.Fatalf("failed state without error")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state never became failed, got %v", st.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
