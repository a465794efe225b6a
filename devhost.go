package wasmdevhost

import "context"

// Handle is a loaded binary module. Exactly one Handle is current at any
// point after the first successful load; the lifecycle manager owns the
// only write path to it.
type Handle interface {
	// Dispose releases the module's resources (guest memory, open handles).
	// It must tolerate being the last operation on the handle; using a
	// Handle after Dispose is the caller's error.
	Dispose(ctx context.Context) error
}

// Factory produces a Handle asynchronously. The module's location is bound
// when the factory is constructed; a factory call is one load attempt and
// performs no retries.
type Factory func(ctx context.Context) (Handle, error)

// HotReload is the host environment's module-replacement capability.
//
// A real implementation delivers "about to replace" notifications from
// whatever rebuilds the module (see package watch). Hosts without reload
// support pass NopHotReload so the manager's logic is identical either way
// and the conditional lives only at the boundary.
type HotReload interface {
	// Accept opts in to receiving replacement notifications. Called once.
	Accept()

	// OnBeforeReplace registers hook to run before the current module is
	// discarded. The hook is invoked at most once per replacement cycle.
	OnBeforeReplace(hook func(ctx context.Context) error)
}

// NopHotReload is the HotReload implementation for hosts without reload
// support. The registered hook is never invoked.
type NopHotReload struct{}

func (NopHotReload) Accept() {}

func (NopHotReload) OnBeforeReplace(func(ctx context.Context) error) {}
