package engine

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmdevhost "github.com/wippyai/wasm-devhost"
	"github.com/wippyai/wasm-devhost/errors"
)

var _ wasmdevhost.Handle = (*Instance)(nil)

// disposeExport is the guest function invoked during teardown. Guests that
// hold no resources may omit it.
const disposeExport = "dispose"

// Instance is a live guest instance. It implements wasmdevhost.Handle.
type Instance struct {
	name     string
	module   api.Module
	disposed atomic.Bool
}

func (i *Instance) Name() string {
	return i.name
}

// Call invokes an exported guest function with raw stack values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.disposed.Load() {
		return nil, errors.New(errors.PhaseRuntime, errors.KindAlreadyDisposed).
			Module(i.name).
			Detail("call %q on disposed instance", name).
			Build()
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Module(i.name).
			Detail("no exported function %q", name).
			Build()
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindTrap, err, "call "+name)
	}
	return results, nil
}

// Exports returns the names of the guest's exported functions, sorted.
func (i *Instance) Exports() []string {
	defs := i.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispose invokes the guest's dispose export if present, then closes the
// module. A second Dispose is a no-op: the lifecycle manager may issue
// overlapping releases during rapid reloads and relies on this.
//
// A trap inside the guest's dispose still closes the module, but the
// returned dispose failure means guest-held resources may have leaked.
func (i *Instance) Dispose(ctx context.Context) error {
	if !i.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var disposeErr error
	if fn := i.module.ExportedFunction(disposeExport); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			disposeErr = errors.New(errors.PhaseDispose, errors.KindTrap).
				Module(i.name).
				Cause(err).
				Detail("guest dispose trapped").
				Build()
		}
	}

	if err := i.module.Close(ctx); err != nil && disposeErr == nil {
		disposeErr = errors.Dispose("close module", err)
	}

	if disposeErr != nil {
		Logger().Warn("instance dispose failed", zap.String("name", i.name), zap.Error(disposeErr))
	} else {
		Logger().Debug("instance disposed", zap.String("name", i.name))
	}
	return disposeErr
}
