// Package wasmdevhost is a development-time harness for WebAssembly compute
// modules: it loads a wasm binary into the host process, re-creates it when
// a rebuild replaces the artifact, and guarantees the outgoing instance is
// disposed before the replacement takes over.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	wasmdevhost/         Root package with Handle, Factory and HotReload contracts
//	├── lifecycle/       Module lifecycle manager: load, acquire, release, reload
//	├── engine/          wazero integration: instantiation and guest dispose
//	├── artifact/        Fetchable binary sources (local file, dev-server HTTP)
//	├── watch/           Filesystem HotReload implementation with debouncing
//	├── config/          YAML harness configuration
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Wire a factory to an artifact source and an engine, then hand both to the
// lifecycle manager:
//
//	eng, _ := engine.New(ctx)
//	src := artifact.FileSource{Path: "build/app.wasm"}
//
//	factory := func(ctx context.Context) (wasmdevhost.Handle, error) {
//	    data, err := src.Fetch(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return eng.Instantiate(ctx, data)
//	}
//
//	mgr := lifecycle.New(factory, wasmdevhost.NopHotReload{})
//	mgr.Load(ctx)
//
//	handle, err := mgr.Acquire(ctx) // suspends until the load settles
//
// With a watcher, a settled burst of source changes disposes the current
// instance and loads the next generation:
//
//	w, _ := watch.New([]string{"build"})
//	mgr := lifecycle.New(factory, w)
//	w.Start(ctx)
//
// # Lifecycle Contract
//
// Each load produces a generation: Pending until the factory settles, then
// Ready or Failed (terminal). Disposal runs exactly once per generation and
// is fully awaited before the next generation's load begins. A failed load
// disposes nothing; the failure surfaces to whoever acquires.
package wasmdevhost
