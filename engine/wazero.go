package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-devhost/errors"
)

// Engine wraps a wazero runtime shared by all module generations. It is
// safe to instantiate successive generations from one Engine; each
// Instance owns its own guest state.
type Engine struct {
	runtime  wazero.Runtime
	cfg      Config
	wasiInit sync.Once
	wasiErr  error
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// EnableWASI instantiates the wasi_snapshot_preview1 host module before
	// the first guest instantiation. Required for guests built against WASI.
	EnableWASI bool

	// ModuleName names instantiated modules. Successive generations reuse
	// the name, so instantiation requires the prior generation to be closed
	// first. Empty means anonymous instances.
	ModuleName string
}

// New creates a new wazero-based engine with default configuration
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a new engine with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var c Config
	if cfg != nil {
		c = *cfg
		if c.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: runtime, cfg: c}, nil
}

// Instantiate compiles wasmBytes and instantiates it as a new guest
// instance. This is the asynchronous load step of the harness: the call
// suspends until the guest's start function (if any) has run.
//
// Failures surface as load errors; no retry is attempted here.
func (e *Engine) Instantiate(ctx context.Context, wasmBytes []byte) (*Instance, error) {
	if e.cfg.EnableWASI {
		e.wasiInit.Do(func() {
			_, e.wasiErr = wasi_snapshot_preview1.Instantiate(ctx, e.runtime)
		})
		if e.wasiErr != nil {
			return nil, errors.Load("instantiate wasi host", e.wasiErr)
		}
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	modCfg := wazero.NewModuleConfig().WithName(e.cfg.ModuleName)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, errors.Load("instantiate module", err)
	}

	Logger().Debug("module instantiated",
		zap.String("name", e.cfg.ModuleName),
		zap.Int("size", len(wasmBytes)))

	return &Instance{name: e.cfg.ModuleName, module: mod}, nil
}

// Close releases all engine resources.
// All instances must be disposed before calling this.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
