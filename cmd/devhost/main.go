package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	wasmdevhost "github.com/wippyai/wasm-devhost"
	"github.com/wippyai/wasm-devhost/artifact"
	"github.com/wippyai/wasm-devhost/config"
	"github.com/wippyai/wasm-devhost/engine"
	"github.com/wippyai/wasm-devhost/lifecycle"
	"github.com/wippyai/wasm-devhost/watch"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to the wasm artifact")
		wasmURL     = flag.String("url", "", "Dev-server URL of the wasm artifact")
		watchPaths  = flag.String("watch", "", "Paths to watch for rebuilds (comma-separated)")
		configFile  = flag.String("config", "", "Path to devhost.yaml")
		debounceMS  = flag.Int("debounce-ms", 0, "Debounce window for watch events")
		memPages    = flag.Uint("memory-pages", 0, "Guest memory limit in 64KB pages")
		wasi        = flag.Bool("wasi", false, "Instantiate the WASI preview1 host")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	cfg, err := resolveConfig(*configFile, *wasmFile, *wasmURL, *watchPaths, *debounceMS, uint32(*memPages), *wasi, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: devhost -wasm <file.wasm> [-watch dir,...] [-i]")
		fmt.Fprintln(os.Stderr, "       devhost -url <http://host/app.wasm> [-watch dir,...]")
		fmt.Fprintln(os.Stderr, "       devhost -config devhost.yaml")
		os.Exit(1)
	}

	tui := *interactive
	if tui && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, falling back to plain mode")
		tui = false
	}

	if err := run(cfg, tui); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfig merges the optional config file with flag overrides. Flags
// win: the file describes the project, flags describe this invocation.
func resolveConfig(configFile, wasmFile, wasmURL, watchPaths string, debounceMS int, memPages uint32, wasi, verbose bool) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if wasmFile != "" {
		cfg.Module.Path = wasmFile
		cfg.Module.URL = ""
	}
	if wasmURL != "" {
		cfg.Module.URL = wasmURL
		cfg.Module.Path = ""
	}
	if watchPaths != "" {
		cfg.Watch.Paths = strings.Split(watchPaths, ",")
	}
	if debounceMS > 0 {
		cfg.Watch.DebounceMS = debounceMS
	}
	if memPages > 0 {
		cfg.Engine.MemoryLimitPages = memPages
	}
	if wasi {
		cfg.Engine.WASI = true
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, tui bool) (*zap.Logger, error) {
	if tui {
		// the TUI owns the terminal; state changes render there instead
		return zap.NewNop(), nil
	}
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Log.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

func run(cfg config.Config, tui bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg, tui)
	if err != nil {
		return err
	}
	defer log.Sync()

	engine.SetLogger(log.Named("engine"))
	lifecycle.SetLogger(log.Named("lifecycle"))

	eng, err := engine.NewWithConfig(ctx, &engine.Config{
		MemoryLimitPages: cfg.Engine.MemoryLimitPages,
		EnableWASI:       cfg.Engine.WASI,
		ModuleName:       cfg.Engine.ModuleName,
	})
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	var src artifact.Source
	if cfg.Module.URL != "" {
		src = artifact.HTTPSource{URL: cfg.Module.URL}
	} else {
		src = artifact.FileSource{Path: cfg.Module.Path}
	}

	factory := func(ctx context.Context) (wasmdevhost.Handle, error) {
		data, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return eng.Instantiate(ctx, data)
	}

	// hot reload is a capability: real watcher when the project watches
	// sources, no-op otherwise. The manager cannot tell the difference.
	var reload wasmdevhost.HotReload = wasmdevhost.NopHotReload{}
	var watcher *watch.Watcher
	if len(cfg.Watch.Paths) > 0 {
		opts := []watch.Option{watch.WithLogger(log.Named("watch"))}
		if d := cfg.Watch.Debounce(); d > 0 {
			opts = append(opts, watch.WithDebounce(d))
		}
		watcher, err = watch.New(cfg.Watch.Paths, opts...)
		if err != nil {
			return err
		}
		defer watcher.Close()
		reload = watcher
	}

	mgr := lifecycle.New(factory, reload, lifecycle.WithLogger(log.Named("lifecycle")))

	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			return err
		}
	}

	mgr.Load(ctx)

	if tui {
		return runInteractive(mgr, src.Location())
	}
	return runPlain(ctx, log, mgr)
}

func runPlain(ctx context.Context, log *zap.Logger, mgr *lifecycle.Manager) error {
	handle, err := mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	if inst, ok := handle.(*engine.Instance); ok {
		log.Info("module ready", zap.Strings("exports", inst.Exports()))
	}

	<-ctx.Done()
	log.Info("shutting down")

	disposeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mgr.Release(disposeCtx)
}
