package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-devhost/errors"
)

// Config is the harness configuration, typically devhost.yaml:
//
//	module:
//	  path: build/app.wasm
//	watch:
//	  paths: [build]
//	  debounce_ms: 200
//	engine:
//	  memory_limit_pages: 1024
//	  wasi: true
//	log:
//	  level: info
type Config struct {
	Module ModuleConfig `yaml:"module"`
	Watch  WatchConfig  `yaml:"watch"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// ModuleConfig addresses the binary artifact. Exactly one of Path or URL
// must be set.
type ModuleConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// WatchConfig configures hot reload. An empty Paths list disables it.
type WatchConfig struct {
	Paths      []string `yaml:"paths"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// Debounce returns the configured debounce window, or 0 to use the watch
// package default.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// EngineConfig tunes the wazero engine.
type EngineConfig struct {
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	WASI             bool   `yaml:"wasi"`
	ModuleName       string `yaml:"module_name"`
}

// LogConfig controls harness logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates a yaml config file. Unknown fields are an
// error; silently ignoring a typoed key is exactly what a dev harness must
// not do.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "read config")
	}
	return Parse(data)
}

// Parse decodes and validates raw yaml config bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Module.Path == "" && c.Module.URL == "" {
		return errors.InvalidInput(errors.PhaseConfig, "module.path or module.url is required")
	}
	if c.Module.Path != "" && c.Module.URL != "" {
		return errors.InvalidInput(errors.PhaseConfig, "module.path and module.url are mutually exclusive")
	}
	if c.Watch.DebounceMS < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "watch.debounce_ms must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown log level %q", c.Log.Level).
			Build()
	}
	return nil
}
