// Package watch delivers hot-reload notifications from filesystem changes.
//
// It is the development-side implementation of the HotReload capability:
// the bundler rebuilding the artifact is observed as writes under the
// watched paths, debounced into one replacement cycle. Production hosts
// use wasmdevhost.NopHotReload instead; the lifecycle manager cannot tell
// the difference.
package watch
