// Package errors provides structured error types for the wasm-devhost harness.
//
// Errors are categorized by Phase (where in the lifecycle the error occurred)
// and Kind (error category). The Error type carries the module location and
// lifecycle generation ID alongside a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindInvalidData).
//		Module("build/app.wasm").
//		Detail("truncated wasm header").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Load("compile module", cause)
//	err := errors.Dispose("guest dispose trapped", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Load and dispose failures are the two externally meaningful categories;
// IsLoadFailure and IsDisposeFailure classify an error chain accordingly.
package errors
