package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the module lifecycle the error occurred
type Phase string

const (
	PhaseFetch   Phase = "fetch"   // artifact retrieval
	PhaseLoad    Phase = "load"    // compile and instantiate
	PhaseDispose Phase = "dispose" // instance teardown
	PhaseWatch   Phase = "watch"   // filesystem watching
	PhaseConfig  Phase = "config"  // harness configuration
	PhaseRuntime Phase = "runtime" // calls into a live instance
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidData     Kind = "invalid_data"
	KindInstantiation   Kind = "instantiation"
	KindTrap            Kind = "trap"
	KindIO              Kind = "io"
	KindInvalidInput    Kind = "invalid_input"
	KindNotInitialized  Kind = "not_initialized"
	KindAlreadyDisposed Kind = "already_disposed"
	KindUnsupported     Kind = "unsupported"
)

// Error is the structured error type used throughout the harness
type Error struct {
	Cause      error
	Phase      Phase
	Kind       Kind
	Module     string
	Generation string
	Detail     string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}
	if e.Generation != "" {
		b.WriteString(" (generation ")
		b.WriteString(e.Generation)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module name or location
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Generation sets the lifecycle generation ID
func (b *Builder) Generation(id string) *Builder {
	b.err.Generation = id
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates a load failure: the module could not be compiled or
// instantiated. The lifecycle manager never retries these.
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: detail,
		Cause:  cause,
	}
}

// Dispose creates a dispose failure: the instance's teardown did not
// complete and its resources may remain partially leaked.
func Dispose(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispose,
		Kind:   KindTrap,
		Detail: detail,
		Cause:  cause,
	}
}

// Fetch creates an artifact retrieval error
func Fetch(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseFetch,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Watch creates a filesystem watch error
func Watch(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseWatch,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates an error for use of a component before setup
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps cause with phase, kind and detail context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsLoadFailure reports whether err is a load-phase failure
func IsLoadFailure(err error) bool {
	return hasPhase(err, PhaseLoad)
}

// IsDisposeFailure reports whether err is a dispose-phase failure
func IsDisposeFailure(err error) bool {
	return hasPhase(err, PhaseDispose)
}

func hasPhase(err error, phase Phase) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Phase == phase {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
