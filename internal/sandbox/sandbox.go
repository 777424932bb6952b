// Package sandbox defines the external execution contract grail depends
// on but does not implement: the core never runs user code itself
// (spec.md §6, "Sandbox interface (consumed)"). A concrete reference
// adapter lives in internal/sandbox/yaegibridge.
package sandbox

import (
	"context"

	"grail/internal/limits"
)

// Stubs is the type-stub text generated for a script, handed to Prepare
// so a type-checking sandbox can validate the executable against it.
type Stubs string

// Instance is an opaque handle a Sandbox hands back from Prepare and
// expects to receive again in RunAsync. Its shape is sandbox-specific;
// the core only ever threads it through.
type Instance interface {
	Name() string
}

// Sandbox is the two-operation contract every execution backend must
// satisfy. Implementations are expected to enforce Limits authoritatively
// — the core only parses, merges and forwards them (spec.md §5).
type Sandbox interface {
	// Prepare compiles/loads executable_text under script_name, optionally
	// type-checking it against stubs. It returns TypingError (via the
	// returned error, checked with errors.As) on a stub mismatch.
	Prepare(ctx context.Context, req PrepareRequest) (Instance, error)

	// RunAsync executes a previously prepared Instance with the given
	// input/external bindings, virtual files, environment and limits. The
	// print hook, if non-nil, is called once per line of captured output.
	RunAsync(ctx context.Context, instance Instance, req RunRequest) (any, error)
}

// PrepareRequest bundles Prepare's parameters (spec.md §6).
type PrepareRequest struct {
	ExecutableText   string
	ScriptName       string
	TypeCheck        bool
	Stubs            Stubs
	InputNames       []string
	ExternalNames    []string
	DataclassRegistry map[string]any
}

// ExternalFunc is the host-supplied implementation bound to one declared
// external name.
type ExternalFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// PrintFunc receives one line of script-produced output as it happens.
type PrintFunc func(line string)

// RunRequest bundles RunAsync's parameters.
type RunRequest struct {
	Inputs    map[string]any
	Externals map[string]ExternalFunc
	Files     map[string]string
	Environ   map[string]string
	Limits    limits.RuntimeLimits
	Print     PrintFunc
}

// TypingError signals Prepare rejected the executable text against its
// stubs.
type TypingError struct {
	Message string
}

func (e *TypingError) Error() string { return e.Message }

// Frame is one entry of a RuntimeError's traceback.
type Frame struct {
	ExecutableLine int
	SourceText     string
	FunctionName   string
}

// RuntimeError is a generic failure raised by RunAsync that is neither a
// LimitError nor a TypingError. Traceback/Exception let the error mapper
// in internal/script recover structured position and cause information
// when the sandbox provides it.
type RuntimeError struct {
	Message        string
	TracebackFrames []Frame
	Cause          error
}

func (e *RuntimeError) Error() string { return e.Message }
func (e *RuntimeError) Traceback() []Frame { return e.TracebackFrames }
func (e *RuntimeError) Exception() error   { return e.Cause }

// LimitErrorKind mirrors grailerr.LimitType without importing it, so this
// package stays a pure consumed-interface definition with no dependency
// on the error model's concrete types; internal/script converts between
// the two at the boundary.
type LimitErrorKind string

const (
	LimitKindMemory      LimitErrorKind = "memory"
	LimitKindDuration    LimitErrorKind = "duration"
	LimitKindRecursion   LimitErrorKind = "recursion"
	LimitKindAllocations LimitErrorKind = "allocations"
	LimitKindUnknown     LimitErrorKind = "unknown"
)

// LimitError signals the sandbox itself detected a resource budget was
// exceeded (as opposed to the core inferring one from a generic
// RuntimeError's message — see internal/script's error mapper).
type LimitError struct {
	Message string
	Kind    LimitErrorKind
}

func (e *LimitError) Error() string             { return e.Message }
func (e *LimitError) LimitType() LimitErrorKind { return e.Kind }

// SyntaxError signals Prepare or RunAsync found the executable text
// itself invalid — this should not happen given §4.4's re-parse
// guarantee, but the contract allows for it defensively.
type SyntaxError struct {
	Message string
	Line    int
}

func (e *SyntaxError) Error() string { return e.Message }
