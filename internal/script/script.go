// Package script implements the script bundle and run coordinator (spec.md
// §4.8, components C9/C10): the pipeline that turns a .pym file on disk
// into an immutable, host-runnable ScriptBundle, and the bundle's Check
// and Run operations.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grail/internal/artifacts"
	"grail/internal/checker"
	"grail/internal/codegen"
	"grail/internal/decls"
	"grail/internal/grailerr"
	"grail/internal/limits"
	"grail/internal/parser"
	"grail/internal/pyast"
	"grail/internal/sandbox"
	"grail/internal/stubs"
)

// EventType enumerates the structured event records on_event receives
// (spec.md §4.8 "Events").
type EventType string

const (
	EventRunStart      EventType = "run_start"
	EventRunComplete   EventType = "run_complete"
	EventRunError      EventType = "run_error"
	EventPrint         EventType = "print"
	EventCheckStart    EventType = "check_start"
	EventCheckComplete EventType = "check_complete"
	// EventWarning fires for a non-fatal condition detected during
	// validation, e.g. an unknown input/external supplied in non-strict
	// mode (spec.md §4.8 step 1, §7 "warned, execution proceeds").
	EventWarning EventType = "warning"
)

// Event is one structured record a caller's on_event callback receives.
// RequestID correlates every event emitted for the same call to Run,
// giving hosts with correlation-id-based logging (e.g. zap fields) a key
// to join run_start/print/run_complete/run_error together.
type Event struct {
	Type          EventType
	ScriptName    string
	RequestID     string
	Timestamp     time.Time
	DurationMs    *float64
	Text          string
	Err           error
	InputCount    *int
	ExternalCount *int
	ResultSummary string
}

// EventFunc receives Events as a run or check progresses.
type EventFunc func(Event)

// ScriptBundle is the immutable result of loading a script: its parsed and
// checked declarations, generated executable text and line map, and the
// cached parse result reused by Check. Every field is written once at
// Load and read thereafter (spec.md §5 "Shared-resource rules").
type ScriptBundle struct {
	Path           string
	Name           string // file stem, used for artifact directory naming
	Source         string
	SourceLines    []string
	Module         *pyast.Module
	Declarations   *decls.Declarations
	CheckResult    checker.Result
	TypeStubs      string
	ExecutableText string
	LineMap        *codegen.LineMap
	Limits         *limits.Limits

	artifacts *artifacts.Manager
	logger    *zap.Logger
}

// LoadOptions configures Load.
type LoadOptions struct {
	Limits      *limits.Limits
	ArtifactDir string
	// Logger receives artifact I/O warnings (via ArtifactDir) and run/check
	// validation warnings. Defaults to a no-op logger if nil.
	Logger *zap.Logger
}

// Load runs the full load pipeline (spec.md §4.8 steps 1-7): parse, check,
// generate stubs and executable text, optionally write artifacts, and
// return the immutable bundle.
func Load(path string, opts LoadOptions) (*ScriptBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: reading %s: %w", path, err)
	}
	source := string(data)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	res, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	d, err := decls.Extract(res.Module)
	if err != nil {
		return nil, err
	}

	checkResult := checker.Check(path, res.Module, len(res.SourceLines), d)
	if !checkResult.Valid {
		return nil, grailerr.NewCheckError(summarizeErrors(checkResult.Errors), firstErrorLine(checkResult.Errors))
	}

	stubText := stubs.Generate(d)

	gen, err := codegen.Generate(source, res.Module, d)
	if err != nil {
		return nil, err
	}

	bundle := &ScriptBundle{
		Path:           path,
		Name:           name,
		Source:         source,
		SourceLines:    res.SourceLines,
		Module:         res.Module,
		Declarations:   d,
		CheckResult:    checkResult,
		TypeStubs:      stubText,
		ExecutableText: gen.ExecutableText,
		LineMap:        gen.LineMap,
		Limits:         opts.Limits,
		logger:         opts.Logger,
	}

	if opts.ArtifactDir != "" {
		bundle.artifacts = artifacts.New(opts.ArtifactDir, name, opts.Logger)
		bundle.artifacts.WriteLoad(stubText, gen.ExecutableText, externalsMap(d), inputsMap(d))
		bundle.artifacts.WriteCheck(checkResult)
	}

	return bundle, nil
}

func summarizeErrors(errs []checker.Message) string {
	var parts []string
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s:%d %s", e.Code, e.Line, e.Message))
	}
	return strings.Join(parts, "; ")
}

func firstErrorLine(errs []checker.Message) *int {
	if len(errs) == 0 {
		return nil
	}
	line := errs[0].Line
	return &line
}

func externalsMap(d *decls.Declarations) map[string]any {
	m := map[string]any{}
	for _, e := range d.Externals {
		m[e.Name] = map[string]any{"return": e.ReturnAnnotation, "async": e.IsAsync}
	}
	return m
}

func inputsMap(d *decls.Declarations) map[string]any {
	m := map[string]any{}
	for _, in := range d.Inputs {
		m[in.Name] = map[string]any{"annotation": in.Annotation, "has_default": in.HasDefault}
	}
	return m
}

// InputNames returns the declared input names in source order.
func (b *ScriptBundle) InputNames() []string {
	names := make([]string, len(b.Declarations.Inputs))
	for i, in := range b.Declarations.Inputs {
		names[i] = in.Name
	}
	return names
}

// ExternalNames returns the declared external names in source order.
func (b *ScriptBundle) ExternalNames() []string {
	names := make([]string, len(b.Declarations.Externals))
	for i, e := range b.Declarations.Externals {
		names[i] = e.Name
	}
	return names
}

// Check reuses the cached parse result and additionally asks sb to
// type-check the executable text against the generated stubs. A TypingError
// from the sandbox is appended as a synthetic E100 diagnostic rather than
// propagated, matching spec.md §4.8's "appended as synthetic error
// diagnostics with code E100 and marked valid = false".
func (b *ScriptBundle) Check(ctx context.Context, sb sandbox.Sandbox, onEvent EventFunc) (checker.Result, error) {
	emit(onEvent, Event{Type: EventCheckStart, ScriptName: b.Name, Timestamp: now()})

	result := b.CheckResult

	_, err := sb.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: b.ExecutableText,
		ScriptName:     b.Name,
		TypeCheck:      true,
		Stubs:          sandbox.Stubs(b.TypeStubs),
		InputNames:     b.InputNames(),
		ExternalNames:  b.ExternalNames(),
	})
	if err != nil {
		var typeErr *sandbox.TypingError
		if asTypingError(err, &typeErr) {
			result.Errors = append(result.Errors, checker.Message{
				Code:     "E100",
				Severity: checker.SeverityError,
				Line:     1,
				Message:  typeErr.Message,
			})
			result.Valid = false
		} else {
			emit(onEvent, Event{Type: EventCheckComplete, ScriptName: b.Name, Timestamp: now(), Err: err})
			return result, err
		}
	}

	if b.artifacts != nil {
		b.artifacts.WriteCheck(result)
	}

	emit(onEvent, Event{Type: EventCheckComplete, ScriptName: b.Name, Timestamp: now()})
	return result, nil
}

func asTypingError(err error, out **sandbox.TypingError) bool {
	if te, ok := err.(*sandbox.TypingError); ok {
		*out = te
		return true
	}
	return false
}

// RunOptions configures Run.
type RunOptions struct {
	Inputs           map[string]any
	Externals        map[string]sandbox.ExternalFunc
	Files            map[string]string
	Environ          map[string]string
	Limits           *limits.Limits
	Print            sandbox.PrintFunc
	OnEvent          EventFunc
	StrictValidation bool
	// ValidateOutput optionally checks/transforms the run result before
	// it is returned; absent disables output validation.
	ValidateOutput func(any) (any, error)
}

// Run validates inputs/externals, merges limits, executes the bundle via
// sb, maps any sandbox error through the line map, and emits lifecycle
// events (spec.md §4.8).
func (b *ScriptBundle) Run(ctx context.Context, sb sandbox.Sandbox, opts RunOptions) (any, error) {
	requestID := uuid.NewString()

	if err := b.validateInputs(opts.Inputs, opts.StrictValidation, opts.OnEvent, requestID); err != nil {
		return nil, err
	}
	if err := b.validateExternals(opts.Externals, opts.StrictValidation, opts.OnEvent, requestID); err != nil {
		return nil, err
	}

	merged := b.mergeLimits(opts.Limits)

	start := now()
	inputCount := len(opts.Inputs)
	externalCount := len(opts.Externals)
	emit(opts.OnEvent, Event{
		Type: EventRunStart, ScriptName: b.Name, RequestID: requestID, Timestamp: start,
		InputCount: &inputCount, ExternalCount: &externalCount,
	})

	print := opts.Print
	if print != nil {
		wrapped := print
		print = func(line string) {
			emit(opts.OnEvent, Event{Type: EventPrint, ScriptName: b.Name, RequestID: requestID, Timestamp: now(), Text: line})
			wrapped(line)
		}
	}

	instance, err := sb.Prepare(ctx, sandbox.PrepareRequest{
		ExecutableText: b.ExecutableText,
		ScriptName:     b.Name,
		TypeCheck:      false,
		InputNames:     b.InputNames(),
		ExternalNames:  b.ExternalNames(),
	})
	if err != nil {
		mapped := b.mapError(err)
		b.emitRunError(opts.OnEvent, requestID, start, mapped)
		return nil, mapped
	}

	result, err := sb.RunAsync(ctx, instance, sandbox.RunRequest{
		Inputs:    opts.Inputs,
		Externals: opts.Externals,
		Files:     mergeStrings(b.Files(), opts.Files),
		Environ:   opts.Environ,
		Limits:    merged.ToRuntime(),
		Print:     print,
	})
	if err != nil {
		mapped := b.mapError(err)
		b.emitRunError(opts.OnEvent, requestID, start, mapped)
		return nil, mapped
	}

	if opts.ValidateOutput != nil {
		result, err = opts.ValidateOutput(result)
		if err != nil {
			outErr := grailerr.NewOutputError(err.Error(), err)
			b.emitRunError(opts.OnEvent, requestID, start, outErr)
			return nil, outErr
		}
	}

	durationMs := now().Sub(start).Seconds() * 1000
	emit(opts.OnEvent, Event{
		Type: EventRunComplete, ScriptName: b.Name, RequestID: requestID, Timestamp: now(),
		DurationMs: &durationMs, ResultSummary: fmt.Sprintf("%v", result),
	})

	if b.artifacts != nil {
		b.artifacts.AppendRunLog("run_complete")
	}

	return result, nil
}

func (b *ScriptBundle) emitRunError(onEvent EventFunc, requestID string, start time.Time, err error) {
	emit(onEvent, Event{Type: EventRunError, ScriptName: b.Name, RequestID: requestID, Timestamp: now(), Err: err})
	if b.artifacts != nil {
		b.artifacts.AppendRunLog("run_error: " + err.Error())
	}
}

// Files is a placeholder seam for bundles loaded with pre-declared virtual
// files; grail's Load pipeline does not currently accept them, so this
// always returns nil. Kept as a method (rather than inlined at the call
// site) so a future Load option can populate it without changing Run.
func (b *ScriptBundle) Files() map[string]string { return nil }

func mergeStrings(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return override
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (b *ScriptBundle) validateInputs(inputs map[string]any, strict bool, onEvent EventFunc, requestID string) error {
	declared := map[string]decls.InputSpec{}
	for _, in := range b.Declarations.Inputs {
		declared[in.Name] = in
	}

	for name, spec := range declared {
		if _, ok := inputs[name]; !ok && !spec.HasDefault {
			return grailerr.NewInputError(fmt.Sprintf("required input %q was not supplied", name), name)
		}
	}

	for name := range inputs {
		if _, ok := declared[name]; !ok {
			if strict {
				return grailerr.NewInputError(fmt.Sprintf("input %q is not declared by this script", name), name)
			}
			b.emitWarning(onEvent, requestID, fmt.Sprintf("input %q is not declared by this script (warned, execution proceeds)", name))
		}
	}
	return nil
}

func (b *ScriptBundle) validateExternals(externals map[string]sandbox.ExternalFunc, strict bool, onEvent EventFunc, requestID string) error {
	declared := map[string]bool{}
	for _, e := range b.Declarations.Externals {
		declared[e.Name] = true
	}

	for name := range declared {
		if _, ok := externals[name]; !ok {
			if strict {
				return grailerr.NewExternalError(fmt.Sprintf("external %q has no bound implementation", name), name)
			}
			b.emitWarning(onEvent, requestID, fmt.Sprintf("external %q has no bound implementation (warned, execution proceeds)", name))
		}
	}

	for name := range externals {
		if !declared[name] {
			if strict {
				return grailerr.NewExternalError(fmt.Sprintf("external %q is not declared by this script", name), name)
			}
			b.emitWarning(onEvent, requestID, fmt.Sprintf("external %q is not declared by this script (warned, execution proceeds)", name))
		}
	}
	return nil
}

// emitWarning fires an EventWarning and, if the bundle has a logger,
// records the same text there so non-strict validation
// warnings are observable even when the caller supplied no OnEvent hook.
func (b *ScriptBundle) emitWarning(onEvent EventFunc, requestID, text string) {
	emit(onEvent, Event{Type: EventWarning, ScriptName: b.Name, RequestID: requestID, Timestamp: now(), Text: text})
	if b.logger != nil {
		b.logger.Warn(text, zap.String("script", b.Name), zap.String("request_id", requestID))
	}
}

// mergeLimits merges the bundle's own limits with a per-call override,
// falling back to the default preset only if neither exists (spec.md
// §4.8 step 3).
func (b *ScriptBundle) mergeLimits(override *limits.Limits) limits.Limits {
	base := limits.Default
	if b.Limits != nil {
		base = *b.Limits
	}
	if override != nil {
		return base.Merge(*override)
	}
	return base
}

var lineInMessage = regexp.MustCompile(`line (\d+)`)

// mapError implements the line-map bridge (spec.md §4.7 "Error mapping").
func (b *ScriptBundle) mapError(err error) error {
	if limitErr, ok := err.(*sandbox.LimitError); ok {
		return grailerr.NewLimitError(limitErr.Message, grailerr.LimitType(limitErr.Kind))
	}

	if syntaxErr, ok := err.(*sandbox.SyntaxError); ok {
		line := syntaxErr.Line
		return grailerr.NewParseError(syntaxErr.Message, &line, nil)
	}

	if typingErr, ok := err.(*sandbox.TypingError); ok {
		return grailerr.NewCheckError(typingErr.Message, nil)
	}

	runtimeErr, ok := err.(*sandbox.RuntimeError)
	if !ok {
		return grailerr.NewExecutionError(err.Error(), nil, nil, b.Source, "")
	}

	var sourceLine *int
	if frames := runtimeErr.Traceback(); len(frames) > 0 {
		if line, ok := b.LineMap.ExecutableToSource(frames[0].ExecutableLine); ok {
			sourceLine = &line
		}
	} else if m := lineInMessage.FindStringSubmatch(runtimeErr.Message); m != nil {
		if execLine, convErr := strconv.Atoi(m[1]); convErr == nil {
			if line, ok := b.LineMap.ExecutableToSource(execLine); ok {
				sourceLine = &line
			}
		}
	}

	if limitType, ok := detectLimitKind(runtimeErr.Message); ok {
		return grailerr.NewLimitError(runtimeErr.Message, limitType)
	}

	return grailerr.NewExecutionError(runtimeErr.Message, sourceLine, nil, b.Source, "")
}

func detectLimitKind(message string) (grailerr.LimitType, bool) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "memory"):
		return grailerr.LimitMemory, true
	case strings.Contains(lower, "duration"), strings.Contains(lower, "timeout"):
		return grailerr.LimitDuration, true
	case strings.Contains(lower, "recursion"):
		return grailerr.LimitRecursion, true
	case strings.Contains(lower, "allocation"):
		return grailerr.LimitAllocations, true
	default:
		return "", false
	}
}

// RunSync runs Run to completion synchronously, for callers not already
// inside an async context. Go has no single-event-loop reentrancy concept
// to guard against, so unlike the original's run_sync — which refuses when
// called from within an already-running event loop — this is simply a
// blocking wrapper; the guard spec.md describes has no Go equivalent to
// violate.
func (b *ScriptBundle) RunSync(ctx context.Context, sb sandbox.Sandbox, opts RunOptions) (any, error) {
	return b.Run(ctx, sb, opts)
}

func emit(fn EventFunc, e Event) {
	if fn != nil {
		fn(e)
	}
}

var clock = time.Now

func now() time.Time { return clock() }
