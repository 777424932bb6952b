// Package yaegibridge is a reference Sandbox implementation (spec.md §6)
// built on traefik/yaegi. It is intentionally narrow: yaegi interprets Go,
// not Python, so instead of interpreting the executable text directly this
// bridge transpiles it into a small Go function — using pyval for
// Python-flavored dynamically-typed arithmetic — and runs that through
// yaegi. Only "straight-line" scripts (assignments and a trailing
// expression) are supported; anything else fails Prepare with a
// descriptive error rather than attempting a partial translation. It
// exists to give the interpreter library a real, exercised home and to
// demonstrate the Sandbox contract end to end, not to replace a
// production sandbox.
package yaegibridge

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"grail/internal/parser"
	"grail/internal/sandbox"
	"grail/internal/sandbox/yaegibridge/pyval"
)

const pyvalImportPath = "pyval"
const pyvalExportKey = "pyval/pyval"

// Bridge is a sandbox.Sandbox backed by yaegi.
type Bridge struct{}

// New returns a ready-to-use Bridge.
func New() *Bridge { return &Bridge{} }

type instance struct {
	name    string
	program string
}

func (i *instance) Name() string { return i.name }

type runFunc func(map[string]interface{}, map[string]func([]interface{}) (interface{}, error)) (interface{}, error)

// Prepare transpiles req.ExecutableText into Go source and evaluates it
// once ahead of time, so RunAsync failures are limited to runtime and
// limit errors rather than translation bugs.
func (b *Bridge) Prepare(ctx context.Context, req sandbox.PrepareRequest) (sandbox.Instance, error) {
	res, err := parser.ParseContext(ctx, req.ExecutableText)
	if err != nil {
		return nil, &sandbox.SyntaxError{Message: err.Error()}
	}

	body, resultVar, err := Transpile(res.Module)
	if err != nil {
		return nil, &sandbox.TypingError{Message: err.Error()}
	}

	program := renderProgram(body, resultVar, req.InputNames)

	if _, err := newInterpreter().Eval(program); err != nil {
		return nil, &sandbox.TypingError{Message: fmt.Sprintf("yaegibridge: generated program failed to evaluate: %v", err)}
	}

	return &instance{name: req.ScriptName, program: program}, nil
}

// RunAsync evaluates the prepared program's entrypoint in a fresh yaegi
// interpreter (yaegi interpreters are not safely reusable across runs with
// differing bindings) and waits for either completion or ctx cancellation
// or the configured max_duration, whichever comes first.
func (b *Bridge) RunAsync(ctx context.Context, inst sandbox.Instance, req sandbox.RunRequest) (any, error) {
	in, ok := inst.(*instance)
	if !ok {
		return nil, &sandbox.RuntimeError{Message: "yaegibridge: instance not produced by this bridge"}
	}

	i := newInterpreter()
	if _, err := i.Eval(in.program); err != nil {
		return nil, &sandbox.RuntimeError{Message: fmt.Sprintf("yaegibridge: re-evaluating program: %v", err), Cause: err}
	}

	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, &sandbox.RuntimeError{Message: fmt.Sprintf("yaegibridge: resolving entrypoint: %v", err), Cause: err}
	}
	run, ok := v.Interface().(runFunc)
	if !ok {
		return nil, &sandbox.RuntimeError{Message: "yaegibridge: entrypoint has unexpected signature"}
	}

	externals := map[string]func([]interface{}) (interface{}, error){}
	for name, fn := range req.Externals {
		fn := fn
		externals[name] = func(args []interface{}) (interface{}, error) {
			return fn(ctx, args, nil)
		}
	}

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, runErr := run(req.Inputs, externals)
		done <- result{val, runErr}
	}()

	var timeoutCh <-chan time.Time
	if req.Limits.MaxDurationSecs != nil && *req.Limits.MaxDurationSecs > 0 {
		timer := time.NewTimer(time.Duration(*req.Limits.MaxDurationSecs * float64(time.Second)))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &sandbox.RuntimeError{Message: r.err.Error(), Cause: r.err}
		}
		return r.val, nil
	case <-timeoutCh:
		return nil, &sandbox.LimitError{Message: "execution exceeded max_duration", Kind: sandbox.LimitKindDuration}
	case <-ctx.Done():
		return nil, &sandbox.RuntimeError{Message: ctx.Err().Error(), Cause: ctx.Err()}
	}
}

func newInterpreter() *interp.Interpreter {
	i := interp.New(interp.Options{})
	_ = i.Use(stdlib.Symbols)
	_ = i.Use(pyvalExports)
	return i
}

// renderProgram wraps a transpiled statement body in a package-main Go
// source file with a Run entrypoint. Declared inputs are bound from the
// inputs map as local variables before the body executes, since the
// transpiled body references them by bare name (mirroring the script's own
// variable names).
func renderProgram(body, resultVar string, inputNames []string) string {
	var b strings.Builder
	b.WriteString("package main\n\n")
	fmt.Fprintf(&b, "import \"%s\"\n\n", pyvalImportPath)
	b.WriteString("func grailCallExternal(externals map[string]func([]interface{}) (interface{}, error), name string, args []interface{}) (interface{}, error) {\n")
	b.WriteString("\tfn, ok := externals[name]\n")
	b.WriteString("\tif !ok {\n\t\treturn nil, pyval.Unbound(name)\n\t}\n")
	b.WriteString("\treturn fn(args)\n")
	b.WriteString("}\n\n")
	b.WriteString("func Run(inputs map[string]interface{}, externals map[string]func([]interface{}) (interface{}, error)) (interface{}, error) {\n")
	for _, name := range inputNames {
		fmt.Fprintf(&b, "\t%s := inputs[%q]\n", name, name)
	}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("\t")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if resultVar != "" {
		fmt.Fprintf(&b, "\treturn %s, nil\n", resultVar)
	} else {
		b.WriteString("\treturn nil, nil\n")
	}
	b.WriteString("}\n")
	return b.String()
}

var pyvalExports = interp.Exports{
	pyvalExportKey: {
		"Add":    reflect.ValueOf(pyval.Add),
		"Sub":    reflect.ValueOf(pyval.Sub),
		"Mul":    reflect.ValueOf(pyval.Mul),
		"Div":    reflect.ValueOf(pyval.Div),
		"Mod":    reflect.ValueOf(pyval.Mod),
		"Neg":    reflect.ValueOf(pyval.Neg),
		"Eq":     reflect.ValueOf(pyval.Eq),
		"Neq":    reflect.ValueOf(pyval.Neq),
		"Lt":     reflect.ValueOf(pyval.Lt),
		"Lte":    reflect.ValueOf(pyval.Lte),
		"Gt":     reflect.ValueOf(pyval.Gt),
		"Gte":    reflect.ValueOf(pyval.Gte),
		"Truthy": reflect.ValueOf(pyval.Truthy),
		"Unbound": reflect.ValueOf(func(name string) error {
			return fmt.Errorf("external %q is not bound", name)
		}),
	},
}
