// Package decls extracts the host-facing declarations a pym script makes
// about itself: @external function stubs the host must implement, and
// Input() calls that name the values the host must supply before running.
// Only top-level (module body) declarations are recognized — anything
// nested inside a function or class body is ordinary script code, not a
// declaration, no matter how it looks (spec.md invariant P7).
package decls

import (
	"grail/internal/grailerr"
	"grail/internal/pyast"
)

// ParameterSpec describes one parameter of an external function.
type ParameterSpec struct {
	Name       string
	Annotation string // "" if unannotated
	Default    string // "" if no default
	HasDefault bool
	Kind       pyast.ParamKind
}

// ExternalSpec describes one @external function declaration.
type ExternalSpec struct {
	Name             string
	Parameters       []ParameterSpec
	ReturnAnnotation string // "" if unannotated
	Docstring        string // "" if none
	IsAsync          bool
	Line             int
}

// InputSpec describes one top-level `name = Input(...)` declaration.
type InputSpec struct {
	Name       string
	Annotation string // "" if unannotated
	Default    string // "" if no default
	HasDefault bool
	Line       int
}

// Declarations is the full set of host-facing declarations found in a
// module, plus the node references codegen needs to strip them.
type Declarations struct {
	Externals []ExternalSpec
	Inputs    []InputSpec

	// externalNodes and inputNodes let codegen identify exactly which
	// top-level statements to remove without re-running detection.
	externalNodes []pyast.FunctionDef
	inputNodes    []pyast.Stmt
}

// ExternalNodes returns the FunctionDef nodes that were recognized as
// @external declarations, in source order.
func (d *Declarations) ExternalNodes() []pyast.FunctionDef { return d.externalNodes }

// InputNodes returns the statement nodes that were recognized as Input()
// declarations, in source order.
func (d *Declarations) InputNodes() []pyast.Stmt { return d.inputNodes }

// Extract walks the top level of mod.Body and collects every @external
// function and Input() assignment. It never descends into nested bodies.
func Extract(mod *pyast.Module) (*Declarations, error) {
	d := &Declarations{}

	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case pyast.FunctionDef:
			if isExternalDecorated(s.Decorators) {
				spec, err := toExternalSpec(s)
				if err != nil {
					return nil, err
				}
				d.Externals = append(d.Externals, spec)
				d.externalNodes = append(d.externalNodes, s)
			}
		case pyast.Assign:
			if call, ok := isInputAssign(s); ok {
				spec, err := toInputSpec(s, call)
				if err != nil {
					return nil, err
				}
				d.Inputs = append(d.Inputs, spec)
				d.inputNodes = append(d.inputNodes, s)
			}
		case pyast.AnnAssign:
			if call, ok := isInputCall(s.Value); ok {
				spec, err := toInputSpecAnn(s, call)
				if err != nil {
					return nil, err
				}
				d.Inputs = append(d.Inputs, spec)
				d.inputNodes = append(d.inputNodes, s)
			}
		}
	}

	return d, nil
}

func isExternalDecorated(decorators []pyast.Decorator) bool {
	for _, d := range decorators {
		if isExternalExpr(d.Expr) {
			return true
		}
	}
	return false
}

// isExternalExpr matches a bare `external` name or any `<...>.external`
// attribute access, mirroring the original's tolerance for the decorator
// being imported under different aliases.
func isExternalExpr(e pyast.Expr) bool {
	switch t := e.(type) {
	case pyast.Name:
		return t.Id == "external"
	case pyast.Attribute:
		return t.Attr == "external"
	case pyast.Call:
		return isExternalExpr(t.Func)
	default:
		return false
	}
}

// isInputCall matches a bare `Input(...)` or `<...>.Input(...)` call.
func isInputCall(e pyast.Expr) (pyast.Call, bool) {
	call, ok := e.(pyast.Call)
	if !ok {
		return pyast.Call{}, false
	}
	switch t := call.Func.(type) {
	case pyast.Name:
		if t.Id == "Input" {
			return call, true
		}
	case pyast.Attribute:
		if t.Attr == "Input" {
			return call, true
		}
	}
	return pyast.Call{}, false
}

func isInputAssign(s pyast.Assign) (pyast.Call, bool) {
	return isInputCall(s.Value)
}

func toExternalSpec(fn pyast.FunctionDef) (ExternalSpec, error) {
	spec := ExternalSpec{
		Name:    fn.Name,
		IsAsync: fn.IsAsync,
		Line:    fn.Line,
	}
	if fn.Returns != nil {
		spec.ReturnAnnotation = pyast.UnparseExpr(fn.Returns)
	}
	if len(fn.Body) > 0 {
		if exprStmt, ok := fn.Body[0].(pyast.ExprStmt); ok {
			if lit, ok := exprStmt.Value.(pyast.Constant); ok && lit.Kind == pyast.LitString {
				spec.Docstring = unquote(lit.Raw)
			}
		}
	}

	for _, p := range fn.Params {
		// The implicit `self` on a method-shaped external carries no
		// information the host needs; external declarations are plain
		// functions so this only matters if one is nested in a class,
		// which P7 already excludes from extraction — kept defensive.
		if p.Name == "self" && len(spec.Parameters) == 0 {
			continue
		}
		ps := ParameterSpec{Name: p.Name, Kind: p.Kind}
		if p.Annotation != nil {
			ps.Annotation = pyast.UnparseExpr(p.Annotation)
		}
		if p.Default != nil {
			ps.HasDefault = true
			ps.Default = pyast.UnparseExpr(p.Default)
		}
		spec.Parameters = append(spec.Parameters, ps)
	}

	return spec, nil
}

// toInputSpec validates that a `name = Input("other")` assignment's
// variable name matches the name the Input() call declares, and builds
// the InputSpec. A mismatch is a ParseError: codegen and the runtime
// input map both key off the variable name, so a silent rename would
// either silently fail to supply a value or supply the wrong one.
func toInputSpec(assign pyast.Assign, call pyast.Call) (InputSpec, error) {
	if len(assign.Targets) != 1 {
		line := assign.Line
		return InputSpec{}, grailerr.NewParseError("Input() declarations must assign to exactly one name", &line, nil)
	}
	name, ok := assign.Targets[0].(pyast.Name)
	if !ok {
		line := assign.Line
		return InputSpec{}, grailerr.NewParseError("Input() declarations must assign to a plain name", &line, nil)
	}

	declaredName, annotation, def, hasDefault, err := parseInputCall(call, assign.Line)
	if err != nil {
		return InputSpec{}, err
	}
	if declaredName != "" && declaredName != name.Id {
		line := assign.Line
		return InputSpec{}, grailerr.NewParseError(
			"Input() name \""+declaredName+"\" does not match assigned variable \""+name.Id+"\"",
			&line, nil,
		)
	}

	return InputSpec{
		Name:       name.Id,
		Annotation: annotation,
		Default:    def,
		HasDefault: hasDefault,
		Line:       assign.Line,
	}, nil
}

func toInputSpecAnn(assign pyast.AnnAssign, call pyast.Call) (InputSpec, error) {
	name, ok := assign.Target.(pyast.Name)
	if !ok {
		line := assign.Line
		return InputSpec{}, grailerr.NewParseError("Input() declarations must assign to a plain name", &line, nil)
	}

	declaredName, _, def, hasDefault, err := parseInputCall(call, assign.Line)
	if err != nil {
		return InputSpec{}, err
	}
	if declaredName != "" && declaredName != name.Id {
		line := assign.Line
		return InputSpec{}, grailerr.NewParseError(
			"Input() name \""+declaredName+"\" does not match assigned variable \""+name.Id+"\"",
			&line, nil,
		)
	}

	return InputSpec{
		Name:       name.Id,
		Annotation: pyast.UnparseExpr(assign.Annotation),
		Default:    def,
		HasDefault: hasDefault,
		Line:       assign.Line,
	}, nil
}

// parseInputCall reads Input("name", default=..., type=...) style calls.
// The declared name may be given positionally or omitted entirely (in
// which case the assignment target's name is authoritative).
func parseInputCall(call pyast.Call, line int) (name, annotation, def string, hasDefault bool, err error) {
	if len(call.Args) > 0 {
		// A non-literal first argument (e.g. a variable or expression) leaves
		// name unset rather than erroring, matching the original parser's
		// _extract_input_from_call: the assigned variable's own name is
		// authoritative whenever Input()'s name argument can't be read
		// statically.
		if lit, ok := call.Args[0].(pyast.Constant); ok && lit.Kind == pyast.LitString {
			name = unquote(lit.Raw)
		}
	}
	for _, kw := range call.Keywords {
		switch kw.Arg {
		case "default":
			hasDefault = true
			def = pyast.UnparseExpr(kw.Value)
		case "type", "annotation":
			annotation = pyast.UnparseExpr(kw.Value)
		case "name":
			if lit, ok := kw.Value.(pyast.Constant); ok && lit.Kind == pyast.LitString {
				name = unquote(lit.Raw)
			}
		}
	}
	return name, annotation, def, hasDefault, nil
}

func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	first := raw[0]
	last := raw[len(raw)-1]
	if (first == '\'' || first == '"') && first == last {
		return raw[1 : len(raw)-1]
	}
	// prefixed strings like r"x" or b"x"
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\'' || raw[i] == '"' {
			quote := raw[i]
			if raw[len(raw)-1] == quote {
				return raw[i+1 : len(raw)-1]
			}
			break
		}
	}
	return raw
}
