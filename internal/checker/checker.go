// Package checker implements the compatibility checker (C4): it walks a
// parsed module and emits coded diagnostics for any construct outside the
// restricted subset the sandbox can run, plus warnings for suspicious but
// legal code. Grounded on the original MontyCompatibilityChecker visitor;
// ported here as a single pyast.Visitor instead of a per-node-type method
// dispatch class, since Go has no open method dispatch to hook into.
package checker

import (
	"sort"
	"strings"

	"grail/internal/decls"
	"grail/internal/pyast"
)

// Severity distinguishes fatal diagnostics from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Message is one coded diagnostic.
type Message struct {
	Code       string
	Severity   Severity
	Line       int
	Column     int
	EndLine    *int
	EndColumn  *int
	Message    string
	Suggestion string
}

// Info carries non-diagnostic facts about the checked module.
type Info struct {
	ExternalsCount int
	InputsCount    int
	LinesOfCode    int
	FeaturesUsed   []string // sorted
}

// Result is the outcome of checking one module.
type Result struct {
	File     string
	Valid    bool
	Errors   []Message
	Warnings []Message
	Info     Info
}

// AllowedImports is the fixed set of top-level import module names
// permitted beyond the host-declaration module itself: "typing" for type
// hints and "__future__" for future-feature pragmas.
var AllowedImports = map[string]bool{
	"typing":    true,
	"__future__": true,
}

// HostModule is the module name recognized as exposing `external` and
// `Input` — importing anything else surfaces E005.
const HostModule = "grail"

// Check runs the compatibility checker against a parsed module. d may be
// nil; when provided it lets E006/E007/E008 iterate the same declarations
// C3 already extracted instead of re-detecting them independently.
func Check(file string, mod *pyast.Module, sourceLineCount int, d *decls.Declarations) Result {
	c := &checkerState{file: file, features: map[string]bool{}}
	c.walkTopLevel(mod)

	if d != nil {
		c.checkExternalShapes(d)
		c.checkInputAnnotations(d)
		c.checkUnreferenced(mod, d)
	}

	c.checkFinalStatement(mod)
	if sourceLineCount > 200 {
		c.warn("W004", 1, 1, "script is longer than 200 source lines", "")
	}

	features := make([]string, 0, len(c.features))
	for f := range c.features {
		features = append(features, f)
	}
	sort.Strings(features)

	externalsCount, inputsCount := 0, 0
	if d != nil {
		externalsCount = len(d.Externals)
		inputsCount = len(d.Inputs)
	}

	return Result{
		File:     file,
		Valid:    len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
		Info: Info{
			ExternalsCount: externalsCount,
			InputsCount:    inputsCount,
			LinesOfCode:    sourceLineCount,
			FeaturesUsed:   features,
		},
	}
}

type checkerState struct {
	file     string
	errors   []Message
	warnings []Message
	features map[string]bool
}

func (c *checkerState) err(code string, line, col int, message, suggestion string) {
	c.errors = append(c.errors, Message{Code: code, Severity: SeverityError, Line: line, Column: col, Message: message, Suggestion: suggestion})
}

func (c *checkerState) warn(code string, line, col int, message, suggestion string) {
	c.warnings = append(c.warnings, Message{Code: code, Severity: SeverityWarning, Line: line, Column: col, Message: message, Suggestion: suggestion})
}

func (c *checkerState) feature(tag string) { c.features[tag] = true }

// walkTopLevel walks the whole tree (every node, at any depth — the
// forbidden-construct diagnostics apply everywhere, not just the top
// level) via pyast.Walk, classifying nodes of interest as it goes.
func (c *checkerState) walkTopLevel(mod *pyast.Module) {
	pyast.Walk(pyast.VisitorFunc(func(n pyast.Node) bool {
		switch t := n.(type) {
		case pyast.ClassDef:
			c.err("E001", t.Line, t.Column, "class definitions are not supported", "")
		case pyast.Yield:
			c.err("E002", t.Line, t.Column, "yield is not supported", "")
		case pyast.YieldFrom:
			c.err("E002", t.Line, t.Column, "yield from is not supported", "")
		case pyast.With:
			c.err("E003", t.Line, t.Column, "with statements are not supported", "")
		case pyast.Match:
			c.err("E004", t.Line, t.Column, "match statements are not supported", "")
		case pyast.Import:
			for _, name := range t.Names {
				c.checkImportAllowed(name.Name, t.Line, t.Column)
			}
		case pyast.ImportFrom:
			c.checkImportAllowed(t.Module, t.Line, t.Column)
		case pyast.Global:
			c.err("E009", t.Line, t.Column, "global statements are not supported", "")
		case pyast.Nonlocal:
			c.err("E010", t.Line, t.Column, "nonlocal statements are not supported", "")
		case pyast.Delete:
			c.err("E011", t.Line, t.Column, "del statements are not supported", "")
		case pyast.Lambda:
			c.err("E012", t.Line, t.Column, "lambda expressions are not supported", "")
		case pyast.FunctionDef:
			if t.IsAsync && !isExternalDecorated(t.Decorators) {
				c.feature("async_await")
			}
		case pyast.For:
			c.feature("for_loop")
		case pyast.ListComp:
			c.feature("list_comprehension")
		case pyast.DictComp:
			c.feature("dict_comprehension")
		case pyast.SetComp:
			c.feature("set_comprehension")
		case pyast.GeneratorExp:
			c.feature("generator_expression")
		case pyast.JoinedStr:
			c.feature("f_string")
		}
		return true
	}), mod)
}

func isExternalDecorated(decorators []pyast.Decorator) bool {
	for _, d := range decorators {
		switch e := d.Expr.(type) {
		case pyast.Name:
			if e.Id == "external" {
				return true
			}
		case pyast.Attribute:
			if e.Attr == "external" {
				return true
			}
		}
	}
	return false
}

// checkImportAllowed allows the host-declaration module and the small
// fixed allow-list; anything else is E005. Exact top-level token match:
// "os.path" is checked against "os", the dotted prefix.
func (c *checkerState) checkImportAllowed(module string, line, col int) {
	if module == "" {
		return
	}
	top := module
	if idx := strings.Index(module, "."); idx >= 0 {
		top = module[:idx]
	}
	if top == HostModule || AllowedImports[top] {
		return
	}
	c.err("E005", line, col, "import of \""+module+"\" is not allowed", "remove the import or use a declared external instead")
}

// checkExternalShapes implements E006/E007 over the declarations C3
// already extracted: every external needs both a return annotation and
// fully annotated parameters (E006), and its body must be a single `...`
// optionally preceded by a docstring (E007).
func (c *checkerState) checkExternalShapes(d *decls.Declarations) {
	for i, spec := range d.Externals {
		node := d.ExternalNodes()[i]

		missingAnnotation := spec.ReturnAnnotation == ""
		for _, p := range spec.Parameters {
			if p.Annotation == "" {
				missingAnnotation = true
			}
		}
		if missingAnnotation {
			c.err("E006", node.Line, node.Column,
				"external function \""+spec.Name+"\" must annotate every parameter and its return type", "")
		}

		if !hasEllipsisBody(node.Body) {
			c.err("E007", node.Line, node.Column,
				"external function \""+spec.Name+"\" body must be a single \"...\" (a leading docstring is allowed)", "")
		}
	}
}

func hasEllipsisBody(body []pyast.Stmt) bool {
	stmts := body
	if len(stmts) > 0 {
		if exprStmt, ok := stmts[0].(pyast.ExprStmt); ok {
			if lit, ok := exprStmt.Value.(pyast.Constant); ok && lit.Kind == pyast.LitString {
				stmts = stmts[1:]
			}
		}
	}
	if len(stmts) != 1 {
		return false
	}
	exprStmt, ok := stmts[0].(pyast.ExprStmt)
	if !ok {
		return false
	}
	lit, ok := exprStmt.Value.(pyast.Constant)
	return ok && lit.Kind == pyast.LitEllipsis
}

// checkInputAnnotations implements E008: every declared input needs a
// type annotation.
func (c *checkerState) checkInputAnnotations(d *decls.Declarations) {
	for i, spec := range d.Inputs {
		if spec.Annotation == "" {
			node := d.InputNodes()[i]
			pos := node.Position()
			c.err("E008", pos.Line, pos.Column, "Input \""+spec.Name+"\" must have a type annotation", "")
		}
	}
}

// checkUnreferenced implements W002/W003: a declared external or input
// that is never loaded by name anywhere in the module is suspicious —
// likely a typo or dead declaration.
func (c *checkerState) checkUnreferenced(mod *pyast.Module, d *decls.Declarations) {
	used := collectLoadedNames(mod)

	for i, spec := range d.Externals {
		if !used[spec.Name] {
			node := d.ExternalNodes()[i]
			c.warn("W002", node.Line, node.Column, "external \""+spec.Name+"\" is never referenced", "")
		}
	}
	for i, spec := range d.Inputs {
		if !used[spec.Name] {
			node := d.InputNodes()[i]
			pos := node.Position()
			c.warn("W003", pos.Line, pos.Column, "input \""+spec.Name+"\" is never referenced", "")
		}
	}
}

// collectLoadedNames walks the whole tree gathering every Name and
// Attribute reference in Load context.
func collectLoadedNames(mod *pyast.Module) map[string]bool {
	used := map[string]bool{}
	pyast.Walk(pyast.VisitorFunc(func(n pyast.Node) bool {
		switch t := n.(type) {
		case pyast.Name:
			if t.Ctx == pyast.Load {
				used[t.Id] = true
			}
		case pyast.Attribute:
			if t.Ctx == pyast.Load {
				used[t.Attr] = true
			}
		}
		return true
	}), mod)
	return used
}

// checkFinalStatement implements W001: a module whose last top-level
// statement is a bare dict/list/set/tuple literal expression statement
// gets a warning. The warning is advisory; a trailing expression's value
// is still the script's result (see yaegibridge's Transpile).
func (c *checkerState) checkFinalStatement(mod *pyast.Module) {
	if len(mod.Body) == 0 {
		return
	}
	last := mod.Body[len(mod.Body)-1]
	exprStmt, ok := last.(pyast.ExprStmt)
	if !ok {
		return
	}
	switch exprStmt.Value.(type) {
	case pyast.DictExpr, pyast.ListExpr, pyast.SetExpr, pyast.TupleExpr:
		pos := exprStmt.Position()
		c.warn("W001", pos.Line, pos.Column, "module's final statement is a bare literal expression", "")
	}
}
