package codegen

import (
	"fmt"

	"grail/internal/decls"
	"grail/internal/parser"
	"grail/internal/pyast"
)

// hostModule is the module name recognized as exposing `external` and
// `Input`. Duplicated from the checker package's equivalent constant to
// avoid an import cycle (both checker and codegen depend on decls/pyast,
// neither depends on the other).
const hostModule = "grail"

// Output bundles the generated executable source with its line map.
type Output struct {
	ExecutableText string
	LineMap        *LineMap
	Module         *pyast.Module // the stripped AST, for callers that need it
}

// Generate strips host-only declarations from mod and produces the
// executable text plus a line map from the original source to it. The
// module's statements are never mutated in place — Strip builds a new
// top-level slice, and since pyast nodes are immutable value types once
// constructed by the parser, that shallow filter is all the "deep copy
// before transform" the original's AST-transformer pattern needed.
func Generate(source string, mod *pyast.Module, d *decls.Declarations) (*Output, error) {
	stripped := Strip(mod, d)

	text := pyast.UnparseModule(stripped)

	// The generated text must itself parse as a syntactically valid
	// program in the same subset; a failure here indicates an internal
	// bug in the unparser, not a problem with the user's script.
	reparsed, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("internal error: generated executable text failed to re-parse: %w", err)
	}

	lm := BuildLineMap(stripped, reparsed.Module)

	return &Output{ExecutableText: text, LineMap: lm, Module: stripped}, nil
}

// Strip removes the host-only declarations named transformation rules 1-4
// in spec.md §4.4: host-module imports, externals, and Input() bindings.
// Everything else, including nested definitions that merely reference the
// stripped names, passes through untouched.
func Strip(mod *pyast.Module, d *decls.Declarations) *pyast.Module {
	externalLines := map[int]bool{}
	for _, fn := range d.ExternalNodes() {
		externalLines[fn.Line] = true
	}
	inputLines := map[int]bool{}
	for _, stmt := range d.InputNodes() {
		inputLines[stmt.Position().Line] = true
	}

	var body []pyast.Stmt
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case pyast.ImportFrom:
			if s.Module == hostModule {
				continue
			}
			body = append(body, s)
		case pyast.FunctionDef:
			if externalLines[s.Line] {
				continue
			}
			body = append(body, s)
		case pyast.Assign, pyast.AnnAssign:
			if inputLines[stmt.Position().Line] {
				continue
			}
			body = append(body, stmt)
		default:
			body = append(body, stmt)
		}
	}

	return &pyast.Module{Pos: mod.Pos, Body: body}
}

// BuildLineMap implements spec.md §4.4's "walk both ASTs, zip statement
// lines in source order" construction: collect the sequence of top-level
// statement-and-nested-statement line numbers from the stripped AST and
// from the re-parsed executable AST (in source order), then pair them up
// positionally.
func BuildLineMap(stripped, reparsed *pyast.Module) *LineMap {
	lm := NewLineMap()
	sourceLines := collectStatementLines(stripped)
	execLines := collectStatementLines(reparsed)

	n := len(sourceLines)
	if len(execLines) < n {
		n = len(execLines)
	}
	for i := 0; i < n; i++ {
		lm.Add(sourceLines[i], execLines[i])
	}
	return lm
}

// collectStatementLines walks a module depth-first and records every
// statement's starting line, in traversal order.
func collectStatementLines(mod *pyast.Module) []int {
	var lines []int
	pyast.Walk(pyast.VisitorFunc(func(n pyast.Node) bool {
		if stmt, ok := n.(pyast.Stmt); ok {
			lines = append(lines, stmt.Position().Line)
		}
		return true
	}), mod)
	return lines
}
