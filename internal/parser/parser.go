// Package parser turns restricted-Python source text into a pyast.Module
// using tree-sitter's Python grammar as the concrete syntax front end
// (grounded on the teacher's CST-walking style in python_parser.go).
package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"grail/internal/grailerr"
	"grail/internal/pyast"
)

// Result bundles the parsed tree with the exact source line slice the
// rest of grail needs for error context rendering and line mapping.
type Result struct {
	Module      *pyast.Module
	SourceLines []string
	Source      string
}

// Parse parses pym source text. Syntax errors surface as *grailerr.ParseError
// rather than a generic error, since ScriptBundle.Load needs to recognize
// and wrap them distinctly from checker failures.
func Parse(source string) (*Result, error) {
	return ParseContext(context.Background(), source)
}

// ParseContext is Parse with caller-controlled cancellation, used by the
// yaegibridge sandbox to parse executable text under Prepare's context.
func ParseContext(ctx context.Context, source string) (*Result, error) {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())

	content := []byte(source)
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, grailerr.NewParseError(fmt.Sprintf("tree-sitter parse failed: %v", err), nil, nil)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if errNode := firstErrorNode(root); errNode != nil {
			line := int(errNode.StartPoint().Row) + 1
			col := int(errNode.StartPoint().Column) + 1
			return nil, grailerr.NewParseError(
				fmt.Sprintf("invalid syntax near %q", snippet(content, errNode)),
				&line, &col,
			)
		}
		return nil, grailerr.NewParseError("invalid syntax", nil, nil)
	}

	c := &converter{source: content}
	mod := c.convertModule(root)
	if c.err != nil {
		return nil, c.err
	}

	return &Result{
		Module:      mod,
		SourceLines: splitLines(source),
		Source:      source,
	}, nil
}

// splitLines mirrors Python's str.splitlines() closely enough for line
// counting: a final trailing newline does not produce a spurious empty
// last element (unlike strings.Split), and an empty source yields zero
// lines rather than one. This matters for W004's 200-line boundary and
// for end-of-file error context, both of which key off len(SourceLines).
func splitLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

func snippet(source []byte, n *sitter.Node) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(source) {
		end = uint32(len(source))
	}
	text := string(source[start:end])
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	return text
}
