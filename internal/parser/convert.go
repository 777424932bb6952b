package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"grail/internal/grailerr"
	"grail/internal/pyast"
)

// converter walks a tree-sitter CST and builds the equivalent pyast tree.
// Node types it doesn't recognize become an opaque Constant carrying the
// raw source text, so an unanticipated grammar construct degrades to
// "checker can't say anything smart about this" rather than panicking.
type converter struct {
	source []byte
	err    *grailerr.ParseError
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(c.source) {
		end = uint32(len(c.source))
	}
	return string(c.source[start:end])
}

func (c *converter) pos(n *sitter.Node) pyast.Pos {
	start := n.StartPoint()
	end := n.EndPoint()
	endLine := int(end.Row) + 1
	endCol := int(end.Column) + 1
	return pyast.Pos{
		Line:      int(start.Row) + 1,
		Column:    int(start.Column) + 1,
		EndLine:   &endLine,
		EndColumn: &endCol,
	}
}

func (c *converter) convertModule(root *sitter.Node) *pyast.Module {
	return &pyast.Module{
		Pos:  c.pos(root),
		Body: c.convertBlockChildren(root),
	}
}

// convertBlockChildren converts every named child of a block-like node
// ("module" or "block") into statements, skipping comments.
func (c *converter) convertBlockChildren(n *sitter.Node) []pyast.Stmt {
	var out []pyast.Stmt
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if s := c.convertStmt(child); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) convertBody(n *sitter.Node) []pyast.Stmt {
	if n == nil {
		return nil
	}
	if n.Type() == "block" {
		return c.convertBlockChildren(n)
	}
	// Some grammar versions allow a simple_statements node as a one-line body.
	return c.convertBlockChildren(n)
}

func (c *converter) convertStmt(n *sitter.Node) pyast.Stmt {
	switch n.Type() {
	case "import_statement":
		return c.convertImport(n)
	case "import_from_statement":
		return c.convertImportFrom(n)
	case "function_definition":
		return c.convertFunctionDef(n)
	case "class_definition":
		return c.convertClassDef(n)
	case "decorated_definition":
		return c.convertDecorated(n)
	case "if_statement":
		return c.convertIf(n)
	case "for_statement":
		return c.convertFor(n)
	case "while_statement":
		return c.convertWhile(n)
	case "try_statement":
		return c.convertTry(n)
	case "with_statement":
		return c.convertWith(n)
	case "match_statement":
		return c.convertMatch(n)
	case "return_statement":
		return c.convertReturn(n)
	case "raise_statement":
		return c.convertRaise(n)
	case "delete_statement":
		return c.convertDelete(n)
	case "global_statement":
		return c.convertGlobal(n)
	case "nonlocal_statement":
		return c.convertNonlocal(n)
	case "assignment":
		return c.convertAssignment(n)
	case "augmented_assignment":
		return c.convertAugAssign(n)
	case "expression_statement":
		return c.convertExpressionStatement(n)
	case "pass_statement":
		return pyast.Pass{Pos: c.pos(n)}
	case "break_statement", "continue_statement":
		// Modeled as a no-annotation ExprStmt-free Pass-equivalent: grail
		// has no dedicated node for these since loops never need them
		// distinguished from Pass by any component (checker rejects the
		// unsupported control flow that would make this ambiguous, e.g.
		// break/continue themselves are always legal and inert structurally).
		return pyast.Pass{Pos: c.pos(n)}
	default:
		// Unknown/unsupported statement shape: keep the text around as an
		// expression statement so downstream components still see *a*
		// statement at this source line instead of a silent gap.
		return pyast.ExprStmt{Pos: c.pos(n), Value: c.opaqueExpr(n)}
	}
}

func (c *converter) opaqueExpr(n *sitter.Node) pyast.Expr {
	return pyast.Constant{Pos: c.pos(n), Kind: pyast.LitString, Raw: c.text(n)}
}

// ---- imports ----------------------------------------------------------

func (c *converter) convertImport(n *sitter.Node) pyast.Stmt {
	var names []pyast.ImportAlias
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		names = append(names, c.convertImportAlias(child))
	}
	return pyast.Import{Pos: c.pos(n), Names: names}
}

func (c *converter) convertImportAlias(n *sitter.Node) pyast.ImportAlias {
	if n.Type() == "aliased_import" {
		name := c.fieldOrChild(n, "name", 0)
		alias := n.ChildByFieldName("alias")
		return pyast.ImportAlias{Name: c.text(name), AsName: c.text(alias)}
	}
	return pyast.ImportAlias{Name: c.text(n)}
}

func (c *converter) convertImportFrom(n *sitter.Node) pyast.Stmt {
	moduleNode := n.ChildByFieldName("module_name")
	module := c.text(moduleNode)

	var names []pyast.ImportAlias
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == moduleNode {
			continue
		}
		switch child.Type() {
		case "dotted_name", "identifier", "aliased_import":
			names = append(names, c.convertImportAlias(child))
		case "wildcard_import":
			names = append(names, pyast.ImportAlias{Name: "*"})
		}
	}
	return pyast.ImportFrom{Pos: c.pos(n), Module: module, Names: names}
}

// ---- function / class defs ---------------------------------------------

func (c *converter) convertDecorated(n *sitter.Node) pyast.Stmt {
	var decorators []pyast.Decorator
	var defNode *sitter.Node
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child.Type() == "decorator" {
			expr := child.NamedChild(0)
			decorators = append(decorators, pyast.Decorator{Pos: c.pos(child), Expr: c.convertExpr(expr)})
			continue
		}
		defNode = child
	}
	if defNode == nil {
		return pyast.Pass{Pos: c.pos(n)}
	}
	switch defNode.Type() {
	case "function_definition":
		fn := c.convertFunctionDef(defNode).(pyast.FunctionDef)
		fn.Decorators = decorators
		return fn
	case "class_definition":
		cls := c.convertClassDef(defNode).(pyast.ClassDef)
		cls.Decorators = decorators
		return cls
	default:
		return pyast.Pass{Pos: c.pos(n)}
	}
}

func (c *converter) convertFunctionDef(n *sitter.Node) pyast.Stmt {
	isAsync := n.Child(0) != nil && n.Child(0).Type() == "async"
	name := c.text(n.ChildByFieldName("name"))
	params := c.convertParameters(n.ChildByFieldName("parameters"))

	var returns pyast.Expr
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		returns = c.convertExpr(rt)
	}

	return pyast.FunctionDef{
		Pos:     c.pos(n),
		Name:    name,
		IsAsync: isAsync,
		Params:  params,
		Returns: returns,
		Body:    c.convertBody(n.ChildByFieldName("body")),
	}
}

func (c *converter) convertParameters(n *sitter.Node) []pyast.Param {
	if n == nil {
		return nil
	}
	var out []pyast.Param
	kind := pyast.PositionalOrKeyword
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier":
			out = append(out, pyast.Param{Name: c.text(child), Kind: kind})
		case "typed_parameter":
			inner := child.NamedChild(0)
			p := pyast.Param{Name: c.text(inner), Kind: kind}
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.Annotation = c.convertExpr(typ)
			}
			out = append(out, p)
		case "default_parameter", "typed_default_parameter":
			nameNode := child.ChildByFieldName("name")
			p := pyast.Param{Name: c.text(nameNode), Kind: kind}
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.Annotation = c.convertExpr(typ)
			}
			if val := child.ChildByFieldName("value"); val != nil {
				p.Default = c.convertExpr(val)
			}
			out = append(out, p)
		case "list_splat_pattern":
			kind = pyast.VarPositional
			nameNode := child.NamedChild(0)
			out = append(out, pyast.Param{Name: c.text(nameNode), Kind: pyast.VarPositional})
			kind = pyast.KeywordOnly
		case "dictionary_splat_pattern":
			nameNode := child.NamedChild(0)
			out = append(out, pyast.Param{Name: c.text(nameNode), Kind: pyast.VarKeyword})
		case "keyword_separator":
			kind = pyast.KeywordOnly
		case "positional_separator":
			// parameters before "/" are retroactively positional-only; grail
			// doesn't need that distinction downstream so it's left as-is.
		}
	}
	return out
}

func (c *converter) convertClassDef(n *sitter.Node) pyast.Stmt {
	name := c.text(n.ChildByFieldName("name"))
	var bases []pyast.Expr
	if sc := n.ChildByFieldName("superclasses"); sc != nil {
		count := int(sc.NamedChildCount())
		for i := 0; i < count; i++ {
			child := sc.NamedChild(i)
			if child.Type() == "keyword_argument" {
				continue
			}
			bases = append(bases, c.convertExpr(child))
		}
	}
	return pyast.ClassDef{
		Pos:   c.pos(n),
		Name:  name,
		Bases: bases,
		Body:  c.convertBody(n.ChildByFieldName("body")),
	}
}

// ---- control flow -------------------------------------------------------

func (c *converter) convertIf(n *sitter.Node) pyast.Stmt {
	test := c.convertExpr(n.ChildByFieldName("condition"))
	body := c.convertBody(n.ChildByFieldName("consequence"))

	var orelse []pyast.Stmt
	alt := n.ChildByFieldName("alternative")
	if alt != nil {
		switch alt.Type() {
		case "elif_clause":
			orelse = []pyast.Stmt{c.convertElif(alt)}
		case "else_clause":
			orelse = c.convertBody(alt.ChildByFieldName("body"))
		}
	}

	return pyast.If{Pos: c.pos(n), Test: test, Body: body, Orelse: orelse}
}

func (c *converter) convertElif(n *sitter.Node) pyast.Stmt {
	test := c.convertExpr(n.ChildByFieldName("condition"))
	body := c.convertBody(n.ChildByFieldName("consequence"))
	var orelse []pyast.Stmt
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		switch alt.Type() {
		case "elif_clause":
			orelse = []pyast.Stmt{c.convertElif(alt)}
		case "else_clause":
			orelse = c.convertBody(alt.ChildByFieldName("body"))
		}
	}
	return pyast.If{Pos: c.pos(n), Test: test, Body: body, Orelse: orelse}
}

func (c *converter) convertFor(n *sitter.Node) pyast.Stmt {
	isAsync := n.Child(0) != nil && n.Child(0).Type() == "async"
	target := c.convertExpr(n.ChildByFieldName("left"))
	iter := c.convertExpr(n.ChildByFieldName("right"))
	body := c.convertBody(n.ChildByFieldName("body"))

	var orelse []pyast.Stmt
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		orelse = c.convertBody(alt.ChildByFieldName("body"))
	}

	return pyast.For{Pos: c.pos(n), Target: target, Iter: iter, Body: body, Orelse: orelse, IsAsync: isAsync}
}

func (c *converter) convertWhile(n *sitter.Node) pyast.Stmt {
	test := c.convertExpr(n.ChildByFieldName("condition"))
	body := c.convertBody(n.ChildByFieldName("body"))
	var orelse []pyast.Stmt
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		orelse = c.convertBody(alt.ChildByFieldName("body"))
	}
	return pyast.While{Pos: c.pos(n), Test: test, Body: body, Orelse: orelse}
}

func (c *converter) convertTry(n *sitter.Node) pyast.Stmt {
	body := c.convertBody(n.ChildByFieldName("body"))
	var handlers []pyast.ExceptHandler
	var orelse, finalbody []pyast.Stmt

	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "except_clause", "except_group_clause":
			handlers = append(handlers, c.convertExceptClause(child))
		case "else_clause":
			orelse = c.convertBody(child.ChildByFieldName("body"))
		case "finally_clause":
			finalbody = c.convertBody(child.ChildByFieldName("body"))
		}
	}

	return pyast.Try{Pos: c.pos(n), Body: body, Handlers: handlers, Orelse: orelse, Finalbody: finalbody}
}

func (c *converter) convertExceptClause(n *sitter.Node) pyast.ExceptHandler {
	h := pyast.ExceptHandler{Pos: c.pos(n)}
	if val := n.ChildByFieldName("value"); val != nil {
		h.Type = c.convertExpr(val)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		h.Name = c.text(name)
	}
	h.Body = c.convertBody(n.ChildByFieldName("body"))
	return h
}

func (c *converter) convertWith(n *sitter.Node) pyast.Stmt {
	isAsync := n.Child(0) != nil && n.Child(0).Type() == "async"
	var items []pyast.WithItem

	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "with_clause":
			items = append(items, c.convertWithItems(child)...)
		case "with_item":
			items = append(items, c.convertWithItem(child))
		}
	}

	return pyast.With{Pos: c.pos(n), Items: items, Body: c.convertBody(n.ChildByFieldName("body")), IsAsync: isAsync}
}

func (c *converter) convertWithItems(n *sitter.Node) []pyast.WithItem {
	var out []pyast.WithItem
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child.Type() == "with_item" {
			out = append(out, c.convertWithItem(child))
		}
	}
	return out
}

func (c *converter) convertWithItem(n *sitter.Node) pyast.WithItem {
	value := n.NamedChild(0)
	item := pyast.WithItem{ContextExpr: c.convertExpr(value)}
	if as := n.ChildByFieldName("alias"); as != nil {
		item.OptionalVar = c.convertExpr(as)
	}
	return item
}

func (c *converter) convertMatch(n *sitter.Node) pyast.Stmt {
	subject := c.convertExpr(n.ChildByFieldName("subject"))
	var cases []pyast.MatchCase

	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child.Type() != "case_clause" {
			continue
		}
		mc := pyast.MatchCase{Pos: c.pos(child)}
		if pat := child.ChildByFieldName("pattern"); pat != nil {
			mc.Pattern = c.text(pat)
		} else if child.NamedChildCount() > 0 {
			mc.Pattern = c.text(child.NamedChild(0))
		}
		if guard := child.ChildByFieldName("guard"); guard != nil {
			mc.Guard = c.convertExpr(guard)
		}
		bodyNode := child.ChildByFieldName("consequence")
		if bodyNode == nil {
			bodyNode = child.ChildByFieldName("body")
		}
		mc.Body = c.convertBody(bodyNode)
		cases = append(cases, mc)
	}

	return pyast.Match{Pos: c.pos(n), Subject: subject, Cases: cases}
}

// ---- simple statements ---------------------------------------------------

func (c *converter) convertReturn(n *sitter.Node) pyast.Stmt {
	if n.NamedChildCount() == 0 {
		return pyast.Return{Pos: c.pos(n)}
	}
	return pyast.Return{Pos: c.pos(n), Value: c.convertExprList(n)}
}

func (c *converter) convertRaise(n *sitter.Node) pyast.Stmt {
	r := pyast.Raise{Pos: c.pos(n)}
	count := int(n.NamedChildCount())
	if count > 0 {
		r.Exc = c.convertExpr(n.NamedChild(0))
	}
	if count > 1 {
		r.Cause = c.convertExpr(n.NamedChild(1))
	}
	return r
}

func (c *converter) convertDelete(n *sitter.Node) pyast.Stmt {
	var targets []pyast.Expr
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		targets = append(targets, c.convertExpr(n.NamedChild(i)))
	}
	return pyast.Delete{Pos: c.pos(n), Targets: targets}
}

func (c *converter) convertGlobal(n *sitter.Node) pyast.Stmt {
	var names []string
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		names = append(names, c.text(n.NamedChild(i)))
	}
	return pyast.Global{Pos: c.pos(n), Names: names}
}

func (c *converter) convertNonlocal(n *sitter.Node) pyast.Stmt {
	var names []string
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		names = append(names, c.text(n.NamedChild(i)))
	}
	return pyast.Nonlocal{Pos: c.pos(n), Names: names}
}

func (c *converter) convertAssignment(n *sitter.Node) pyast.Stmt {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	typ := n.ChildByFieldName("type")

	target := c.convertExprStore(left)
	if typ != nil {
		a := pyast.AnnAssign{Pos: c.pos(n), Target: target, Annotation: c.convertExpr(typ)}
		if right != nil {
			a.Value = c.convertExpr(right)
		}
		return a
	}

	targets := []pyast.Expr{target}
	return pyast.Assign{Pos: c.pos(n), Targets: targets, Value: c.convertExpr(right)}
}

func (c *converter) convertAugAssign(n *sitter.Node) pyast.Stmt {
	left := n.ChildByFieldName("left")
	op := n.ChildByFieldName("operator")
	right := n.ChildByFieldName("right")
	return pyast.AugAssign{
		Pos:    c.pos(n),
		Target: c.convertExprStore(left),
		Op:     c.text(op),
		Value:  c.convertExpr(right),
	}
}

func (c *converter) convertExpressionStatement(n *sitter.Node) pyast.Stmt {
	if n.NamedChildCount() == 0 {
		return pyast.Pass{Pos: c.pos(n)}
	}
	return pyast.ExprStmt{Pos: c.pos(n), Value: c.convertExprList(n)}
}

// convertExprList handles a node that may wrap several comma-separated
// expressions (as in "return a, b" or bare "a, b" expression statements)
// by producing a TupleExpr when there's more than one.
func (c *converter) convertExprList(n *sitter.Node) pyast.Expr {
	count := int(n.NamedChildCount())
	if count == 1 {
		return c.convertExpr(n.NamedChild(0))
	}
	var elts []pyast.Expr
	for i := 0; i < count; i++ {
		elts = append(elts, c.convertExpr(n.NamedChild(i)))
	}
	return pyast.TupleExpr{Pos: c.pos(n), Elts: elts}
}

func (c *converter) fieldOrChild(n *sitter.Node, field string, idx int) *sitter.Node {
	if f := n.ChildByFieldName(field); f != nil {
		return f
	}
	return n.NamedChild(idx)
}
