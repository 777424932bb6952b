package pyast

import (
	"fmt"
	"strings"
)

// UnparseExpr renders an expression back to Python source text. It is used
// both to recover declaration metadata as readable strings (annotations,
// defaults) and by the codegen package to regenerate executable source
// after stripping host-only declarations.
func UnparseExpr(e Expr) string {
	if e == nil {
		return ""
	}
	// operand renders an operator's sub-expression, parenthesizing compound
	// operands: the parser drops source parentheses, so the grouping is
	// restored here.
	operand := func(x Expr) string {
		switch x.(type) {
		case BinOp, UnaryOp, BoolOp, Compare, IfExp, Lambda, Await:
			return "(" + UnparseExpr(x) + ")"
		}
		return UnparseExpr(x)
	}
	switch t := e.(type) {
	case Constant:
		return unparseConstant(t)
	case Name:
		return t.Id
	case Attribute:
		return UnparseExpr(t.Value) + "." + t.Attr
	case Call:
		return unparseCall(t)
	case Lambda:
		return "lambda " + joinParams(t.Params) + ": " + UnparseExpr(t.Body)
	case Await:
		return "await " + UnparseExpr(t.Value)
	case Yield:
		if t.Value == nil {
			return "yield"
		}
		return "yield " + UnparseExpr(t.Value)
	case YieldFrom:
		return "yield from " + UnparseExpr(t.Value)
	case ListComp:
		return "[" + UnparseExpr(t.Elt) + unparseComprehensions(t.Generators) + "]"
	case SetComp:
		return "{" + UnparseExpr(t.Elt) + unparseComprehensions(t.Generators) + "}"
	case DictComp:
		return "{" + UnparseExpr(t.Key) + ": " + UnparseExpr(t.Value) + unparseComprehensions(t.Generators) + "}"
	case GeneratorExp:
		return "(" + UnparseExpr(t.Elt) + unparseComprehensions(t.Generators) + ")"
	case BinOp:
		return operand(t.Left) + " " + t.Op + " " + operand(t.Right)
	case UnaryOp:
		if t.Op == "not" {
			return "not " + operand(t.Operand)
		}
		return t.Op + operand(t.Operand)
	case BoolOp:
		parts := make([]string, len(t.Values))
		for i, v := range t.Values {
			parts[i] = operand(v)
		}
		return strings.Join(parts, " "+t.Op+" ")
	case Compare:
		var b strings.Builder
		b.WriteString(operand(t.Left))
		for i, op := range t.Ops {
			b.WriteString(" ")
			b.WriteString(op)
			b.WriteString(" ")
			if i < len(t.Comparators) {
				b.WriteString(operand(t.Comparators[i]))
			}
		}
		return b.String()
	case IfExp:
		return UnparseExpr(t.Body) + " if " + UnparseExpr(t.Test) + " else " + UnparseExpr(t.Orelse)
	case JoinedStr:
		return unparseJoinedStr(t)
	case ListExpr:
		return "[" + joinExprs(t.Elts) + "]"
	case TupleExpr:
		return joinExprs(t.Elts)
	case SetExpr:
		return "{" + joinExprs(t.Elts) + "}"
	case DictExpr:
		parts := make([]string, len(t.Entries))
		for i, entry := range t.Entries {
			if entry.Key == nil {
				parts[i] = "**" + UnparseExpr(entry.Value)
			} else {
				parts[i] = UnparseExpr(entry.Key) + ": " + UnparseExpr(entry.Value)
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Starred:
		return "*" + UnparseExpr(t.Value)
	case Subscript:
		return UnparseExpr(t.Value) + "[" + UnparseExpr(t.Index) + "]"
	default:
		return ""
	}
}

func unparseConstant(c Constant) string {
	switch c.Kind {
	case LitNone:
		return "None"
	case LitEllipsis:
		return "..."
	default:
		return c.Raw
	}
}

func unparseCall(c Call) string {
	var parts []string
	for _, a := range c.Args {
		parts = append(parts, UnparseExpr(a))
	}
	for _, k := range c.Keywords {
		if k.Arg == "" {
			parts = append(parts, "**"+UnparseExpr(k.Value))
		} else {
			parts = append(parts, k.Arg+"="+UnparseExpr(k.Value))
		}
	}
	return UnparseExpr(c.Func) + "(" + strings.Join(parts, ", ") + ")"
}

func joinExprs(elts []Expr) string {
	parts := make([]string, len(elts))
	for i, e := range elts {
		parts[i] = UnparseExpr(e)
	}
	return strings.Join(parts, ", ")
}

func joinParams(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, unparseParam(p))
	}
	return strings.Join(parts, ", ")
}

func unparseParam(p Param) string {
	s := p.Name
	switch p.Kind {
	case VarPositional:
		s = "*" + s
	case VarKeyword:
		s = "**" + s
	}
	if p.Annotation != nil {
		s += ": " + UnparseExpr(p.Annotation)
	}
	if p.Default != nil {
		if p.Annotation != nil {
			s += " = " + UnparseExpr(p.Default)
		} else {
			s += "=" + UnparseExpr(p.Default)
		}
	}
	return s
}

func unparseComprehensions(gens []Comprehension) string {
	var b strings.Builder
	for _, g := range gens {
		if g.IsAsync {
			b.WriteString(" async for ")
		} else {
			b.WriteString(" for ")
		}
		b.WriteString(UnparseExpr(g.Target))
		b.WriteString(" in ")
		b.WriteString(UnparseExpr(g.Iter))
		for _, cond := range g.Ifs {
			b.WriteString(" if ")
			b.WriteString(UnparseExpr(cond))
		}
	}
	return b.String()
}

func unparseJoinedStr(j JoinedStr) string {
	var b strings.Builder
	b.WriteString(`f"`)
	for _, part := range j.Parts {
		if part.IsExpr {
			b.WriteString("{")
			b.WriteString(UnparseExpr(part.Value))
			if part.FormatSpec != "" {
				b.WriteString(":")
				b.WriteString(part.FormatSpec)
			}
			b.WriteString("}")
		} else {
			b.WriteString(part.Literal)
		}
	}
	b.WriteString(`"`)
	return b.String()
}

// UnparseModule renders a full module back to Python source, using
// four-space indentation. It is the codegen package's last step after the
// host-only declarations have been stripped from the tree.
func UnparseModule(m *Module) string {
	var b strings.Builder
	unparseStmts(&b, m.Body, 0)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("    ", depth))
}

func unparseStmts(b *strings.Builder, stmts []Stmt, depth int) {
	if len(stmts) == 0 {
		indent(b, depth)
		b.WriteString("pass\n")
		return
	}
	for _, s := range stmts {
		unparseStmt(b, s, depth)
	}
}

func unparseStmt(b *strings.Builder, s Stmt, depth int) {
	switch t := s.(type) {
	case Import:
		indent(b, depth)
		names := make([]string, len(t.Names))
		for i, n := range t.Names {
			names[i] = n.Name
			if n.AsName != "" {
				names[i] += " as " + n.AsName
			}
		}
		fmt.Fprintf(b, "import %s\n", strings.Join(names, ", "))

	case ImportFrom:
		indent(b, depth)
		names := make([]string, len(t.Names))
		for i, n := range t.Names {
			names[i] = n.Name
			if n.AsName != "" {
				names[i] += " as " + n.AsName
			}
		}
		fmt.Fprintf(b, "from %s import %s\n", t.Module, strings.Join(names, ", "))

	case FunctionDef:
		unparseDecorators(b, t.Decorators, depth)
		indent(b, depth)
		prefix := "def "
		if t.IsAsync {
			prefix = "async def "
		}
		fmt.Fprintf(b, "%s%s(%s)", prefix, t.Name, joinParams(t.Params))
		if t.Returns != nil {
			fmt.Fprintf(b, " -> %s", UnparseExpr(t.Returns))
		}
		b.WriteString(":\n")
		unparseStmts(b, t.Body, depth+1)

	case ClassDef:
		unparseDecorators(b, t.Decorators, depth)
		indent(b, depth)
		fmt.Fprintf(b, "class %s", t.Name)
		if len(t.Bases) > 0 {
			fmt.Fprintf(b, "(%s)", joinExprs(t.Bases))
		}
		b.WriteString(":\n")
		unparseStmts(b, t.Body, depth+1)

	case If:
		indent(b, depth)
		fmt.Fprintf(b, "if %s:\n", UnparseExpr(t.Test))
		unparseStmts(b, t.Body, depth+1)
		unparseOrelse(b, t.Orelse, depth)

	case For:
		indent(b, depth)
		prefix := "for "
		if t.IsAsync {
			prefix = "async for "
		}
		fmt.Fprintf(b, "%s%s in %s:\n", prefix, UnparseExpr(t.Target), UnparseExpr(t.Iter))
		unparseStmts(b, t.Body, depth+1)
		if len(t.Orelse) > 0 {
			indent(b, depth)
			b.WriteString("else:\n")
			unparseStmts(b, t.Orelse, depth+1)
		}

	case While:
		indent(b, depth)
		fmt.Fprintf(b, "while %s:\n", UnparseExpr(t.Test))
		unparseStmts(b, t.Body, depth+1)
		if len(t.Orelse) > 0 {
			indent(b, depth)
			b.WriteString("else:\n")
			unparseStmts(b, t.Orelse, depth+1)
		}

	case Try:
		indent(b, depth)
		b.WriteString("try:\n")
		unparseStmts(b, t.Body, depth+1)
		for _, h := range t.Handlers {
			indent(b, depth)
			b.WriteString("except")
			if h.Type != nil {
				b.WriteString(" " + UnparseExpr(h.Type))
				if h.Name != "" {
					b.WriteString(" as " + h.Name)
				}
			}
			b.WriteString(":\n")
			unparseStmts(b, h.Body, depth+1)
		}
		if len(t.Orelse) > 0 {
			indent(b, depth)
			b.WriteString("else:\n")
			unparseStmts(b, t.Orelse, depth+1)
		}
		if len(t.Finalbody) > 0 {
			indent(b, depth)
			b.WriteString("finally:\n")
			unparseStmts(b, t.Finalbody, depth+1)
		}

	case With:
		indent(b, depth)
		prefix := "with "
		if t.IsAsync {
			prefix = "async with "
		}
		items := make([]string, len(t.Items))
		for i, item := range t.Items {
			items[i] = UnparseExpr(item.ContextExpr)
			if item.OptionalVar != nil {
				items[i] += " as " + UnparseExpr(item.OptionalVar)
			}
		}
		fmt.Fprintf(b, "%s%s:\n", prefix, strings.Join(items, ", "))
		unparseStmts(b, t.Body, depth+1)

	case Match:
		indent(b, depth)
		fmt.Fprintf(b, "match %s:\n", UnparseExpr(t.Subject))
		for _, c := range t.Cases {
			indent(b, depth+1)
			b.WriteString("case " + c.Pattern)
			if c.Guard != nil {
				b.WriteString(" if " + UnparseExpr(c.Guard))
			}
			b.WriteString(":\n")
			unparseStmts(b, c.Body, depth+2)
		}

	case Return:
		indent(b, depth)
		if t.Value == nil {
			b.WriteString("return\n")
		} else {
			fmt.Fprintf(b, "return %s\n", UnparseExpr(t.Value))
		}

	case Raise:
		indent(b, depth)
		switch {
		case t.Exc == nil:
			b.WriteString("raise\n")
		case t.Cause != nil:
			fmt.Fprintf(b, "raise %s from %s\n", UnparseExpr(t.Exc), UnparseExpr(t.Cause))
		default:
			fmt.Fprintf(b, "raise %s\n", UnparseExpr(t.Exc))
		}

	case Delete:
		indent(b, depth)
		fmt.Fprintf(b, "del %s\n", joinExprs(t.Targets))

	case Global:
		indent(b, depth)
		fmt.Fprintf(b, "global %s\n", strings.Join(t.Names, ", "))

	case Nonlocal:
		indent(b, depth)
		fmt.Fprintf(b, "nonlocal %s\n", strings.Join(t.Names, ", "))

	case Assign:
		indent(b, depth)
		targets := make([]string, len(t.Targets))
		for i, tg := range t.Targets {
			targets[i] = UnparseExpr(tg)
		}
		fmt.Fprintf(b, "%s = %s\n", strings.Join(targets, " = "), UnparseExpr(t.Value))

	case AnnAssign:
		indent(b, depth)
		if t.Value != nil {
			fmt.Fprintf(b, "%s: %s = %s\n", UnparseExpr(t.Target), UnparseExpr(t.Annotation), UnparseExpr(t.Value))
		} else {
			fmt.Fprintf(b, "%s: %s\n", UnparseExpr(t.Target), UnparseExpr(t.Annotation))
		}

	case AugAssign:
		indent(b, depth)
		fmt.Fprintf(b, "%s %s %s\n", UnparseExpr(t.Target), t.Op, UnparseExpr(t.Value))

	case ExprStmt:
		indent(b, depth)
		fmt.Fprintf(b, "%s\n", UnparseExpr(t.Value))

	case Pass:
		indent(b, depth)
		b.WriteString("pass\n")
	}
}

func unparseOrelse(b *strings.Builder, orelse []Stmt, depth int) {
	if len(orelse) == 0 {
		return
	}
	// A single nested If represents an "elif" chain.
	if len(orelse) == 1 {
		if nested, ok := orelse[0].(If); ok {
			indent(b, depth)
			fmt.Fprintf(b, "elif %s:\n", UnparseExpr(nested.Test))
			unparseStmts(b, nested.Body, depth+1)
			unparseOrelse(b, nested.Orelse, depth)
			return
		}
	}
	indent(b, depth)
	b.WriteString("else:\n")
	unparseStmts(b, orelse, depth+1)
}

func unparseDecorators(b *strings.Builder, decorators []Decorator, depth int) {
	for _, d := range decorators {
		indent(b, depth)
		fmt.Fprintf(b, "@%s\n", UnparseExpr(d.Expr))
	}
}
