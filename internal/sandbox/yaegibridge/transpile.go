package yaegibridge

import (
	"fmt"
	"strconv"
	"strings"

	"grail/internal/pyast"
)

// transpiler lowers a restricted pyast.Module into a single Go function
// body. It only supports "straight-line" scripts: assignments, augmented
// assignments, annotated assignments, and a single optional trailing
// expression statement whose value becomes the script's result. Anything
// else (loops, conditionals, function/class defs) is rejected — those
// require a real sandbox, not this reference bridge.
type transpiler struct {
	stmts      []string
	declared   map[string]bool
	tempCount  int
	lastResult string
}

func newTranspiler() *transpiler {
	return &transpiler{declared: map[string]bool{}}
}

// Transpile renders mod's body as Go statements plus the name of the Go
// variable holding the final result (or "" if the script has no trailing
// expression, in which case the result is nil).
func Transpile(mod *pyast.Module) (body string, resultVar string, err error) {
	t := newTranspiler()

	for i, stmt := range mod.Body {
		isLast := i == len(mod.Body)-1
		if err := t.stmt(stmt, isLast); err != nil {
			return "", "", err
		}
	}

	return strings.Join(t.stmts, "\n"), t.lastResult, nil
}

func (t *transpiler) emit(format string, args ...any) {
	t.stmts = append(t.stmts, fmt.Sprintf(format, args...))
}

func (t *transpiler) newTemp() string {
	t.tempCount++
	return fmt.Sprintf("__grail_tmp%d", t.tempCount)
}

func (t *transpiler) stmt(s pyast.Stmt, isLast bool) error {
	switch n := s.(type) {
	case pyast.Assign:
		if len(n.Targets) != 1 {
			return fmt.Errorf("line %d: yaegibridge only supports single-target assignment", n.Line)
		}
		name, ok := n.Targets[0].(pyast.Name)
		if !ok {
			return fmt.Errorf("line %d: yaegibridge only supports assigning to a plain name", n.Line)
		}
		val, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		t.assign(name.Id, val)
		return nil

	case pyast.AnnAssign:
		name, ok := n.Target.(pyast.Name)
		if !ok {
			return fmt.Errorf("line %d: yaegibridge only supports assigning to a plain name", n.Line)
		}
		if n.Value == nil {
			t.assign(name.Id, "interface{}(nil)")
			return nil
		}
		val, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		t.assign(name.Id, val)
		return nil

	case pyast.AugAssign:
		name, ok := n.Target.(pyast.Name)
		if !ok {
			return fmt.Errorf("line %d: yaegibridge only supports augmented assignment to a plain name", n.Line)
		}
		rhs, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		fn, err := binOpFunc(strings.TrimSuffix(n.Op, "="))
		if err != nil {
			return err
		}
		tmp := t.newTemp()
		t.emit("%s, err := pyval.%s(%s, %s)", tmp, fn, name.Id, rhs)
		t.emit("if err != nil { return nil, err }")
		t.emit("%s = %s", name.Id, tmp)
		return nil

	case pyast.ExprStmt:
		val, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		if isLast {
			t.lastResult = val
		}
		return nil

	case pyast.Pass:
		return nil

	default:
		return fmt.Errorf("line %d: yaegibridge only supports straight-line scripts (assignments and a final expression)", s.Position().Line)
	}
}

func (t *transpiler) assign(name, value string) {
	if t.declared[name] {
		t.emit("%s = %s", name, value)
	} else {
		t.declared[name] = true
		t.emit("%s := %s", name, value)
	}
}

// expr lowers e to a sequence of statements plus the name of the Go
// variable (or literal) holding its value.
func (t *transpiler) expr(e pyast.Expr) (string, error) {
	switch n := e.(type) {
	case pyast.Constant:
		return t.constant(n)

	case pyast.Name:
		return n.Id, nil

	case pyast.Await:
		return t.expr(n.Value)

	case pyast.BinOp:
		left, err := t.expr(n.Left)
		if err != nil {
			return "", err
		}
		right, err := t.expr(n.Right)
		if err != nil {
			return "", err
		}
		fn, err := binOpFunc(n.Op)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", n.Line, err)
		}
		tmp := t.newTemp()
		t.emit("%s, err := pyval.%s(%s, %s)", tmp, fn, left, right)
		t.emit("if err != nil { return nil, err }")
		return tmp, nil

	case pyast.UnaryOp:
		operand, err := t.expr(n.Operand)
		if err != nil {
			return "", err
		}
		if n.Op == "not" {
			tmp := t.newTemp()
			t.emit("%s := !pyval.Truthy(%s)", tmp, operand)
			return tmp, nil
		}
		tmp := t.newTemp()
		t.emit("%s, err := pyval.Neg(%s)", tmp, operand)
		t.emit("if err != nil { return nil, err }")
		return tmp, nil

	case pyast.Compare:
		if len(n.Ops) != 1 || len(n.Comparators) != 1 {
			return "", fmt.Errorf("line %d: yaegibridge only supports a single comparison operator", n.Line)
		}
		left, err := t.expr(n.Left)
		if err != nil {
			return "", err
		}
		right, err := t.expr(n.Comparators[0])
		if err != nil {
			return "", err
		}
		fn, err := compareFunc(n.Ops[0])
		if err != nil {
			return "", fmt.Errorf("line %d: %w", n.Line, err)
		}
		tmp := t.newTemp()
		t.emit("%s, err := pyval.%s(%s, %s)", tmp, fn, left, right)
		t.emit("if err != nil { return nil, err }")
		return tmp, nil

	case pyast.Call:
		name, ok := n.Func.(pyast.Name)
		if !ok {
			return "", fmt.Errorf("line %d: yaegibridge only supports calling a bare name (an external)", n.Position().Line)
		}
		var argVars []string
		for _, a := range n.Args {
			v, err := t.expr(a)
			if err != nil {
				return "", err
			}
			argVars = append(argVars, v)
		}
		tmp := t.newTemp()
		t.emit("%s, err := grailCallExternal(externals, %q, []interface{}{%s})", tmp, name.Id, strings.Join(argVars, ", "))
		t.emit("if err != nil { return nil, err }")
		return tmp, nil

	default:
		return "", fmt.Errorf("yaegibridge only supports literals, names, binary/unary/compare expressions and external calls")
	}
}

func (t *transpiler) constant(c pyast.Constant) (string, error) {
	switch c.Kind {
	case pyast.LitInt:
		return fmt.Sprintf("interface{}(int64(%s))", c.Raw), nil
	case pyast.LitFloat:
		return fmt.Sprintf("interface{}(float64(%s))", c.Raw), nil
	case pyast.LitBool:
		if c.Raw == "True" {
			return "interface{}(true)", nil
		}
		return "interface{}(false)", nil
	case pyast.LitNone:
		return "interface{}(nil)", nil
	case pyast.LitString:
		return fmt.Sprintf("interface{}(%s)", strconv.Quote(unquotePythonString(c.Raw))), nil
	default:
		return "", fmt.Errorf("yaegibridge does not support %s literals", c.Kind)
	}
}

func unquotePythonString(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	first := raw[0]
	if (first == '\'' || first == '"') && raw[len(raw)-1] == first {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func binOpFunc(op string) (string, error) {
	switch op {
	case "+":
		return "Add", nil
	case "-":
		return "Sub", nil
	case "*":
		return "Mul", nil
	case "/":
		return "Div", nil
	case "%":
		return "Mod", nil
	default:
		return "", fmt.Errorf("yaegibridge does not support operator %q", op)
	}
}

func compareFunc(op string) (string, error) {
	switch op {
	case "==":
		return "Eq", nil
	case "!=":
		return "Neq", nil
	case "<":
		return "Lt", nil
	case "<=":
		return "Lte", nil
	case ">":
		return "Gt", nil
	case ">=":
		return "Gte", nil
	default:
		return "", fmt.Errorf("yaegibridge does not support comparison operator %q", op)
	}
}
