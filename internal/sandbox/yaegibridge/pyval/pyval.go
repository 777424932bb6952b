// Package pyval supplies the dynamically-typed arithmetic and comparison
// operators the yaegi-interpreted translation of a script's straight-line
// body calls into, since Go's interface{} has no operators of its own.
// Every script value is carried around as interface{} holding one of
// int64, float64, string, bool or nil, mirroring Python's dynamic typing
// closely enough for the restricted subset yaegibridge supports.
package pyval

import "fmt"

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func bothInt(a, b any) (int64, int64, bool) {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	return ai, bi, aok && bok
}

// Add implements `+`: numeric addition, or string concatenation.
func Add(a, b any) (any, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return nil, fmt.Errorf("cannot add string and %T", b)
		}
		return as + bs, nil
	}
	if ai, bi, ok := bothInt(a, b); ok {
		return ai + bi, nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af + bf, nil
	}
	return nil, fmt.Errorf("unsupported operand types for +: %T and %T", a, b)
}

func Sub(a, b any) (any, error) {
	if ai, bi, ok := bothInt(a, b); ok {
		return ai - bi, nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af - bf, nil
	}
	return nil, fmt.Errorf("unsupported operand types for -: %T and %T", a, b)
}

func Mul(a, b any) (any, error) {
	if ai, bi, ok := bothInt(a, b); ok {
		return ai * bi, nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af * bf, nil
	}
	return nil, fmt.Errorf("unsupported operand types for *: %T and %T", a, b)
}

func Div(a, b any) (any, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for /: %T and %T", a, b)
	}
	if bf == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	return af / bf, nil
}

func Mod(a, b any) (any, error) {
	if ai, bi, ok := bothInt(a, b); ok {
		if bi == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return ai % bi, nil
	}
	return nil, fmt.Errorf("unsupported operand types for %%: %T and %T", a, b)
}

func Neg(a any) (any, error) {
	switch t := a.(type) {
	case int64:
		return -t, nil
	case float64:
		return -t, nil
	default:
		return nil, fmt.Errorf("unsupported operand type for unary -: %T", a)
	}
}

func Eq(a, b any) (bool, error)  { return fmt.Sprint(a) == fmt.Sprint(b), nil }
func Neq(a, b any) (bool, error) { eq, err := Eq(a, b); return !eq, err }

func Lt(a, b any) (bool, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf, nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs, nil
	}
	return false, fmt.Errorf("unsupported operand types for <: %T and %T", a, b)
}

func Lte(a, b any) (bool, error) {
	lt, err := Lt(a, b)
	if err != nil {
		return false, err
	}
	eq, _ := Eq(a, b)
	return lt || eq, nil
}

func Gt(a, b any) (bool, error) {
	lte, err := Lte(a, b)
	if err != nil {
		return false, err
	}
	return !lte, nil
}

func Gte(a, b any) (bool, error) {
	lt, err := Lt(a, b)
	if err != nil {
		return false, err
	}
	return !lt, nil
}

func Truthy(a any) bool {
	switch t := a.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
