package object

import (
	"fmt"
	"math"
)

// Add implements BINARY_ADD. If either operand is a string, the result is
// string concatenation with the other operand coerced through String()
// (spec.md §4.2: "strings accept mixed-kind + via string form"). Otherwise
// both operands must share the same numeric kind.
func Add(a, b Value) (Value, error) {
	if _, ok := a.(*Str); ok {
		return &Str{Value: a.String() + b.String()}, nil
	}
	if _, ok := b.(*Str); ok {
		return &Str{Value: a.String() + b.String()}, nil
	}
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("+", a, b)
		}
		return &Int{Value: av.Value + bv.Value}, nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("+", a, b)
		}
		return &Float{Value: av.Value + bv.Value}, nil
	default:
		return nil, typeError("+", a, b)
	}
}

// Sub implements BINARY_SUB: Int-Int or Float-Float only.
func Sub(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("-", a, b)
		}
		return &Int{Value: av.Value - bv.Value}, nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("-", a, b)
		}
		return &Float{Value: av.Value - bv.Value}, nil
	default:
		return nil, typeError("-", a, b)
	}
}

// Mul implements BINARY_MUL: Int*Int or Float*Float only.
func Mul(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("*", a, b)
		}
		return &Int{Value: av.Value * bv.Value}, nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("*", a, b)
		}
		return &Float{Value: av.Value * bv.Value}, nil
	default:
		return nil, typeError("*", a, b)
	}
}

// Div implements BINARY_DIV: Int/Int truncates toward zero (Go's native
// integer division), Float/Float is IEEE division; a mixed-kind operand
// pair is a type error (Open Question 3 of DESIGN.md).
func Div(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("/", a, b)
		}
		if bv.Value == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return &Int{Value: av.Value / bv.Value}, nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("/", a, b)
		}
		return &Float{Value: av.Value / bv.Value}, nil
	default:
		return nil, typeError("/", a, b)
	}
}

// Mod implements BINARY_MOD.
func Mod(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("%", a, b)
		}
		if bv.Value == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return &Int{Value: av.Value % bv.Value}, nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("%", a, b)
		}
		return &Float{Value: math.Mod(av.Value, bv.Value)}, nil
	default:
		return nil, typeError("%", a, b)
	}
}

func asInts(op string, a, b Value) (int64, int64, error) {
	av, ok := a.(*Int)
	if !ok {
		return 0, 0, typeError(op, a, b)
	}
	bv, ok := b.(*Int)
	if !ok {
		return 0, 0, typeError(op, a, b)
	}
	return av.Value, bv.Value, nil
}

// LShift, RShift, And, Or and Xor implement the bitwise BINARY_* opcodes;
// all are Int-only.
func LShift(a, b Value) (Value, error) {
	av, bv, err := asInts("<<", a, b)
	if err != nil {
		return nil, err
	}
	return &Int{Value: av << uint(bv)}, nil
}

func RShift(a, b Value) (Value, error) {
	av, bv, err := asInts(">>", a, b)
	if err != nil {
		return nil, err
	}
	return &Int{Value: av >> uint(bv)}, nil
}

func And(a, b Value) (Value, error) {
	av, bv, err := asInts("&", a, b)
	if err != nil {
		return nil, err
	}
	return &Int{Value: av & bv}, nil
}

func Or(a, b Value) (Value, error) {
	av, bv, err := asInts("|", a, b)
	if err != nil {
		return nil, err
	}
	return &Int{Value: av | bv}, nil
}

func Xor(a, b Value) (Value, error) {
	av, bv, err := asInts("&^", a, b)
	if err != nil {
		return nil, err
	}
	return &Int{Value: av ^ bv}, nil
}

// Neg implements UNARY_NEGATIVE.
func Neg(a Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		return &Int{Value: -av.Value}, nil
	case *Float:
		return &Float{Value: -av.Value}, nil
	default:
		return nil, fmt.Errorf("unary -: unsupported operand kind %s", a.Kind())
	}
}

// Pos implements UNARY_POSITIVE.
func Pos(a Value) (Value, error) {
	switch a.(type) {
	case *Int, *Float:
		return a, nil
	default:
		return nil, fmt.Errorf("unary +: unsupported operand kind %s", a.Kind())
	}
}

// Invert implements UNARY_INVERT (bitwise complement), Int-only.
func Invert(a Value) (Value, error) {
	av, ok := a.(*Int)
	if !ok {
		return nil, fmt.Errorf("unary ~: unsupported operand kind %s", a.Kind())
	}
	return &Int{Value: ^av.Value}, nil
}

// Lt and Gt implement BINARY_LT/BINARY_GT: Int/Int or Float/Float only, per
// original_source's Integer.lt/Float.lt (String defines no ordering).
func Lt(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError("<", a, b)
		}
		return NativeBool(av.Value < bv.Value), nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError("<", a, b)
		}
		return NativeBool(av.Value < bv.Value), nil
	default:
		return nil, typeError("<", a, b)
	}
}

func Gt(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		if !ok {
			return nil, typeError(">", a, b)
		}
		return NativeBool(av.Value > bv.Value), nil
	case *Float:
		bv, ok := b.(*Float)
		if !ok {
			return nil, typeError(">", a, b)
		}
		return NativeBool(av.Value > bv.Value), nil
	default:
		return nil, typeError(">", a, b)
	}
}

// Le, Ge and Ne are synthesized compositely from Lt/Gt/Eq, matching
// original_source's runtime.py BINARY_LE/BINARY_GE/BINARY_NE handlers.
func Le(a, b Value) (Value, error) {
	lt, err := Lt(a, b)
	if err != nil {
		return nil, err
	}
	if Truthy(lt) {
		return True, nil
	}
	return NativeBool(Equal(a, b)), nil
}

func Ge(a, b Value) (Value, error) {
	gt, err := Gt(a, b)
	if err != nil {
		return nil, err
	}
	if Truthy(gt) {
		return True, nil
	}
	return NativeBool(Equal(a, b)), nil
}

func Ne(a, b Value) (Value, error) {
	return NativeBool(!Equal(a, b)), nil
}

func typeError(op string, a, b Value) error {
	return fmt.Errorf("unsupported operand kinds for %s: %s and %s", op, a.Kind(), b.Kind())
}
