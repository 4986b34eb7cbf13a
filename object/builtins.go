package object

import (
	"fmt"
	"strconv"
)

// Builtins is the table of top-level built-in functions LOAD_GLOBAL falls
// back to when no enclosing frame defines the referenced name, matching
// the shape of the teacher's Builtins slice + GetBuiltinByName lookup.
var Builtins = []struct {
	Name     string
	Function *Function
}{
	{
		"print",
		&Function{Variant: BuiltinFunc, Name: "print", Native: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("print: wrong number of arguments, got=%d, want=1", len(args))
			}
			fmt.Println(args[0].String())
			return NullValue, nil
		}},
	},
	{
		"str",
		&Function{Variant: BuiltinFunc, Name: "str", Native: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("str: wrong number of arguments, got=%d, want=1", len(args))
			}
			return &Str{Value: args[0].String()}, nil
		}},
	},
	{
		"id",
		&Function{Variant: BuiltinFunc, Name: "id", Native: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("id: wrong number of arguments, got=%d, want=1", len(args))
			}
			return &Int{Value: identityHash(args[0])}, nil
		}},
	},
}

// identityHash gives every value a stable integer per spec.md's `id`
// builtin (original_source's builtin_id returns the value's hash()).
// Go values don't expose hash codes, so an Int yields its own value, a Bool
// yields 1 or 0, and every other kind yields its pointer identity.
func identityHash(v Value) int64 {
	switch val := v.(type) {
	case *Int:
		return val.Value
	case *Bool:
		if val.Value {
			return 1
		}
		return 0
	default:
		addr, _ := strconv.ParseInt(fmt.Sprintf("%p", v)[2:], 16, 64)
		return addr
	}
}

// GetBuiltinByName returns the named top-level builtin, or nil if name
// isn't one.
func GetBuiltinByName(name string) *Function {
	for _, def := range Builtins {
		if def.Name == name {
			return def.Function
		}
	}
	return nil
}
