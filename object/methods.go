package object

import "fmt"

// stringMethods and arrayMethods are the built-in instance method tables
// for String/Array, per original_source's per-instance `dictionary` of
// Function(None, None, instancefunc_N=...) entries. Each Native handler
// receives the receiver prepended as args[0] by the BoundMethod/CALL_FUNC
// path.
var stringMethods = map[string]*Function{
	"index": {Variant: InstanceFunc, Name: "index", Native: func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("index: wrong number of arguments, got=%d, want=1", len(args)-1)
		}
		s, i, err := stringAndInt(args)
		if err != nil {
			return nil, err
		}
		return s.Index(i)
	}},
	"length": {Variant: InstanceFunc, Name: "length", Native: func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("length: wrong number of arguments, got=%d, want=0", len(args)-1)
		}
		s, ok := args[0].(*Str)
		if !ok {
			return nil, fmt.Errorf("length: receiver is not a string")
		}
		return &Int{Value: s.Length()}, nil
	}},
}

var arrayMethods = map[string]*Function{
	"index": {Variant: InstanceFunc, Name: "index", Native: func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("index: wrong number of arguments, got=%d, want=1", len(args)-1)
		}
		arr, ok := args[0].(*Array)
		if !ok {
			return nil, fmt.Errorf("index: receiver is not an array")
		}
		i, ok := args[1].(*Int)
		if !ok {
			return nil, fmt.Errorf("index: argument is not an int")
		}
		return arr.Index(i.Value)
	}},
	"length": {Variant: InstanceFunc, Name: "length", Native: func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("length: wrong number of arguments, got=%d, want=0", len(args)-1)
		}
		arr, ok := args[0].(*Array)
		if !ok {
			return nil, fmt.Errorf("length: receiver is not an array")
		}
		return &Int{Value: arr.Length()}, nil
	}},
	"push": {Variant: InstanceFunc, Name: "push", Native: func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("push: wrong number of arguments, got=%d, want=1", len(args)-1)
		}
		arr, ok := args[0].(*Array)
		if !ok {
			return nil, fmt.Errorf("push: receiver is not an array")
		}
		arr.Push(args[1])
		return NullValue, nil
	}},
	"pop": {Variant: InstanceFunc, Name: "pop", Native: func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("pop: wrong number of arguments, got=%d, want=0", len(args)-1)
		}
		arr, ok := args[0].(*Array)
		if !ok {
			return nil, fmt.Errorf("pop: receiver is not an array")
		}
		return arr.Pop()
	}},
}

func stringAndInt(args []Value) (*Str, int64, error) {
	s, ok := args[0].(*Str)
	if !ok {
		return nil, 0, fmt.Errorf("index: receiver is not a string")
	}
	i, ok := args[1].(*Int)
	if !ok {
		return nil, 0, fmt.Errorf("index: argument is not an int")
	}
	return s, i.Value, nil
}

// GetAttr implements the MAP_GETITEM dispatch of spec.md §4.3: obj.get(attr).
// Obj always looks attr up as a string key; String/Array additionally accept
// an Int attr for numeric indexing, and fall back to their built-in instance
// method table for a string attr, matching original_source's
// Array.get/String dictionary behavior.
func GetAttr(container, attr Value) (Value, error) {
	switch c := container.(type) {
	case *Obj:
		key, err := attrKey(attr)
		if err != nil {
			return nil, err
		}
		v, ok := c.Get(key)
		if !ok {
			return nil, fmt.Errorf("object has no attribute %q", key)
		}
		return v, nil

	case *Str:
		if i, ok := attr.(*Int); ok {
			return c.Index(i.Value)
		}
		key, err := attrKey(attr)
		if err != nil {
			return nil, err
		}
		fn, ok := stringMethods[key]
		if !ok {
			return nil, fmt.Errorf("string has no attribute %q", key)
		}
		return fn, nil

	case *Array:
		if i, ok := attr.(*Int); ok {
			return c.Index(i.Value)
		}
		key, err := attrKey(attr)
		if err != nil {
			return nil, err
		}
		fn, ok := arrayMethods[key]
		if !ok {
			return nil, fmt.Errorf("array has no attribute %q", key)
		}
		return fn, nil

	case *Module:
		key, err := attrKey(attr)
		if err != nil {
			return nil, err
		}
		v, ok := c.Get(key)
		if !ok {
			return nil, fmt.Errorf("module %q has no member %q", c.Path, key)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("value of kind %s has no attributes", container.Kind())
	}
}

// SetAttr implements MAP_SETITEM for Obj; only Obj supports assignment
// through attribute/index syntax.
func SetAttr(container, attr, value Value) error {
	obj, ok := container.(*Obj)
	if !ok {
		return fmt.Errorf("cannot assign attribute on value of kind %s", container.Kind())
	}
	key, err := attrKey(attr)
	if err != nil {
		return err
	}
	obj.Set(key, value)
	return nil
}

// DelAttr implements MAP_DELITEM.
func DelAttr(container, attr Value) error {
	obj, ok := container.(*Obj)
	if !ok {
		return fmt.Errorf("cannot delete attribute on value of kind %s", container.Kind())
	}
	key, err := attrKey(attr)
	if err != nil {
		return err
	}
	obj.Delete(key)
	return nil
}

// HasItem implements MAP_HASITEM: container.has(elem).
func HasItem(container, elem Value) (Value, error) {
	switch c := container.(type) {
	case *Obj:
		key, err := attrKey(elem)
		if err != nil {
			return nil, err
		}
		return NativeBool(c.Has(key)), nil
	case *Array:
		for _, v := range c.Elements {
			if Equal(v, elem) {
				return True, nil
			}
		}
		return False, nil
	case *Str:
		s, ok := elem.(*Str)
		if !ok {
			return nil, fmt.Errorf("in: expected string, got %s", elem.Kind())
		}
		return NativeBool(containsSubstring(c.Value, s.Value)), nil
	default:
		return nil, fmt.Errorf("value of kind %s does not support `in`", container.Kind())
	}
}

func containsSubstring(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func attrKey(v Value) (string, error) {
	s, ok := v.(*Str)
	if !ok {
		return "", fmt.Errorf("attribute key must be a string, got %s", v.Kind())
	}
	return s.Value, nil
}
