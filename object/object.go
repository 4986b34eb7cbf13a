// Package object implements moha's runtime value model: the Value types
// produced by literal opcodes and builders and consumed by the vm.
//
// The per-kind struct shape (one Go type per runtime kind, a small shared
// interface, Inspect-style String() method) follows the teacher's
// object/object.go. The kinds themselves do not: moha has Null/Bool/Int/
// Float/String/Array/Object/Function/Module rather than Monkey's
// Integer/Boolean/String/Array/Hash/Function/Closure/CompiledFunction, per
// original_source/moha/vm/objects/__init__.py.
package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohalang/moha/bytecode"
)

// Kind identifies the runtime type of a Value.
type Kind int

//nolint:revive
const (
	NullKind Kind = iota
	BoolKind
	IntKind
	FloatKind
	StringKind
	ArrayKind
	ObjectKind
	FunctionKind
	ModuleKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	case FunctionKind:
		return "function"
	case ModuleKind:
		return "module"
	default:
		return "unknown"
	}
}

// Value is the interface every runtime value implements.
type Value interface {
	Kind() Kind
	// String returns the value's str() representation.
	String() string
}

// Null is moha's single null value.
type Null struct{}

func (n *Null) Kind() Kind     { return NullKind }
func (n *Null) String() string { return "null" }

// NullValue is the shared Null instance; there is never a reason to
// allocate more than one.
var NullValue = &Null{}

// Bool wraps a boolean.
type Bool struct {
	Value bool
}

func (b *Bool) Kind() Kind { return BoolKind }
func (b *Bool) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// True and False are the shared Bool instances.
var (
	True  = &Bool{Value: true}
	False = &Bool{Value: false}
)

// NativeBool returns True or False for a Go bool, avoiding an allocation.
func NativeBool(v bool) *Bool {
	if v {
		return True
	}
	return False
}

// Int wraps a 64-bit signed integer.
type Int struct {
	Value int64
}

func (i *Int) Kind() Kind     { return IntKind }
func (i *Int) String() string { return strconv.FormatInt(i.Value, 10) }

// Float wraps a 64-bit float.
type Float struct {
	Value float64
}

func (f *Float) Kind() Kind     { return FloatKind }
func (f *Float) String() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// Str wraps a string.
type Str struct {
	Value string
}

func (s *Str) Kind() Kind     { return StringKind }
func (s *Str) String() string { return s.Value }

// Index returns the single-character substring at i, matching
// original_source's index_string (negative indices count from the end).
func (s *Str) Index(i int64) (*Str, error) {
	idx, err := normalizeIndex(i, int64(len(s.Value)))
	if err != nil {
		return nil, err
	}
	return &Str{Value: string(s.Value[idx])}, nil
}

// Length returns the number of bytes in the string.
func (s *Str) Length() int64 { return int64(len(s.Value)) }

// Array is an ordered, growable list of values.
type Array struct {
	Elements []Value
}

func (a *Array) Kind() Kind { return ArrayKind }
func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, el := range a.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Push appends v to the end of the array.
func (a *Array) Push(v Value) { a.Elements = append(a.Elements, v) }

// Pop removes and returns the last element.
func (a *Array) Pop() (Value, error) {
	if len(a.Elements) == 0 {
		return nil, fmt.Errorf("pop from empty array")
	}
	last := a.Elements[len(a.Elements)-1]
	a.Elements = a.Elements[:len(a.Elements)-1]
	return last, nil
}

// Index returns the element at i (negative counts from the end).
func (a *Array) Index(i int64) (Value, error) {
	idx, err := normalizeIndex(i, int64(len(a.Elements)))
	if err != nil {
		return nil, err
	}
	return a.Elements[idx], nil
}

// Length returns the number of elements.
func (a *Array) Length() int64 { return int64(len(a.Elements)) }

func normalizeIndex(i, length int64) (int64, error) {
	idx := i
	if idx < 0 {
		idx += length
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("index out of range: %d", i)
	}
	return idx, nil
}

// Obj is moha's string-keyed map, preserving insertion order of keys (the
// same discipline symtab.Table uses for compile-time names, applied here to
// a runtime, deletable map).
type Obj struct {
	keys   []string
	values map[string]Value
}

// NewObj returns an empty Obj.
func NewObj() *Obj {
	return &Obj{values: make(map[string]Value)}
}

func (o *Obj) Kind() Kind { return ObjectKind }
func (o *Obj) String() string {
	parts := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		parts = append(parts, fmt.Sprintf("%q: %s", k, o.values[k].String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Get returns the value stored under key and whether it was present.
func (o *Obj) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key, appending key to the insertion order the
// first time it is used.
func (o *Obj) Set(key string, value Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Delete removes key, compacting the key order if it was present.
func (o *Obj) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Has reports whether key is present.
func (o *Obj) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order. The caller owns the slice.
func (o *Obj) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// FuncVariant discriminates the three CALL_FUNC sub-cases of spec.md §4.3.
type FuncVariant int

//nolint:revive
const (
	CompiledFunc FuncVariant = iota
	BuiltinFunc
	InstanceFunc
)

// NativeFn is the Go-side handler for builtin and instance-method
// functions. For an InstanceFunc, args[0] is the bound receiver.
type NativeFn func(args []Value) (Value, error)

// Function is a callable value: either a compiled function body, a
// top-level builtin (print/str/id), or a built-in instance method
// (index/length/push/pop) on String/Array.
type Function struct {
	Variant FuncVariant
	Name    string

	// Compiled-function fields.
	Code      *bytecode.Bytecode
	NumParams int
	NumVars   int

	// Builtin/instance-method field.
	Native NativeFn
}

func (f *Function) Kind() Kind     { return FunctionKind }
func (f *Function) String() string { return fmt.Sprintf("<function %s>", f.displayName()) }

func (f *Function) displayName() string {
	if f.Name != "" {
		return f.Name
	}
	return "anonymous"
}

// BoundMethod pairs a Function with a receiver value. It is produced by
// MAP_GETITEM when the looked-up attribute is a Function, and consumed by
// CALL_FUNC, which prepends Receiver to the argument list. It never
// mutates the underlying Function (per spec.md's redesign flag away from
// the original implementation's in-place `val.obj = obj` mutation).
type BoundMethod struct {
	Fn       *Function
	Receiver Value
}

func (b *BoundMethod) Kind() Kind     { return FunctionKind }
func (b *BoundMethod) String() string { return b.Fn.String() }

// Module wraps the top-level frame produced by executing an imported file.
// Names/Locals mirror a vm.Frame's own vars table and locals slice, kept as
// plain data here (rather than importing the vm package, which imports
// object) so loading a module never creates an import cycle.
type Module struct {
	Path   string
	Names  []string
	Locals []Value
}

func (m *Module) Kind() Kind     { return ModuleKind }
func (m *Module) String() string { return fmt.Sprintf("<module %q>", m.Path) }

// Get returns the value bound to name at module top level.
func (m *Module) Get(name string) (Value, bool) {
	for i, n := range m.Names {
		if n == name {
			return m.Locals[i], true
		}
	}
	return nil, false
}

// Equal reports structural equality for the comparable kinds, used by
// Array's `in` membership test and the vm's BINARY_EQUAL. Values of
// differing kinds are never equal; this mirrors original_source's
// per-type `eq` methods, which raise on a kind mismatch rather than ever
// returning true across kinds.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case *Int:
		bv, ok := b.(*Int)
		return ok && av.Value == bv.Value
	case *Float:
		bv, ok := b.(*Float)
		return ok && av.Value == bv.Value
	case *Str:
		bv, ok := b.(*Str)
		return ok && av.Value == bv.Value
	case *Bool:
		bv, ok := b.(*Bool)
		return ok && av.Value == bv.Value
	case *Null:
		_, ok := b.(*Null)
		return ok
	default:
		return a == b
	}
}

// Truthy reports whether v is considered true by NOT/JMP_TRUE/guard
// conditions: null and false are falsy, the integer/float zero values are
// falsy, the empty string is falsy, everything else is truthy.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case *Null:
		return false
	case *Bool:
		return val.Value
	case *Int:
		return val.Value != 0
	case *Float:
		return val.Value != 0
	case *Str:
		return val.Value != ""
	default:
		return true
	}
}
