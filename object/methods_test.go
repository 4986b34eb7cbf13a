package object

import "testing"

func TestGetAttrStringIndexAndMethod(t *testing.T) {
	s := &Str{Value: "hi"}

	v, err := GetAttr(s, &Int{Value: 1})
	if err != nil || v.(*Str).Value != "i" {
		t.Fatalf("want \"i\", got %#v, err=%v", v, err)
	}

	fn, err := GetAttr(s, &Str{Value: "length"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	method, ok := fn.(*Function)
	if !ok || method.Variant != InstanceFunc {
		t.Fatalf("expected an InstanceFunc for length, got %#v", fn)
	}
	result, err := method.Native([]Value{s})
	if err != nil || result.(*Int).Value != 2 {
		t.Fatalf("want length 2, got %#v, err=%v", result, err)
	}

	if _, err := GetAttr(s, &Str{Value: "nope"}); err == nil {
		t.Errorf("expected an error for an unknown string method")
	}
}

func TestGetAttrArrayIndexAndMethods(t *testing.T) {
	a := &Array{Elements: []Value{&Int{Value: 10}, &Int{Value: 20}}}

	v, err := GetAttr(a, &Int{Value: 0})
	if err != nil || v.(*Int).Value != 10 {
		t.Fatalf("want 10, got %#v, err=%v", v, err)
	}

	fn, err := GetAttr(a, &Str{Value: "push"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	method := fn.(*Function)
	if _, err := method.Native([]Value{a, &Int{Value: 30}}); err != nil {
		t.Fatalf("push failed: %s", err)
	}
	if a.Length() != 3 {
		t.Fatalf("expected length 3 after push, got %d", a.Length())
	}
}

func TestGetAttrObjectLookup(t *testing.T) {
	o := NewObj()
	o.Set("x", &Int{Value: 1})

	v, err := GetAttr(o, &Str{Value: "x"})
	if err != nil || v.(*Int).Value != 1 {
		t.Fatalf("want 1, got %#v, err=%v", v, err)
	}

	if _, err := GetAttr(o, &Str{Value: "missing"}); err == nil {
		t.Errorf("expected an error for a missing object attribute")
	}

	if _, err := GetAttr(o, &Int{Value: 0}); err == nil {
		t.Errorf("expected an error for a non-string object key")
	}
}

func TestSetAttrOnlySupportsObj(t *testing.T) {
	o := NewObj()
	if err := SetAttr(o, &Str{Value: "k"}, &Int{Value: 1}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	v, _ := o.Get("k")
	if v.(*Int).Value != 1 {
		t.Fatalf("want 1, got %#v", v)
	}

	if err := SetAttr(&Array{}, &Str{Value: "k"}, &Int{Value: 1}); err == nil {
		t.Errorf("expected an error assigning an attribute on an array")
	}
}

func TestDelAttrOnlySupportsObj(t *testing.T) {
	o := NewObj()
	o.Set("k", &Int{Value: 1})
	if err := DelAttr(o, &Str{Value: "k"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if o.Has("k") {
		t.Errorf("expected k to be deleted")
	}

	if err := DelAttr(&Array{}, &Str{Value: "k"}); err == nil {
		t.Errorf("expected an error deleting an attribute on an array")
	}
}

func TestHasItem(t *testing.T) {
	arr := &Array{Elements: []Value{&Int{Value: 1}, &Int{Value: 2}}}
	got, err := HasItem(arr, &Int{Value: 2})
	if err != nil || !Truthy(got) {
		t.Fatalf("want true, got %#v, err=%v", got, err)
	}

	o := NewObj()
	o.Set("a", &Int{Value: 1})
	got, err = HasItem(o, &Str{Value: "a"})
	if err != nil || !Truthy(got) {
		t.Fatalf("want true, got %#v, err=%v", got, err)
	}

	s := &Str{Value: "hello world"}
	got, err = HasItem(s, &Str{Value: "world"})
	if err != nil || !Truthy(got) {
		t.Fatalf("want true, got %#v, err=%v", got, err)
	}
	got, err = HasItem(s, &Str{Value: "xyz"})
	if err != nil || Truthy(got) {
		t.Fatalf("want false, got %#v, err=%v", got, err)
	}

	if _, err := HasItem(&Int{Value: 1}, &Int{Value: 1}); err == nil {
		t.Errorf("expected an error for `in` on an int")
	}
}
