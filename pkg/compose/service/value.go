package service

// ValueKind distinguishes the types a template variable can hold.
type ValueKind int

const (
	// KindString is a plain string value.
	KindString ValueKind = iota

	// KindBool is a boolean value, usable in {{#if}} blocks.
	KindBool
)

// Value is the resolved value of one template variable. Values are small
// immutable records; copying them is cheap and they are safe to share
// across goroutines.
type Value struct {
	Kind ValueKind
	Str  string
	Bool bool
}

// String constructs a string Value.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Bool constructs a boolean Value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Truthy reports how the value evaluates inside an {{#if}} block: booleans
// evaluate to themselves, strings to non-emptiness.
func (v Value) Truthy() bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return v.Str != ""
}

// Text returns the substitution text for {{name}} references.
func (v Value) Text() string {
	if v.Kind == KindBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return v.Str
}

// Equal reports whether two values are identical in kind and content.
func (v Value) Equal(other Value) bool {
	return v.Kind == other.Kind && v.Str == other.Str && v.Bool == other.Bool
}

// Binding is a resolved value for one template variable together with the
// layer that bound it. Higher-layer bindings shadow lower ones for the same
// name; the binding set records which layer won so audit output can explain
// where a value came from.
type Binding struct {
	Name  string
	Value Value

	// Layer is the id of the layer that bound the value ("caller" for
	// request-level bindings).
	Layer string
}
