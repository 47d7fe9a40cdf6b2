// Package dpp implements the host-side data processing pipeline: wire
// protocol, filter framework, pipeline resolver/engine, calibration and
// the acquisition controller that ties them together.
package dpp

import "fmt"

// Kind identifies which variant of Value is live.
type Kind int

const (
	KindBool Kind = iota
	KindFloat64
	KindUint32
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindFloat64:
		return "double"
	case KindUint32:
		return "unsigned"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged scalar: exactly one of Bool, F64, U32 is meaningful,
// selected by Kind. Reading the wrong field is a programming error, not
// a recoverable one; callers that don't trust the producer should check
// Kind first.
type Value struct {
	Kind Kind
	Bool bool
	F64  float64
	U32  uint32
}

// BoolValue builds a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Float64Value builds a double Value.
func Float64Value(f float64) Value { return Value{Kind: KindFloat64, F64: f} }

// Uint32Value builds an unsigned Value.
func Uint32Value(u uint32) Value { return Value{Kind: KindUint32, U32: u} }

// AsBool returns v's boolean payload. Panics if v is not KindBool.
func (v Value) AsBool() bool {
	if v.Kind != KindBool {
		panic(fmt.Sprintf("dpp: Value.AsBool on %s value", v.Kind))
	}
	return v.Bool
}

// AsFloat64 returns v's double payload. Panics if v is not KindFloat64.
func (v Value) AsFloat64() float64 {
	if v.Kind != KindFloat64 {
		panic(fmt.Sprintf("dpp: Value.AsFloat64 on %s value", v.Kind))
	}
	return v.F64
}

// AsUint32 returns v's unsigned payload. Panics if v is not KindUint32.
func (v Value) AsUint32() uint32 {
	if v.Kind != KindUint32 {
		panic(fmt.Sprintf("dpp: Value.AsUint32 on %s value", v.Kind))
	}
	return v.U32
}

// ParameterSpec declares a named, typed parameter a filter expects.
type ParameterSpec struct {
	Name string
	Kind Kind
}

// Parameter is a concrete name/value binding for a filter instance.
type Parameter struct {
	Name  string
	Value Value
}

// Lookup finds the parameter named name in params and verifies its Kind
// matches want.
func Lookup(params []Parameter, name string, want Kind) (Value, error) {
	for _, p := range params {
		if p.Name == name {
			if p.Value.Kind != want {
				return Value{}, fmt.Errorf("dpp: parameter %q: expected %s, got %s", name, want, p.Value.Kind)
			}
			return p.Value, nil
		}
	}
	return Value{}, fmt.Errorf("dpp: missing parameter %q", name)
}
