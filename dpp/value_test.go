package dpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Lookup(t *testing.T) {
	params := []Parameter{
		{Name: "frequency", Value: Float64Value(1.5)},
		{Name: "normalise", Value: BoolValue(true)},
	}

	v, err := Lookup(params, "frequency", KindFloat64)
	assert.NoError(t, err)
	assert.Equal(t, 1.5, v.AsFloat64())

	_, err = Lookup(params, "frequency", KindBool)
	assert.Error(t, err, "kind mismatch must be rejected")

	_, err = Lookup(params, "missing", KindBool)
	assert.Error(t, err, "unknown name must be rejected")
}

func Test_Value_AccessorsPanicOnWrongKind(t *testing.T) {
	assert.Panics(t, func() { Uint32Value(1).AsBool() })
	assert.Panics(t, func() { BoolValue(true).AsFloat64() })
	assert.Panics(t, func() { Float64Value(1).AsUint32() })
}
