package dpp

// DerivativeSpec is the library entry for the built-in first-difference
// filter. Stacking two instances gives a second-order difference.
var DerivativeSpec = &FilterSpec{
	Name:    "Derivative",
	Inputs:  []Endpoint{{Name: "in", Kind: EndpointValue}},
	Outputs: []Endpoint{{Name: "out", Kind: EndpointValue}},
	Params:  nil,
}

type derivativeFilter struct {
	in, out int
	primed  bool
	prev    uint32
}

// NewDerivative implements FilterFactory for DerivativeSpec.
func NewDerivative(params []Parameter, outputs []int, inputs []int, _ float64) (FilterInstance, error) {
	return &derivativeFilter{in: inputs[0], out: outputs[0]}, nil
}

// Proc implements FilterInstance. Per spec.md §4.2.2:
// output = INT32_MAX + input − previous; previous = input.
// On the very first call there is no prior sample, so previous is
// primed with the first input itself — output is INT32_MAX until the
// second sample arrives, centring a zero-change start the same way the
// normalising Average convention does (spec.md §8 worked example).
func (d *derivativeFilter) Proc(values []Value) {
	input := values[d.in].AsUint32()
	if !d.primed {
		d.prev = input
		d.primed = true
	}
	values[d.out] = Uint32Value(Int32Max + input - d.prev)
	d.prev = input
}

func (d *derivativeFilter) Fini() {}
