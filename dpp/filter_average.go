package dpp

import (
	"fmt"
	"math"
)

// Int32Max is the mid-point bias used by Average (normalising) and
// Derivative so a zero-change input maps to the centre of a signed 32-bit
// range (spec.md §4.2.1, §4.2.2).
const Int32Max uint32 = math.MaxInt32

// AverageSpec is the library entry for the built-in moving-window filter.
var AverageSpec = &FilterSpec{
	Name:    "Average",
	Inputs:  []Endpoint{{Name: "in", Kind: EndpointValue}},
	Outputs: []Endpoint{{Name: "out", Kind: EndpointValue}},
	Params: []ParameterSpec{
		{Name: "frequency", Kind: KindFloat64},
		{Name: "normalise", Kind: KindBool},
	},
}

type averageFilter struct {
	in, out   int
	normalise bool
	fifo      *FIFO
	sum       uint64
}

// NewAverage implements FilterFactory for AverageSpec. The window length
// in samples is acquisitionFrequencyHz / params["frequency"].
func NewAverage(params []Parameter, outputs []int, inputs []int, acquisitionFrequencyHz float64) (FilterInstance, error) {
	freqParam, err := Lookup(params, "frequency", KindFloat64)
	if err != nil {
		return nil, err
	}
	normaliseParam, err := Lookup(params, "normalise", KindBool)
	if err != nil {
		return nil, err
	}
	if freqParam.F64 <= 0 {
		return nil, errInvalidAverageWindow(freqParam.F64)
	}
	windowLen := int(acquisitionFrequencyHz / freqParam.F64)
	if windowLen < 1 {
		windowLen = 1
	}
	return &averageFilter{
		in: inputs[0], out: outputs[0],
		normalise: normaliseParam.Bool,
		fifo:      NewFIFO(windowLen),
	}, nil
}

func errInvalidAverageWindow(freq float64) error {
	return fmt.Errorf("dpp: Average: frequency parameter must be positive, got %v", freq)
}

// Proc implements FilterInstance. Per spec.md §4.2.1: enqueue the new
// sample and add it to the running sum; if the FIFO was already full,
// dequeue and subtract the oldest sample first so the sum always covers
// exactly the live window. The divisor is the FIFO's *current* length,
// not its capacity, during warm-up (spec.md §9 open question — kept as
// specified, not patched around).
func (a *averageFilter) Proc(values []Value) {
	input := values[a.in].AsUint32()

	if a.fifo.Full() {
		oldest, _ := a.fifo.Read()
		a.sum -= uint64(oldest)
	}
	_ = a.fifo.Write(input)
	a.sum += uint64(input)

	mean := uint32(a.sum / uint64(a.fifo.Len()))

	var out uint32
	if a.normalise {
		out = Int32Max + input - mean
	} else {
		out = mean
	}
	values[a.out] = Uint32Value(out)
}

func (a *averageFilter) Fini() {
	a.fifo.Destroy()
}
