package dpp

import "fmt"

// Endpoint describes one named input or output slot a filter spec declares.
type EndpointKind int

const (
	EndpointStream EndpointKind = iota
	EndpointValue
)

type Endpoint struct {
	Name string
	Kind EndpointKind
}

// FilterSpec is a library entry: the immutable, shared description of a
// filter implementation's contract.
type FilterSpec struct {
	Name    string
	Inputs  []Endpoint
	Outputs []Endpoint
	Params  []ParameterSpec
}

// FilterInstance is a filter implementation's opaque instantiation,
// created by init and driven by Proc once per tick.
type FilterInstance interface {
	// Proc reads this instance's input slots from values and writes its
	// output slots. Must not grow or reallocate values, and must be
	// deterministic: same inputs and state produce the same outputs and
	// state transition.
	Proc(values []Value)
	// Fini releases any private state. Called once, at pipeline stop.
	Fini()
}

// FilterFactory constructs a FilterInstance for one filter spec. Inputs
// and outputs are slot indices into the pipeline value buffer, borrowed
// for the instance's lifetime (valid until Fini).
type FilterFactory func(params []Parameter, outputs []int, inputs []int, frequencyHz float64) (FilterInstance, error)

// Registry is a name -> FilterFactory table. Registration happens once at
// process start; the registry is immutable thereafter (spec.md §5).
type Registry struct {
	factories map[string]FilterFactory
	specs     map[string]*FilterSpec
}

// NewRegistry returns a Registry pre-populated with the built-in filters
// (Average, Derivative).
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]FilterFactory{}, specs: map[string]*FilterSpec{}}
	r.Register(AverageSpec, NewAverage)
	r.Register(DerivativeSpec, NewDerivative)
	return r
}

// Register adds a filter implementation under spec.Name. Panics if the
// name is already registered — a programming error at startup, not a
// runtime condition.
func (r *Registry) Register(spec *FilterSpec, factory FilterFactory) {
	if _, exists := r.factories[spec.Name]; exists {
		panic(fmt.Sprintf("dpp: filter %q already registered", spec.Name))
	}
	r.factories[spec.Name] = factory
	r.specs[spec.Name] = spec
}

// Spec looks up a registered filter's immutable spec.
func (r *Registry) Spec(name string) (*FilterSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("dpp: unknown filter %q", name)
	}
	return spec, nil
}

// Init invokes the named filter's factory with validated parameter count
// and endpoint counts against its spec.
func (r *Registry) Init(name string, params []Parameter, outputs []int, inputs []int, frequencyHz float64) (FilterInstance, error) {
	spec, err := r.Spec(name)
	if err != nil {
		return nil, err
	}
	if len(params) != len(spec.Params) {
		return nil, fmt.Errorf("dpp: filter %q: expected %d parameters, got %d", name, len(spec.Params), len(params))
	}
	if len(inputs) != len(spec.Inputs) {
		return nil, fmt.Errorf("dpp: filter %q: expected %d inputs, got %d", name, len(spec.Inputs), len(inputs))
	}
	if len(outputs) != len(spec.Outputs) {
		return nil, fmt.Errorf("dpp: filter %q: expected %d outputs, got %d", name, len(spec.Outputs), len(outputs))
	}
	factory := r.factories[name]
	return factory(params, outputs, inputs, frequencyHz)
}
