package dpp

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// SlotOrigin classifies what produces a slot's value each tick
// (spec.md §3 "Slot table").
type SlotOriginKind int

const (
	SlotChannel SlotOriginKind = iota
	SlotFilterOutput
)

type SlotOrigin struct {
	Kind          SlotOriginKind
	ChannelIndex  int // valid when Kind == SlotChannel
	FilterLabel   string
	EndpointName  string
}

// ResolveError names the offending label/endpoint for a rejected
// configuration (spec.md §7).
type ResolveError struct {
	Reason string
}

func (e *ResolveError) Error() string { return "dpp: resolve: " + e.Reason }

func resolveErrf(format string, args ...any) error {
	return &ResolveError{Reason: fmt.Sprintf(format, args...)}
}

// filterState tracks one filter instantiation across the resolver's passes.
type filterState struct {
	inst       FilterInstantiation
	spec       *FilterSpec
	inputSlots []int
	outputSlots []int
	inputSet   []bool
	outputSet  []bool
	order      int // first-encounter index; also execution order
}

// GraphSink is a resolved terminal node: a slot index plus display info.
type GraphSink struct {
	Label       string
	DisplayName string
	Colour      RGB
	Slot        int
}

// ResolvedPipeline is the flat execution plan produced by Resolve: slot
// table, instantiated filters in execution order, and graph sinks.
type ResolvedPipeline struct {
	SlotCount    int
	Origins      []SlotOrigin
	Filters      []FilterInstance
	FilterLabels []string // parallel to Filters, for diagnostics
	GraphSinks   []GraphSink
	ChannelSlot  map[int]int // acquisition channel index -> slot
}

// Resolve consumes the declarative spec and a chosen setup, interns every
// node to a slot index, validates every filter endpoint is wired exactly
// once, and instantiates filters in first-encounter (topological) order
// (spec.md §4.3). logger may be nil.
func Resolve(lib *LibraryFile, setupIdx int, registry *Registry, frequencyHz float64, logger *log.Logger) (*ResolvedPipeline, error) {
	if logger == nil {
		logger = log.Default()
	}
	setup, err := lib.FindSetup(setupIdx)
	if err != nil {
		return nil, err
	}

	rp := &ResolvedPipeline{ChannelSlot: map[int]int{}}
	filterByLabel := map[string]*filterState{}
	var filterOrder []*filterState
	// slotProducer maps a filter-output slot to the filterState that
	// produces it, so later wiring can detect back-edges (invariant (a):
	// every input's producer must precede it in instantiation order).
	slotProducer := map[int]*filterState{}

	internChannel := func(channelIdx int) int {
		if slot, ok := rp.ChannelSlot[channelIdx]; ok {
			return slot
		}
		slot := len(rp.Origins)
		rp.Origins = append(rp.Origins, SlotOrigin{Kind: SlotChannel, ChannelIndex: channelIdx})
		rp.ChannelSlot[channelIdx] = slot
		return slot
	}

	// Per-context label tables.
	type ctxTables struct {
		index       int // position in setup.Contexts; distinguishes reuses of the same pipeline
		channelSlot map[string]int // context-local channel label -> slot
		graphLabel  map[string]GraphBinding
		pipeline    *PipelineDef
	}
	var contexts []ctxTables

	// Pass 1 — channel scan.
	for ctxIdx, ctx := range setup.Contexts {
		pipeline, err := lib.FindPipeline(ctx.Pipeline)
		if err != nil {
			return nil, resolveErrf("setup %q: %v", setup.Name, err)
		}
		ct := ctxTables{index: ctxIdx, channelSlot: map[string]int{}, graphLabel: map[string]GraphBinding{}, pipeline: pipeline}
		for _, ch := range ctx.Channels {
			ct.channelSlot[ch.Label] = internChannel(ch.ChannelIndex)
		}
		for _, g := range ctx.Graphs {
			ct.graphLabel[g.Label] = g
		}
		contexts = append(contexts, ct)
	}

	getOrCreateFilterState := func(ct *ctxTables, label string) (*filterState, error) {
		key := fmt.Sprintf("%d/%s/%s", ct.index, ct.pipeline.Name, label)
		if fs, ok := filterByLabel[key]; ok {
			return fs, nil
		}
		var inst *FilterInstantiation
		for i := range ct.pipeline.Filters {
			if ct.pipeline.Filters[i].Label == label {
				inst = &ct.pipeline.Filters[i]
				break
			}
		}
		if inst == nil {
			return nil, resolveErrf("pipeline %q: unresolved filter label %q", ct.pipeline.Name, label)
		}
		spec, err := registry.Spec(inst.Filter)
		if err != nil {
			return nil, resolveErrf("pipeline %q: filter %q: %v", ct.pipeline.Name, label, err)
		}
		fs := &filterState{
			inst: *inst, spec: spec,
			inputSlots: make([]int, len(spec.Inputs)), outputSlots: make([]int, len(spec.Outputs)),
			inputSet: make([]bool, len(spec.Inputs)), outputSet: make([]bool, len(spec.Outputs)),
			order: len(filterOrder),
		}
		filterByLabel[key] = fs
		filterOrder = append(filterOrder, fs)
		return fs, nil
	}

	resolveFromSlot := func(ct *ctxTables, n Node) (int, error) {
		switch n.Kind {
		case NodeChannel:
			slot, ok := ct.channelSlot[n.Label]
			if !ok {
				return 0, resolveErrf("pipeline %q: unresolved channel label %q", ct.pipeline.Name, n.Label)
			}
			return slot, nil
		case NodeFilter:
			fs, err := getOrCreateFilterState(ct, n.Label)
			if err != nil {
				return 0, err
			}
			idx := endpointIndex(fs.spec.Outputs, n.Endpoint)
			if idx < 0 {
				return 0, resolveErrf("filter %q: unknown output endpoint %q", n.Label, n.Endpoint)
			}
			if !fs.outputSet[idx] {
				return 0, resolveErrf("filter %q: output endpoint %q read before it is set", n.Label, n.Endpoint)
			}
			return fs.outputSlots[idx], nil
		case NodeGraph:
			return 0, resolveErrf("graphs cannot be a stage's 'from' node (label %q)", n.Label)
		default:
			return 0, resolveErrf("unknown node kind %q", n.Kind)
		}
	}

	// Pass 2 — filter scan.
	for ci := range contexts {
		ct := &contexts[ci]
		for _, stage := range ct.pipeline.Stages {
			if stage.From.Kind == NodeGraph {
				return nil, resolveErrf("pipeline %q: stage 'from' node %q is a graph; graphs are sinks only", ct.pipeline.Name, stage.From.Label)
			}

			if stage.From.Kind == NodeFilter {
				fs, err := getOrCreateFilterState(ct, stage.From.Label)
				if err != nil {
					return nil, err
				}
				idx := endpointIndex(fs.spec.Outputs, stage.From.Endpoint)
				if idx < 0 {
					return nil, resolveErrf("filter %q: unknown output endpoint %q", stage.From.Label, stage.From.Endpoint)
				}
				if !fs.outputSet[idx] {
					slot := len(rp.Origins)
					rp.Origins = append(rp.Origins, SlotOrigin{Kind: SlotFilterOutput, FilterLabel: stage.From.Label, EndpointName: stage.From.Endpoint})
					fs.outputSlots[idx] = slot
					fs.outputSet[idx] = true
					slotProducer[slot] = fs
				}
			}

			if stage.To.Kind == NodeFilter {
				fromSlot, err := resolveFromSlot(ct, stage.From)
				if err != nil {
					return nil, err
				}
				fs, err := getOrCreateFilterState(ct, stage.To.Label)
				if err != nil {
					return nil, err
				}
				idx := endpointIndex(fs.spec.Inputs, stage.To.Endpoint)
				if idx < 0 {
					return nil, resolveErrf("filter %q: unknown input endpoint %q", stage.To.Label, stage.To.Endpoint)
				}
				if fs.inputSet[idx] {
					return nil, resolveErrf("filter %q: input endpoint %q wired more than once", stage.To.Label, stage.To.Endpoint)
				}
				if producer, ok := slotProducer[fromSlot]; ok && producer.order >= fs.order {
					return nil, resolveErrf("pipeline %q: back-edge: filter %q input %q depends on filter %q, which is not instantiated earlier", ct.pipeline.Name, stage.To.Label, stage.To.Endpoint, producer.inst.Label)
				}
				fs.inputSlots[idx] = fromSlot
				fs.inputSet[idx] = true
			}
		}
	}

	// Validate wiring completeness.
	for _, fs := range filterOrder {
		for i, set := range fs.inputSet {
			if !set {
				return nil, resolveErrf("filter %q: input endpoint %q never wired", fs.inst.Label, fs.spec.Inputs[i].Name)
			}
		}
		for i, set := range fs.outputSet {
			if !set {
				return nil, resolveErrf("filter %q: output endpoint %q never wired", fs.inst.Label, fs.spec.Outputs[i].Name)
			}
		}
	}

	// Pass 3 — graph scan.
	for ci := range contexts {
		ct := &contexts[ci]
		for _, stage := range ct.pipeline.Stages {
			if stage.To.Kind != NodeGraph {
				continue
			}
			fromSlot, err := resolveFromSlot(ct, stage.From)
			if err != nil {
				return nil, err
			}
			g, ok := ct.graphLabel[stage.To.Label]
			if !ok {
				return nil, resolveErrf("pipeline %q: unresolved graph label %q", ct.pipeline.Name, stage.To.Label)
			}
			rp.GraphSinks = append(rp.GraphSinks, GraphSink{
				Label: g.Label, DisplayName: g.DisplayName, Colour: g.Colour.Resolve(), Slot: fromSlot,
			})
		}
	}

	// Pass 4 — filter instantiation, in first-encounter (topological) order.
	for _, fs := range filterOrder {
		instance, err := registry.Init(fs.inst.Filter, fs.inst.Parameters, fs.outputSlots, fs.inputSlots, frequencyHz)
		if err != nil {
			logger.Error("filter init failed; tearing down", "label", fs.inst.Label, "filter", fs.inst.Filter, "err", err)
			for _, built := range rp.Filters {
				built.Fini()
			}
			return nil, resolveErrf("filter %q (%s): %v", fs.inst.Label, fs.inst.Filter, err)
		}
		rp.Filters = append(rp.Filters, instance)
		rp.FilterLabels = append(rp.FilterLabels, fs.inst.Label)
	}

	rp.SlotCount = len(rp.Origins)
	return rp, nil
}

func endpointIndex(endpoints []Endpoint, name string) int {
	for i, e := range endpoints {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Stop releases every filter instance's private state (spec.md §3
// lifecycle).
func (rp *ResolvedPipeline) Stop() {
	for _, f := range rp.Filters {
		f.Fini()
	}
}
