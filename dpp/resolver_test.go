package dpp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func singleChannelToGraphLib() *LibraryFile {
	return &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name: "passthrough",
				Stages: []Stage{
					{From: Node{Kind: NodeChannel, Label: "ch"}, To: Node{Kind: NodeGraph, Label: "g"}},
				},
			},
		},
		Setup: []Setup{
			{
				Name:     "default",
				Emission: EmissionContinuous,
				Contexts: []Context{
					{
						Pipeline: "passthrough",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 0}},
						Graphs:   []GraphBinding{{Label: "g", DisplayName: "Channel 0", Colour: GraphColour{Kind: ColourRGB, R: 255}}},
					},
				},
			},
		},
	}
}

func Test_Resolve_SingleChannelPassthrough(t *testing.T) {
	lib := singleChannelToGraphLib()
	registry := NewRegistry()

	rp, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)
	defer rp.Stop()

	assert.Equal(t, 1, rp.SlotCount)
	assert.Len(t, rp.GraphSinks, 1)
	assert.Equal(t, rp.ChannelSlot[0], rp.GraphSinks[0].Slot)
}

func Test_Resolve_ChannelDerivativeGraph(t *testing.T) {
	lib := &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name: "deriv",
				Filters: []FilterInstantiation{
					{Label: "d1", Filter: "Derivative"},
				},
				Stages: []Stage{
					{From: Node{Kind: NodeChannel, Label: "ch"}, To: Node{Kind: NodeFilter, Label: "d1", Endpoint: "in"}},
					{From: Node{Kind: NodeFilter, Label: "d1", Endpoint: "out"}, To: Node{Kind: NodeGraph, Label: "g"}},
				},
			},
		},
		Setup: []Setup{
			{
				Name: "default",
				Contexts: []Context{
					{
						Pipeline: "deriv",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 0}},
						Graphs:   []GraphBinding{{Label: "g", Colour: GraphColour{Kind: ColourRGB}}},
					},
				},
			},
		},
	}
	registry := NewRegistry()

	rp, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)
	defer rp.Stop()

	assert.Equal(t, 2, rp.SlotCount) // channel slot + filter output slot
	require.Len(t, rp.Filters, 1)
	assert.Equal(t, "d1", rp.FilterLabels[0])
}

func Test_Resolve_RejectsUnwiredInput(t *testing.T) {
	// A filter with two inputs but only one stage targets its inputs
	// (spec.md §8 end-to-end scenario 6: "unwired-input rejection").
	registry := NewRegistry()
	registry.Register(&FilterSpec{
		Name:    "TwoInput",
		Inputs:  []Endpoint{{Name: "a", Kind: EndpointValue}, {Name: "b", Kind: EndpointValue}},
		Outputs: []Endpoint{{Name: "out", Kind: EndpointValue}},
	}, func(params []Parameter, outputs []int, inputs []int, _ float64) (FilterInstance, error) {
		return &noopFilter{out: outputs[0]}, nil
	})

	lib := &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name: "unwired",
				Filters: []FilterInstantiation{
					{Label: "f", Filter: "TwoInput"},
				},
				Stages: []Stage{
					{From: Node{Kind: NodeChannel, Label: "ch"}, To: Node{Kind: NodeFilter, Label: "f", Endpoint: "a"}},
					{From: Node{Kind: NodeFilter, Label: "f", Endpoint: "out"}, To: Node{Kind: NodeGraph, Label: "g"}},
				},
			},
		},
		Setup: []Setup{
			{
				Name: "default",
				Contexts: []Context{
					{
						Pipeline: "unwired",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 0}},
						Graphs:   []GraphBinding{{Label: "g"}},
					},
				},
			},
		},
	}

	_, err := Resolve(lib, 0, registry, 1000, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `input endpoint "b" never wired`)
}

func Test_Resolve_RejectsBackEdge(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&FilterSpec{
		Name:    "Passthrough",
		Inputs:  []Endpoint{{Name: "in", Kind: EndpointValue}},
		Outputs: []Endpoint{{Name: "out", Kind: EndpointValue}},
	}, func(params []Parameter, outputs []int, inputs []int, _ float64) (FilterInstance, error) {
		return &noopFilter{out: outputs[0]}, nil
	})

	// f2's input is wired from f1's output, but f1's input is wired from
	// f2's output: a manual cycle. Whichever filter is first-encountered,
	// its own input refers to a slot produced by a later-instantiated
	// filter, which must be rejected.
	lib := &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name: "cycle",
				Filters: []FilterInstantiation{
					{Label: "f1", Filter: "Passthrough"},
					{Label: "f2", Filter: "Passthrough"},
				},
				Stages: []Stage{
					{From: Node{Kind: NodeFilter, Label: "f2", Endpoint: "out"}, To: Node{Kind: NodeFilter, Label: "f1", Endpoint: "in"}},
					{From: Node{Kind: NodeFilter, Label: "f1", Endpoint: "out"}, To: Node{Kind: NodeFilter, Label: "f2", Endpoint: "in"}},
				},
			},
		},
		Setup: []Setup{
			{Name: "default", Contexts: []Context{{Pipeline: "cycle"}}},
		},
	}

	_, err := Resolve(lib, 0, registry, 1000, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "back-edge")
}

func Test_Resolve_IdempotentAcrossCalls(t *testing.T) {
	lib := singleChannelToGraphLib()
	registry := NewRegistry()

	rp1, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)
	defer rp1.Stop()

	rp2, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)
	defer rp2.Stop()

	assert.Equal(t, rp1.SlotCount, rp2.SlotCount)
	assert.Equal(t, rp1.ChannelSlot, rp2.ChannelSlot)
	assert.Equal(t, len(rp1.GraphSinks), len(rp2.GraphSinks))
}

// Test_Resolve_MultipleContextsReuseSamePipeline checks that two setup
// contexts binding the same named pipeline to different channels each get
// their own filter instances and slots, rather than the second context
// colliding with the first's already-wired endpoints.
func Test_Resolve_MultipleContextsReuseSamePipeline(t *testing.T) {
	lib := &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name:    "deriv",
				Filters: []FilterInstantiation{{Label: "d1", Filter: "Derivative"}},
				Stages: []Stage{
					{From: Node{Kind: NodeChannel, Label: "ch"}, To: Node{Kind: NodeFilter, Label: "d1", Endpoint: "in"}},
					{From: Node{Kind: NodeFilter, Label: "d1", Endpoint: "out"}, To: Node{Kind: NodeGraph, Label: "g"}},
				},
			},
		},
		Setup: []Setup{
			{
				Name: "default",
				Contexts: []Context{
					{
						Pipeline: "deriv",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 0}},
						Graphs:   []GraphBinding{{Label: "g", Colour: GraphColour{Kind: ColourRGB}}},
					},
					{
						Pipeline: "deriv",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 1}},
						Graphs:   []GraphBinding{{Label: "g", Colour: GraphColour{Kind: ColourRGB}}},
					},
				},
			},
		},
	}
	registry := NewRegistry()

	rp, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)
	defer rp.Stop()

	require.Len(t, rp.Filters, 2, "each context reusing the same pipeline name must get its own filter instance")
	require.Len(t, rp.GraphSinks, 2)
	assert.NotEqual(t, rp.GraphSinks[0].Slot, rp.GraphSinks[1].Slot, "each context's graph sink must read from its own channel's derivative, not share a slot")
	assert.NotEqual(t, rp.ChannelSlot[0], rp.ChannelSlot[1])
	assert.NotEqual(t, rp.GraphSinks[0].Slot, rp.ChannelSlot[0], "the sink reads the filter's output slot, not the raw channel slot")
	assert.NotEqual(t, rp.GraphSinks[1].Slot, rp.ChannelSlot[1], "the sink reads the filter's output slot, not the raw channel slot")
}

// Test_Resolve_RapidIdempotentAcrossCalls property-checks that resolving
// the same randomly-generated library twice (same setup, same registry)
// always yields the same slot count, channel-to-slot assignment, and
// graph sink count, for pipelines of varying channel count and
// per-channel filter-chain length.
func Test_Resolve_RapidIdempotentAcrossCalls(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channelCount := rapid.IntRange(1, 4).Draw(t, "channelCount")

		var stages []Stage
		var channels []ChannelBinding
		var graphs []GraphBinding
		var filters []FilterInstantiation
		for ci := 0; ci < channelCount; ci++ {
			chLabel := fmt.Sprintf("ch%d", ci)
			channels = append(channels, ChannelBinding{Label: chLabel, ChannelIndex: ci})

			chainLen := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("chainLen%d", ci))
			from := Node{Kind: NodeChannel, Label: chLabel}
			for fi := 0; fi < chainLen; fi++ {
				label := fmt.Sprintf("d%d_%d", ci, fi)
				filters = append(filters, FilterInstantiation{Label: label, Filter: "Derivative"})
				stages = append(stages, Stage{From: from, To: Node{Kind: NodeFilter, Label: label, Endpoint: "in"}})
				from = Node{Kind: NodeFilter, Label: label, Endpoint: "out"}
			}

			graphLabel := fmt.Sprintf("g%d", ci)
			stages = append(stages, Stage{From: from, To: Node{Kind: NodeGraph, Label: graphLabel}})
			graphs = append(graphs, GraphBinding{Label: graphLabel, Colour: GraphColour{Kind: ColourRGB}})
		}

		lib := &LibraryFile{
			Pipelines: []PipelineDef{{Name: "p", Filters: filters, Stages: stages}},
			Setup: []Setup{
				{Name: "default", Contexts: []Context{{Pipeline: "p", Channels: channels, Graphs: graphs}}},
			},
		}
		registry := NewRegistry()

		rp1, err := Resolve(lib, 0, registry, 1000, nil)
		if err != nil {
			t.Fatalf("resolve 1: %v", err)
		}
		defer rp1.Stop()

		rp2, err := Resolve(lib, 0, registry, 1000, nil)
		if err != nil {
			t.Fatalf("resolve 2: %v", err)
		}
		defer rp2.Stop()

		if rp1.SlotCount != rp2.SlotCount {
			t.Fatalf("slot count differs: %d vs %d", rp1.SlotCount, rp2.SlotCount)
		}
		if len(rp1.ChannelSlot) != len(rp2.ChannelSlot) {
			t.Fatalf("channel slot map sizes differ")
		}
		for ch, slot := range rp1.ChannelSlot {
			if rp2.ChannelSlot[ch] != slot {
				t.Fatalf("channel %d slot differs: %d vs %d", ch, slot, rp2.ChannelSlot[ch])
			}
		}
		if len(rp1.GraphSinks) != len(rp2.GraphSinks) {
			t.Fatalf("graph sink count differs: %d vs %d", len(rp1.GraphSinks), len(rp2.GraphSinks))
		}
	})
}

type noopFilter struct{ out int }

func (n *noopFilter) Proc(values []Value) { values[n.out] = Uint32Value(0) }
func (n *noopFilter) Fini()               {}
