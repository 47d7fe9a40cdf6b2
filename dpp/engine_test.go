package dpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink implements GraphSinkHandle, recording every pushed value in
// order for assertions.
type recordingSink struct{ values []uint32 }

func (r *recordingSink) Push(v Value) { r.values = append(r.values, v.AsUint32()) }

func Test_Engine_SingleChannelPassthrough(t *testing.T) {
	lib := singleChannelToGraphLib()
	registry := NewRegistry()

	rp, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	engine := NewEngine(rp, func(GraphSink) GraphSinkHandle { return sink })
	defer engine.Stop()

	for i := 0; i < 10; i++ {
		engine.SetChannelSample(0, uint32(100+i))
		engine.Tick()
	}

	want := []uint32{100, 101, 102, 103, 104, 105, 106, 107, 108, 109}
	assert.Equal(t, want, sink.values)
}

func Test_Engine_ChannelDerivativeGraph(t *testing.T) {
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
						Graphs:   []GraphBinding{{Label: "g"}},
					},
				},
			},
		},
	}
	registry := NewRegistry()
	rp, err := Resolve(lib, 0, registry, 1000, nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	engine := NewEngine(rp, func(GraphSink) GraphSinkHandle { return sink })
	defer engine.Stop()

	for _, in := range []uint32{10, 20, 35, 35} {
		engine.SetChannelSample(0, in)
		engine.Tick()
	}

	want := []uint32{Int32Max, Int32Max + 10, Int32Max + 15, Int32Max}
	assert.Equal(t, want, sink.values)
}

func averageToGraphLib(normalise bool) *LibraryFile {
	return &LibraryFile{
		Pipelines: []PipelineDef{
			{
				Name: "avg",
				Filters: []FilterInstantiation{
					{Label: "a1", Filter: "Average", Parameters: []Parameter{
						{Name: "frequency", Value: Float64Value(1)},
						{Name: "normalise", Value: BoolValue(normalise)},
					}},
				},
				Stages: []Stage{
					{From: Node{Kind: NodeChannel, Label: "ch"}, To: Node{Kind: NodeFilter, Label: "a1", Endpoint: "in"}},
					{From: Node{Kind: NodeFilter, Label: "a1", Endpoint: "out"}, To: Node{Kind: NodeGraph, Label: "g"}},
				},
			},
		},
		Setup: []Setup{
			{
				Name: "default",
				Contexts: []Context{
					{
						Pipeline: "avg",
						Channels: []ChannelBinding{{Label: "ch", ChannelIndex: 0}},
						Graphs:   []GraphBinding{{Label: "g"}},
					},
				},
			},
		},
	}
}

func Test_Engine_ChannelAverageNonNormalising(t *testing.T) {
	registry := NewRegistry()
	rp, err := Resolve(averageToGraphLib(false), 0, registry, 4, nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	engine := NewEngine(rp, func(GraphSink) GraphSinkHandle { return sink })
	defer engine.Stop()

	for _, in := range []uint32{4, 8, 12, 16, 100} {
		engine.SetChannelSample(0, in)
		engine.Tick()
	}

	assert.Equal(t, []uint32{4, 6, 8, 10, 34}, sink.values)
}

func Test_Engine_ChannelAverageNormalising(t *testing.T) {
	registry := NewRegistry()
	rp, err := Resolve(averageToGraphLib(true), 0, registry, 4, nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	engine := NewEngine(rp, func(GraphSink) GraphSinkHandle { return sink })
	defer engine.Stop()

	for _, in := range []uint32{4, 8, 12, 16, 100} {
		engine.SetChannelSample(0, in)
		engine.Tick()
	}

	want := []uint32{Int32Max, Int32Max + 2, Int32Max + 4, Int32Max + 6, Int32Max + 66}
	assert.Equal(t, want, sink.values)
}
