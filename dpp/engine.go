package dpp

// GraphSinkHandle receives one value per tick for a resolved graph sink.
// Implementations are display/visualisation consumers (spec.md's "graphs");
// the engine itself knows nothing about how they render.
type GraphSinkHandle interface {
	Push(value Value)
}

// Engine runs a ResolvedPipeline at every sample tick: copy raw channel
// samples into the leading slots, invoke every instantiated filter in
// registration order, deliver designated output slots to graph sinks.
// It is synchronous, single-threaded, and allocation-free on the per-tick
// path (spec.md §4.4).
type Engine struct {
	pipeline *ResolvedPipeline
	values   []Value
	sinks    []GraphSinkHandle // parallel to pipeline.GraphSinks
}

// NewEngine allocates the pipeline's value buffer once, reused every tick
// and released at Stop (spec.md §3 lifecycle). sinkFor maps each resolved
// GraphSink to the concrete handle that should receive its values; it is
// called once per sink, at construction.
func NewEngine(pipeline *ResolvedPipeline, sinkFor func(GraphSink) GraphSinkHandle) *Engine {
	values := make([]Value, pipeline.SlotCount)
	for i, origin := range pipeline.Origins {
		if origin.Kind == SlotChannel {
			values[i] = Uint32Value(0)
		}
	}
	sinks := make([]GraphSinkHandle, len(pipeline.GraphSinks))
	for i, gs := range pipeline.GraphSinks {
		sinks[i] = sinkFor(gs)
	}
	return &Engine{pipeline: pipeline, values: values, sinks: sinks}
}

// SetChannelSample writes the current sample for acquisition channel
// channelIdx into its interned slot, ahead of the next Tick. No-op if the
// channel isn't used by this pipeline.
func (e *Engine) SetChannelSample(channelIdx int, sample uint32) {
	if slot, ok := e.pipeline.ChannelSlot[channelIdx]; ok {
		e.values[slot] = Uint32Value(sample)
	}
}

// Tick runs every filter once, in execution order, then pushes each graph
// sink's slot value. Channel slots must already hold the tick's samples
// via SetChannelSample.
func (e *Engine) Tick() {
	for _, f := range e.pipeline.Filters {
		f.Proc(e.values)
	}
	for i, gs := range e.pipeline.GraphSinks {
		if e.sinks[i] != nil {
			e.sinks[i].Push(e.values[gs.Slot])
		}
	}
}

// Stop releases the engine's filter instances and drops its value buffer.
// The Engine must not be ticked afterward.
func (e *Engine) Stop() {
	e.pipeline.Stop()
	e.values = nil
}
