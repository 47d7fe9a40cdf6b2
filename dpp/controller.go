// Package dpp's Controller owns the device session state machine. Inbound
// samples are not pushed into the pipeline engine one slot at a time as
// they arrive; per spec.md §9's open question on cross-channel sample
// assembly, this implementation takes the stated safe default: the
// controller buffers each enabled channel's incoming samples in a small
// FIFO and advances the engine exactly once per tick, only once every
// enabled channel has contributed a fresh sample for that tick.
package dpp

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// State is the acquisition controller's lifecycle state (spec.md §4.6).
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateActive
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfiguring:
		return "Configuring"
	case StateActive:
		return "Active"
	case StateAborting:
		return "Aborting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// sink abstracts over Engine and CalibrationEngine so the controller can
// drive either without knowing which is active.
type tickSink interface {
	pushSample(channel byte, sample uint32)
	stop()
}

type engineSink struct{ e *Engine }

func (s engineSink) pushSample(channel byte, sample uint32) {
	s.e.SetChannelSample(int(channel), sample)
}
func (s engineSink) stop() { s.e.Stop() }

type calibrationSink struct{ c *CalibrationEngine }

func (s calibrationSink) pushSample(channel byte, sample uint32) { s.c.PushSample(channel, sample) }
func (s calibrationSink) stop()                                  {}

// channelBuffer reassembles per-channel samples into whole-tick advances
// (spec.md §4.6).
type channelBuffer struct {
	fifo    *FIFO
	enabled bool
}

// AbortTimeout is how long after Stop CheckAbortTimeout allows for a
// Response(Abort, success) before forcing a hard teardown (spec.md §5,
// default 10s).
const AbortTimeout = 10 * time.Second

// Controller is the acquisition session state machine: Idle -> Configuring
// -> Active -> Idle, with Active able to move to Aborting on user stop or
// fatal error (spec.md §4.6).
type Controller struct {
	transport io.Writer
	logger    *log.Logger

	state State

	engine      *Engine
	calibration *CalibrationEngine
	sink        tickSink

	channels      map[byte]*channelBuffer
	abortDeadline time.Time
}

// NewController constructs an idle Controller writing outbound wire
// messages to transport. logger may be nil.
func NewController(transport io.Writer, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{transport: transport, logger: logger, state: StateIdle}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return c.state }

func (c *Controller) send(msg Message) error {
	buf, err := Encode(nil, msg)
	if err != nil {
		return err
	}
	_, err = c.transport.Write(buf)
	return err
}

// StartAcquisition resolves setup setupIdx against lib via registry,
// issues the wire configuration sequence, and transitions to Active
// (spec.md §4.6). On any configuration error the controller remains Idle.
func (c *Controller) StartAcquisition(lib *LibraryFile, setupIdx int, registry *Registry, frequencyHz float64, sourceMask, ledMask uint16, configs []ChannelConfigMsg, sourceConfigs []SourceConfigMsg, sinkFor func(GraphSink) GraphSinkHandle) error {
	if c.state != StateIdle {
		return fmt.Errorf("dpp: StartAcquisition: controller not Idle (state=%s)", c.state)
	}
	c.state = StateConfiguring

	pipeline, err := Resolve(lib, setupIdx, registry, frequencyHz, c.logger)
	if err != nil {
		c.logger.Error("pipeline resolve failed", "err", err)
		c.state = StateIdle
		return err
	}

	c.engine = NewEngine(pipeline, sinkFor)
	c.sink = engineSink{c.engine}
	c.resetChannelBuffers(pipeline.ChannelSlot)

	setup, err := lib.FindSetup(setupIdx)
	if err != nil {
		c.engine.Stop()
		c.state = StateIdle
		return err
	}

	if err := c.issueConfigAndStart(sourceConfigs, configs, setup, frequencyHz, sourceMask, ledMask); err != nil {
		c.engine.Stop()
		c.state = StateIdle
		return err
	}

	c.state = StateActive
	c.logger.Info("acquisition started", "setup", setup.Name)
	return nil
}

// StartCalibration instantiates the calibration engine and issues the
// current channel/source configuration, then Start (spec.md §4.6).
func (c *Controller) StartCalibration(frequencyHz float64, inputs []ChannelConfigInput, caps map[byte]SourceCapabilities, setup *Setup, sourceMask, ledMask uint16, configs []ChannelConfigMsg, sourceConfigs []SourceConfigMsg) error {
	if c.state != StateIdle {
		return fmt.Errorf("dpp: StartCalibration: controller not Idle (state=%s)", c.state)
	}
	c.state = StateConfiguring

	c.calibration = NewCalibrationEngine(frequencyHz, inputs, caps, c.logger)
	c.sink = calibrationSink{c.calibration}

	channelSlots := map[int]int{}
	for i, in := range inputs {
		channelSlots[int(in.Channel)] = i
	}
	c.resetChannelBuffers(channelSlots)

	if err := c.issueConfigAndStart(sourceConfigs, configs, setup, frequencyHz, sourceMask, ledMask); err != nil {
		c.calibration = nil
		c.state = StateIdle
		return err
	}

	c.state = StateActive
	c.logger.Info("calibration started")
	return nil
}

func (c *Controller) issueConfigAndStart(sourceConfigs []SourceConfigMsg, configs []ChannelConfigMsg, setup *Setup, frequencyHz float64, sourceMask, ledMask uint16) error {
	for _, sc := range sourceConfigs {
		scCopy := sc
		if err := c.send(Message{Type: MsgSourceConfig, SourceConfig: &scCopy}); err != nil {
			return err
		}
	}
	for _, cc := range configs {
		ccCopy := cc
		if err := c.send(Message{Type: MsgChannelConfig, ChannelConfig: &ccCopy}); err != nil {
			return err
		}
	}
	flashMode := byte(0)
	if setup != nil && setup.Emission == EmissionFlash {
		flashMode = 1
	}
	start := &StartMsg{
		DetectionMode: 0,
		FlashMode:     flashMode,
		Frequency:     uint16(frequencyHz),
		LEDMask:       ledMask,
		SrcMask:       sourceMask,
	}
	return c.send(Message{Type: MsgStart, Start: start})
}

func (c *Controller) resetChannelBuffers(channelSlots map[int]int) {
	c.channels = map[byte]*channelBuffer{}
	for ch := range channelSlots {
		c.channels[byte(ch)] = &channelBuffer{fifo: NewFIFO(16), enabled: true}
	}
}

// Stop sends Abort, moves to Aborting and returns without blocking. The
// active engine is torn down and the controller returns to Idle when
// HandleInbound receives Response(Abort, success), or when
// CheckAbortTimeout finds AbortTimeout has passed (spec.md §4.6, §5). A
// repeat Stop while already Aborting/Idle is a no-op (idempotent).
func (c *Controller) Stop() error {
	if c.state == StateIdle {
		return nil
	}
	if c.state == StateAborting {
		return nil
	}
	c.state = StateAborting
	c.abortDeadline = time.Now().Add(AbortTimeout)
	return c.send(Message{Type: MsgAbort, Abort: &AbortMsg{}})
}

// HandleInbound dispatches one decoded inbound message. Sample messages
// are routed to the active sink via the per-channel tick reassembly
// logic; Response(Abort, success) completes a pending Stop.
func (c *Controller) HandleInbound(msg Message) error {
	switch msg.Type {
	case MsgResponse:
		return c.handleResponse(msg.Response)
	case MsgSampleData16, MsgSampleData32:
		return c.handleSampleData(msg.SampleData)
	default:
		return nil
	}
}

func (c *Controller) handleResponse(r *ResponseMsg) error {
	if r.ResponseTo == MsgAbort {
		if r.ErrorCode == ErrSuccess {
			c.teardown()
			return nil
		}
		c.logger.Warn("abort request rejected by device", "error_code", r.ErrorCode)
		return nil
	}
	if r.ErrorCode != ErrSuccess {
		c.logger.Warn("device rejected request", "response_to", r.ResponseTo, "error_code", r.ErrorCode)
	}
	return nil
}

func (c *Controller) handleSampleData(m *SampleDataMsg) error {
	if c.state == StateAborting {
		// Spec.md §5: additional sample messages arriving after the
		// stop request but before the Abort response are discarded.
		return nil
	}
	if c.state != StateActive {
		return nil
	}
	buf, ok := c.channels[m.Channel]
	if !ok || !buf.enabled {
		return nil
	}

	for i := 0; i < int(m.Count); i++ {
		sample := m.Sample(i).AsUint32()
		if err := buf.fifo.Write(sample); err != nil {
			// Per spec.md §4.8 / §7: a FIFO overflow on the per-sample
			// path is a programming error (sizing is wrong), not a
			// recoverable runtime condition.
			panic(fmt.Sprintf("dpp: channel %d sample FIFO overflow: %v", m.Channel, err))
		}
	}
	c.advanceTicks()
	return nil
}

// advanceTicks drives the active sink once per time step, once every
// enabled channel has a fresh sample buffered (spec.md §4.6).
func (c *Controller) advanceTicks() {
	for {
		for _, buf := range c.channels {
			if buf.enabled && buf.fifo.Empty() {
				return
			}
		}
		for ch, buf := range c.channels {
			if !buf.enabled {
				continue
			}
			sample, _ := buf.fifo.Read()
			c.sink.pushSample(ch, sample)
		}
		if e, ok := c.sink.(engineSink); ok {
			e.e.Tick()
		}
	}
}

// teardown releases the active engine/calibration and returns to Idle.
func (c *Controller) teardown() {
	if c.sink != nil {
		c.sink.stop()
	}
	c.engine = nil
	c.calibration = nil
	c.sink = nil
	c.channels = nil
	c.state = StateIdle
	c.logger.Info("controller torn down, returning to Idle")
}

// CheckAbortTimeout forces a hard teardown if Stop has been waiting
// longer than AbortTimeout without a Response(Abort, success) (spec.md
// §5). Callers drive this from their event loop / timer.
func (c *Controller) CheckAbortTimeout(now time.Time) error {
	if c.state != StateAborting {
		return nil
	}
	if now.Before(c.abortDeadline) {
		return nil
	}
	c.teardown()
	return fmt.Errorf("dpp: abort acknowledgement timed out after %s", AbortTimeout)
}

// FinalizeCalibration returns the derived configuration of the current
// calibration engine; it does not stop the acquisition. It works from
// StartCalibration until teardown (including while Aborting) and returns
// an error otherwise.
func (c *Controller) FinalizeCalibration() (CalibrationResult, error) {
	if c.calibration == nil {
		return CalibrationResult{}, fmt.Errorf("dpp: FinalizeCalibration: no calibration is active")
	}
	return c.calibration.Finalize(), nil
}
