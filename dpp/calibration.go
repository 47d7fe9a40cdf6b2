package dpp

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// SourceCapabilities describes what a source's analog front-end supports,
// as learned from a SourceCap response (spec.md §4.1, §4.5).
type SourceCapabilities struct {
	HWOversample bool
	OpampOffset  bool
	OpampGains   []byte // published gain steps, ascending
}

// ChannelConfigInput is the per-channel configuration already in effect
// when calibration starts (used for hw_oversample/hw_shift/sw_oversample,
// which calibration does not itself derive — it only derives gain/offset
// and shift/offset on top of the existing oversample settings).
type ChannelConfigInput struct {
	Channel      byte
	Source       byte
	HWOversample byte
	HWShift      byte
	SWOversample uint16
}

// channelStats is the per-channel running state accumulated during
// calibration (spec.md §4.5).
type channelStats struct {
	source       byte
	ticksSeen    int
	sampleCount  int
	sampleMin    uint32
	sampleMax    uint32
}

// CalibrationEngine observes per-channel samples and, in Finalize, derives
// analog (per-source) and digital (per-channel) device configuration.
// It implements the same tick-driven role as Engine but replaces the
// filter pipeline with pure statistics accumulation (spec.md §4.5).
type CalibrationEngine struct {
	frequencyHz     float64
	stabiliseTicks  int
	channels        map[byte]*channelStats // by channel number
	channelInputs   map[byte]ChannelConfigInput
	sourceCaps      map[byte]SourceCapabilities
	logger          *log.Logger
}

// NewCalibrationEngine constructs a calibration sink for the given
// acquisition frequency. inputs describes the channels in use; caps
// describes each distinct source's capabilities (from SourceCap
// responses gathered before Start). The leading 2*frequencyHz ticks per
// channel are discarded for signal stabilisation (spec.md §4.5).
func NewCalibrationEngine(frequencyHz float64, inputs []ChannelConfigInput, caps map[byte]SourceCapabilities, logger *log.Logger) *CalibrationEngine {
	if logger == nil {
		logger = log.Default()
	}
	c := &CalibrationEngine{
		frequencyHz:    frequencyHz,
		stabiliseTicks: int(2 * frequencyHz),
		channels:       map[byte]*channelStats{},
		channelInputs:  map[byte]ChannelConfigInput{},
		sourceCaps:     caps,
		logger:         logger,
	}
	for _, in := range inputs {
		c.channelInputs[in.Channel] = in
		c.channels[in.Channel] = &channelStats{source: in.Source, sampleMin: math32Max, sampleMax: 0}
	}
	return c
}

const math32Max uint32 = 0xFFFFFFFF

// PushSample records one sample for channel (spec.md §4.5: discard the
// first 2*frequency ticks, thereafter track min/max).
func (c *CalibrationEngine) PushSample(channel byte, sample uint32) {
	st, ok := c.channels[channel]
	if !ok {
		return
	}
	st.ticksSeen++
	if st.ticksSeen <= c.stabiliseTicks {
		return
	}
	st.sampleCount++
	if sample < st.sampleMin {
		st.sampleMin = sample
	}
	if sample > st.sampleMax {
		st.sampleMax = sample
	}
}

// AnalogCalibration is the derived per-source configuration
// (spec.md §4.5 stage 1).
type AnalogCalibration struct {
	Source      byte
	OpampGain   byte
	OpampOffset uint16
	HWScale     uint
}

// DigitalCalibration is the derived per-channel configuration
// (spec.md §4.5 stage 2).
type DigitalCalibration struct {
	Channel byte
	Shift   byte
	Offset  uint32
	Min, Max uint32 // observed range, for diagnostics
}

// CalibrationResult is the full output of Finalize.
type CalibrationResult struct {
	Analog  []AnalogCalibration
	Digital []DigitalCalibration
}

// Finalize computes analog calibration once per distinct source, from the
// union of every wired channel's observed range on that source (spec.md
// §4.5: analog calibration is "shared across all channels using that
// source", so its gain/offset must cover every channel's signal, not just
// whichever channel happens to be processed first), and digital
// calibration per channel. Channels with no observed samples are skipped
// and logged.
func (c *CalibrationEngine) Finalize() CalibrationResult {
	var result CalibrationResult

	// Stable iteration order for deterministic output in tests: sort by
	// channel number.
	channelNums := make([]byte, 0, len(c.channels))
	for ch := range c.channels {
		channelNums = append(channelNums, ch)
	}
	sortBytes(channelNums)

	// Union each source's observed range across every channel wired to it
	// before deriving analog calibration, so a later-numbered channel with
	// a wider range isn't clipped by an earlier channel's narrower one.
	sourceMin := map[byte]uint32{}
	sourceMax := map[byte]uint32{}
	sourceHasSamples := map[byte]bool{}
	for _, ch := range channelNums {
		st := c.channels[ch]
		if st.sampleCount == 0 {
			continue
		}
		if !sourceHasSamples[st.source] || st.sampleMin < sourceMin[st.source] {
			sourceMin[st.source] = st.sampleMin
		}
		if !sourceHasSamples[st.source] || st.sampleMax > sourceMax[st.source] {
			sourceMax[st.source] = st.sampleMax
		}
		sourceHasSamples[st.source] = true
	}

	analogBySource := map[byte]AnalogCalibration{}
	for _, ch := range channelNums {
		st := c.channels[ch]
		if st.sampleCount == 0 {
			c.logger.Warn("calibration: no samples observed after stabilisation", "channel", ch)
			continue
		}
		in := c.channelInputs[ch]
		caps := c.sourceCaps[st.source]

		analog, ok := analogBySource[st.source]
		if !ok {
			analog = computeAnalog(st.source, sourceMin[st.source], sourceMax[st.source], in, caps)
			analogBySource[st.source] = analog
			result.Analog = append(result.Analog, analog)
		}

		digital := computeDigital(ch, st.sampleMin, st.sampleMax, in, caps, analog)
		result.Digital = append(result.Digital, digital)
	}
	return result
}

func computeAnalog(source byte, min, max uint32, in ChannelConfigInput, caps SourceCapabilities) AnalogCalibration {
	hwScale := uint(in.HWOversample) - uint(in.HWShift)

	// Apply a 10% margin, then clamp to [0, 4095 << hwScale].
	span := max - min
	margin := span / 10
	if min > margin {
		min -= margin
	} else {
		min = 0
	}
	max += margin
	ceiling := uint32(4095) << hwScale
	if max > ceiling {
		max = ceiling
	}

	mid := (min + max + 1) / 2

	var opampOffset uint16
	if caps.OpampOffset {
		opampOffset = uint16(4095 - (mid >> hwScale))
	} else {
		opampOffset = 2048
	}

	var sourceRange uint32
	if max-mid > mid-min {
		sourceRange = (max - mid) >> hwScale
	} else {
		sourceRange = (mid - min) >> hwScale
	}

	var gain byte
	for _, g := range caps.OpampGains {
		if uint32(sourceRange)*uint32(g) <= 2047 {
			if g >= gain {
				gain = g
			}
		}
	}

	return AnalogCalibration{Source: source, OpampGain: gain, OpampOffset: opampOffset, HWScale: hwScale}
}

func computeDigital(channel byte, min, max uint32, in ChannelConfigInput, caps SourceCapabilities, analog AnalogCalibration) DigitalCalibration {
	hwScale := analog.HWScale
	gain := uint64(analog.OpampGain)
	swOversample := uint64(in.SWOversample)
	if swOversample == 0 {
		swOversample = 1
	}

	var sampleMidOffset uint64
	if caps.OpampOffset {
		sampleMidOffset = (uint64(2048) << hwScale) * swOversample
	} else {
		sampleMidOffset = uint64(min) << hwScale * swOversample
	}

	var targetMax, channelOffset uint64
	if caps.OpampOffset {
		samplePos := uint64(max)
		targetMax = sampleMidOffset + samplePos*gain
		sampleNeg := uint64(min)
		channelOffset = sampleMidOffset - sampleNeg*gain
	} else {
		targetMax = uint64(max) * gain
		channelOffset = uint64(min) * gain
	}

	var shift byte
	for (targetMax-channelOffset)>>shift > 65535 {
		shift++
	}
	remaining := (targetMax - channelOffset) >> shift
	channelOffset -= ((65535 - remaining) / 2) << shift

	return DigitalCalibration{Channel: channel, Shift: shift, Offset: uint32(channelOffset), Min: min, Max: max}
}

func sortBytes(b []byte) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1] > b[j]; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}

// WriteReport persists a timestamped diagnostic report (per-channel
// min/max and derived gains). File names use a strftime pattern so
// reports sort lexically by capture time.
func (c *CalibrationEngine) WriteReport(dir string, at time.Time, result CalibrationResult) (string, error) {
	pattern, err := strftime.New("%Y%m%d-%H%M%S-calibration.txt")
	if err != nil {
		return "", err
	}
	name := pattern.FormatString(at)
	path := dir + "/" + name
	var body string
	for _, a := range result.Analog {
		body += fmt.Sprintf("source %d: gain=%d offset=%d hw_scale=%d\n", a.Source, a.OpampGain, a.OpampOffset, a.HWScale)
	}
	for _, d := range result.Digital {
		body += fmt.Sprintf("channel %d: shift=%d offset=%d min=%d max=%d\n", d.Channel, d.Shift, d.Offset, d.Min, d.Max)
	}
	return path, os.WriteFile(path, []byte(body), 0o644)
}
