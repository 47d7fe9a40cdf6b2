package dpp

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// textMessage is the canonical YAML-like textual form of Message, used by
// the CLI tools (spec.md §6) to emit and ingest messages for interchange.
// Field order is fixed per type so encode-then-decode round-trips byte
// for byte modulo whitespace.
type textMessage struct {
	Type string `yaml:"type"`

	ResponseTo string `yaml:"response_to,omitempty"`
	ErrorCode  string `yaml:"error_code,omitempty"`

	LEDMask *uint16 `yaml:"led_mask,omitempty"`

	Source        *byte   `yaml:"source,omitempty"`
	OpampGain     *byte   `yaml:"opamp_gain,omitempty"`
	OpampOffset   *uint16 `yaml:"opamp_offset,omitempty"`
	SWOversample  *uint16 `yaml:"sw_oversample,omitempty"`
	HWOversample  *byte   `yaml:"hw_oversample,omitempty"`
	HWShift       *byte   `yaml:"hw_shift,omitempty"`

	Channel  *byte   `yaml:"channel,omitempty"`
	Shift    *byte   `yaml:"shift,omitempty"`
	Offset   *uint32 `yaml:"offset,omitempty"`
	Sample32 *byte   `yaml:"sample32,omitempty"`

	HWOversampleBool *bool  `yaml:"hw_oversample_supported,omitempty"`
	OpampOffsetBool  *bool  `yaml:"opamp_offset_supported,omitempty"`
	OpampGainCount   *byte  `yaml:"opamp_gain_count,omitempty"`
	OpampGains       []byte `yaml:"opamp_gains,omitempty"`

	DetectionMode *byte   `yaml:"detection_mode,omitempty"`
	FlashMode     *byte   `yaml:"flash_mode,omitempty"`
	Frequency     *uint16 `yaml:"frequency,omitempty"`
	SrcMask       *uint16 `yaml:"src_mask,omitempty"`

	Revision  *byte    `yaml:"revision,omitempty"`
	CommitSHA []uint32 `yaml:"commit_sha,omitempty"`

	Count    *byte    `yaml:"count,omitempty"`
	Reserved *uint16  `yaml:"reserved,omitempty"`
	Data     []uint32 `yaml:"data,omitempty"`
}

// EncodeText renders msg in the canonical YAML-like textual form.
func EncodeText(msg Message) (string, error) {
	tm := textMessage{Type: msg.Type.String()}
	switch msg.Type {
	case MsgResponse:
		tm.ResponseTo = msg.Response.ResponseTo.String()
		tm.ErrorCode = msg.Response.ErrorCode.String()
	case MsgLED:
		tm.LEDMask = &msg.LED.LEDMask
	case MsgSourceConfig:
		m := msg.SourceConfig
		tm.Source, tm.OpampGain = &m.Source, &m.OpampGain
		tm.OpampOffset, tm.SWOversample = &m.OpampOffset, &m.SWOversample
		tm.HWOversample, tm.HWShift = &m.HWOversample, &m.HWShift
	case MsgChannelConfig:
		m := msg.ChannelConfig
		tm.Channel, tm.Source, tm.Shift = &m.Channel, &m.Source, &m.Shift
		tm.Offset, tm.Sample32 = &m.Offset, &m.Sample32
	case MsgSourceCapReq:
		tm.Source = &msg.SourceCapReq.Source
	case MsgSourceCap:
		m := msg.SourceCap
		tm.Source = &m.Source
		tm.HWOversampleBool, tm.OpampOffsetBool = &m.HWOversample, &m.OpampOffset
		tm.OpampGainCount = &m.OpampGainCount
		tm.OpampGains = append([]byte(nil), m.OpampGain[:]...)
	case MsgStart:
		m := msg.Start
		tm.DetectionMode, tm.FlashMode = &m.DetectionMode, &m.FlashMode
		tm.Frequency, tm.LEDMask, tm.SrcMask = &m.Frequency, &m.LEDMask, &m.SrcMask
	case MsgAbort:
		// no fields
	case MsgVersionReq, MsgVersion:
		v := msg.VersionReq
		if v == nil {
			v = msg.Version
		}
		tm.Revision = &v.Revision
		tm.CommitSHA = append([]uint32(nil), v.CommitSHA[:]...)
	case MsgSampleData16, MsgSampleData32:
		m := msg.SampleData
		tm.Channel, tm.Count, tm.Reserved = &m.Channel, &m.Count, &m.Reserved
		data := make([]uint32, m.Count)
		for i := range data {
			data[i] = m.Sample(i).AsUint32()
		}
		tm.Data = data
	default:
		return "", fmt.Errorf("dpp: encode text: unknown message type %v", msg.Type)
	}
	out, err := yaml.Marshal(tm)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeText parses the canonical YAML-like textual form back into a Message.
func DecodeText(text string) (Message, error) {
	var tm textMessage
	if err := yaml.Unmarshal([]byte(text), &tm); err != nil {
		return Message{}, err
	}
	t, err := messageTypeFromString(tm.Type)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Type: t}
	switch t {
	case MsgResponse:
		respTo, err := messageTypeFromString(tm.ResponseTo)
		if err != nil {
			return Message{}, err
		}
		code, err := errorCodeFromString(tm.ErrorCode)
		if err != nil {
			return Message{}, err
		}
		msg.Response = &ResponseMsg{ResponseTo: respTo, ErrorCode: code}
	case MsgLED:
		msg.LED = &LEDMsg{LEDMask: derefU16(tm.LEDMask)}
	case MsgSourceConfig:
		msg.SourceConfig = &SourceConfigMsg{
			Source: derefByte(tm.Source), OpampGain: derefByte(tm.OpampGain),
			OpampOffset: derefU16(tm.OpampOffset), SWOversample: derefU16(tm.SWOversample),
			HWOversample: derefByte(tm.HWOversample), HWShift: derefByte(tm.HWShift),
		}
	case MsgChannelConfig:
		msg.ChannelConfig = &ChannelConfigMsg{
			Channel: derefByte(tm.Channel), Source: derefByte(tm.Source), Shift: derefByte(tm.Shift),
			Offset: derefU32(tm.Offset), Sample32: derefByte(tm.Sample32),
		}
	case MsgSourceCapReq:
		msg.SourceCapReq = &SourceCapReqMsg{Source: derefByte(tm.Source)}
	case MsgSourceCap:
		m := &SourceCapMsg{
			Source: derefByte(tm.Source), HWOversample: derefBool(tm.HWOversampleBool),
			OpampOffset: derefBool(tm.OpampOffsetBool), OpampGainCount: derefByte(tm.OpampGainCount),
		}
		copy(m.OpampGain[:], tm.OpampGains)
		msg.SourceCap = m
	case MsgStart:
		msg.Start = &StartMsg{
			DetectionMode: derefByte(tm.DetectionMode), FlashMode: derefByte(tm.FlashMode),
			Frequency: derefU16(tm.Frequency), LEDMask: derefU16(tm.LEDMask), SrcMask: derefU16(tm.SrcMask),
		}
	case MsgAbort:
		msg.Abort = &AbortMsg{}
	case MsgVersionReq, MsgVersion:
		v := &VersionMsg{Revision: derefByte(tm.Revision)}
		copy(v.CommitSHA[:], tm.CommitSHA)
		if t == MsgVersionReq {
			msg.VersionReq = v
		} else {
			msg.Version = v
		}
	case MsgSampleData16, MsgSampleData32:
		count := derefByte(tm.Count)
		if t == MsgSampleData16 {
			samples := make([]uint16, count)
			for i, d := range tm.Data {
				samples[i] = uint16(d)
			}
			msg.SampleData = NewSampleData16(derefByte(tm.Channel), samples)
		} else {
			msg.SampleData = NewSampleData32(derefByte(tm.Channel), tm.Data)
		}
		msg.SampleData.Reserved = derefU16(tm.Reserved)
	default:
		return Message{}, fmt.Errorf("dpp: decode text: unknown message type %q", tm.Type)
	}
	return msg, nil
}

func messageTypeFromString(s string) (MessageType, error) {
	for t := MsgResponse; t <= MsgSampleData32; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("dpp: unknown message type name %q", s)
}

func errorCodeFromString(s string) (ErrorCode, error) {
	for e := ErrSuccess; e <= ErrBadFrequency; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("dpp: unknown error code name %q", s)
}

func derefByte(p *byte) byte {
	if p == nil {
		return 0
	}
	return *p
}
func derefU16(p *uint16) uint16 {
	if p == nil {
		return 0
	}
	return *p
}
func derefU32(p *uint32) uint32 {
	if p == nil {
		return 0
	}
	return *p
}
func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
