package dpp

import (
	"encoding/binary"
	"fmt"
)

// MessageType enumerates the device<->host wire message types. Numeric
// ordering is an ABI commitment (spec.md §4.1) — never reorder, only append.
type MessageType byte

const (
	MsgResponse MessageType = iota
	MsgLED
	MsgSourceConfig
	MsgChannelConfig
	MsgSourceCapReq
	MsgSourceCap
	MsgStart
	MsgAbort
	MsgVersionReq
	MsgVersion
	MsgSampleData16
	MsgSampleData32
)

func (t MessageType) String() string {
	switch t {
	case MsgResponse:
		return "Response"
	case MsgLED:
		return "LED"
	case MsgSourceConfig:
		return "SourceConfig"
	case MsgChannelConfig:
		return "ChannelConfig"
	case MsgSourceCapReq:
		return "SourceCapReq"
	case MsgSourceCap:
		return "SourceCap"
	case MsgStart:
		return "Start"
	case MsgAbort:
		return "Abort"
	case MsgVersionReq:
		return "VersionReq"
	case MsgVersion:
		return "Version"
	case MsgSampleData16:
		return "SampleData16"
	case MsgSampleData32:
		return "SampleData32"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// ErrorCode enumerates Response.ErrorCode values (spec.md §4.1).
type ErrorCode uint16

const (
	ErrSuccess ErrorCode = iota
	ErrOutOfRange
	ErrBadMessageType
	ErrBadMessageLength
	ErrBadSourceMask
	ErrActiveAcquisition
	ErrBadFrequency
)

func (e ErrorCode) String() string {
	switch e {
	case ErrSuccess:
		return "Success"
	case ErrOutOfRange:
		return "OutOfRange"
	case ErrBadMessageType:
		return "BadMessageType"
	case ErrBadMessageLength:
		return "BadMessageLength"
	case ErrBadSourceMask:
		return "BadSourceMask"
	case ErrActiveAcquisition:
		return "ActiveAcquisition"
	case ErrBadFrequency:
		return "BadFrequency"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint16(e))
	}
}

// DecodeErrorKind classifies a decode failure (spec.md §4.1).
type DecodeErrorKind int

const (
	DecodeIncomplete DecodeErrorKind = iota
	DecodeUnknownType
	DecodeBadLength
)

// DecodeError is returned by Decode on a malformed or incomplete frame.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
}

func (e *DecodeError) Error() string { return e.Msg }

func decodeErr(kind DecodeErrorKind, format string, args ...any) error {
	return &DecodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

var byteOrder = binary.LittleEndian

// Message payload types, one per MessageType. Every field width is exactly
// as specified in spec.md §4.1; an implementation must honor them exactly.

type ResponseMsg struct {
	ResponseTo MessageType
	ErrorCode  ErrorCode
}

type LEDMsg struct {
	LEDMask uint16
}

type SourceConfigMsg struct {
	Source        byte
	OpampGain     byte
	OpampOffset   uint16
	SWOversample  uint16
	HWOversample  byte
	HWShift       byte
}

type ChannelConfigMsg struct {
	Channel  byte
	Source   byte
	Shift    byte
	Offset   uint32
	Sample32 byte
}

type SourceCapReqMsg struct {
	Source byte
}

// MaxOpampGains is the fixed size of SourceCapMsg.OpampGain (spec.md §4.1).
const MaxOpampGains = 6

type SourceCapMsg struct {
	Source          byte
	HWOversample    bool
	OpampOffset     bool
	OpampGainCount  byte
	OpampGain       [MaxOpampGains]byte
}

type StartMsg struct {
	DetectionMode byte
	FlashMode     byte
	Frequency     uint16
	LEDMask       uint16
	SrcMask       uint16
}

type AbortMsg struct{}

// VersionCommitWords is the fixed word count of the commit SHA payload.
const VersionCommitWords = 5

type VersionMsg struct {
	Revision  byte
	CommitSHA [VersionCommitWords]uint32
}

// SampleDataMsg carries either 16- or 32-bit samples; Width16 selects which.
// Raw aliases the decoded payload range of the buffer Decode was given —
// Decode does not copy the sample payload. Use Sample(i) to read a value.
type SampleDataMsg struct {
	Width16  bool
	Channel  byte
	Count    byte
	Reserved uint16
	Raw      []byte
}

// Sample returns the i'th sample (0 <= i < Count) as an unsigned Value,
// decoding it from Raw on demand.
func (m *SampleDataMsg) Sample(i int) Value {
	width := 2
	if !m.Width16 {
		width = 4
	}
	b := m.Raw[i*width : i*width+width]
	if m.Width16 {
		return Uint32Value(uint32(readU16(b)))
	}
	return Uint32Value(readU32(b))
}

// Message is the decoded union: exactly one of the typed fields is
// populated, selected by Type.
type Message struct {
	Type         MessageType
	Response     *ResponseMsg
	LED          *LEDMsg
	SourceConfig *SourceConfigMsg
	ChannelConfig *ChannelConfigMsg
	SourceCapReq *SourceCapReqMsg
	SourceCap    *SourceCapMsg
	Start        *StartMsg
	Abort        *AbortMsg
	VersionReq   *VersionMsg // same shape and wire payload (revision + commit words) as Version
	Version      *VersionMsg
	SampleData   *SampleDataMsg
}

// fixedLen returns the payload length (excluding the 1-byte type header)
// for message types whose length is fully determined by Type. Sample-data
// and VersionReq/Version are handled separately.
func fixedLen(t MessageType) (int, bool) {
	switch t {
	case MsgResponse:
		return 1 + 2, true
	case MsgLED:
		return 2, true
	case MsgSourceConfig:
		return 1 + 1 + 2 + 2 + 1 + 1, true
	case MsgChannelConfig:
		return 1 + 1 + 1 + 4 + 1, true
	case MsgSourceCapReq:
		return 1, true
	case MsgSourceCap:
		return 1 + 1 + 1 + 1 + MaxOpampGains, true
	case MsgStart:
		return 1 + 1 + 2 + 2 + 2, true
	case MsgAbort:
		return 0, true
	default:
		return 0, false
	}
}

// Encode appends the wire encoding of msg to buf and returns the result.
func Encode(buf []byte, msg Message) ([]byte, error) {
	buf = append(buf, byte(msg.Type))
	switch msg.Type {
	case MsgResponse:
		m := msg.Response
		buf = append(buf, byte(m.ResponseTo))
		buf = appendU16(buf, uint16(m.ErrorCode))
	case MsgLED:
		buf = appendU16(buf, msg.LED.LEDMask)
	case MsgSourceConfig:
		m := msg.SourceConfig
		buf = append(buf, m.Source, m.OpampGain)
		buf = appendU16(buf, m.OpampOffset)
		buf = appendU16(buf, m.SWOversample)
		buf = append(buf, m.HWOversample, m.HWShift)
	case MsgChannelConfig:
		m := msg.ChannelConfig
		buf = append(buf, m.Channel, m.Source, m.Shift)
		buf = appendU32(buf, m.Offset)
		buf = append(buf, m.Sample32)
	case MsgSourceCapReq:
		buf = append(buf, msg.SourceCapReq.Source)
	case MsgSourceCap:
		m := msg.SourceCap
		buf = append(buf, m.Source, boolByte(m.HWOversample), boolByte(m.OpampOffset), m.OpampGainCount)
		buf = append(buf, m.OpampGain[:]...)
	case MsgStart:
		m := msg.Start
		buf = append(buf, m.DetectionMode, m.FlashMode)
		buf = appendU16(buf, m.Frequency)
		buf = appendU16(buf, m.LEDMask)
		buf = appendU16(buf, m.SrcMask)
	case MsgAbort:
		// no payload
	case MsgVersionReq:
		buf = append(buf, msg.VersionReq.Revision)
		for _, w := range msg.VersionReq.CommitSHA {
			buf = appendU32(buf, w)
		}
	case MsgVersion:
		buf = append(buf, msg.Version.Revision)
		for _, w := range msg.Version.CommitSHA {
			buf = appendU32(buf, w)
		}
	case MsgSampleData16, MsgSampleData32:
		m := msg.SampleData
		buf = append(buf, m.Channel, m.Count)
		buf = appendU16(buf, m.Reserved)
		buf = append(buf, m.Raw...)
	default:
		return nil, fmt.Errorf("dpp: encode: unknown message type %v", msg.Type)
	}
	return buf, nil
}

// Decode parses a single message from the front of buf. It returns the
// decoded message and the number of bytes consumed, or a *DecodeError.
// Every decoded message allocates its typed payload struct (the pointer
// field of Message); for sample messages Raw aliases buf, so the sample
// payload itself is not copied.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < 1 {
		return Message{}, 0, decodeErr(DecodeIncomplete, "dpp: empty buffer")
	}
	t := MessageType(buf[0])

	if n, ok := fixedLen(t); ok {
		total := 1 + n
		if len(buf) < total {
			return Message{}, 0, decodeErr(DecodeIncomplete, "dpp: need %d bytes for %v, have %d", total, t, len(buf))
		}
		p := buf[1:total]
		msg := Message{Type: t}
		switch t {
		case MsgResponse:
			msg.Response = &ResponseMsg{ResponseTo: MessageType(p[0]), ErrorCode: ErrorCode(readU16(p[1:3]))}
		case MsgLED:
			msg.LED = &LEDMsg{LEDMask: readU16(p[0:2])}
		case MsgSourceConfig:
			msg.SourceConfig = &SourceConfigMsg{
				Source: p[0], OpampGain: p[1],
				OpampOffset: readU16(p[2:4]), SWOversample: readU16(p[4:6]),
				HWOversample: p[6], HWShift: p[7],
			}
		case MsgChannelConfig:
			msg.ChannelConfig = &ChannelConfigMsg{
				Channel: p[0], Source: p[1], Shift: p[2],
				Offset: readU32(p[3:7]), Sample32: p[7],
			}
		case MsgSourceCapReq:
			msg.SourceCapReq = &SourceCapReqMsg{Source: p[0]}
		case MsgSourceCap:
			m := &SourceCapMsg{
				Source: p[0], HWOversample: p[1] != 0, OpampOffset: p[2] != 0, OpampGainCount: p[3],
			}
			copy(m.OpampGain[:], p[4:4+MaxOpampGains])
			msg.SourceCap = m
		case MsgStart:
			msg.Start = &StartMsg{
				DetectionMode: p[0], FlashMode: p[1],
				Frequency: readU16(p[2:4]), LEDMask: readU16(p[4:6]), SrcMask: readU16(p[6:8]),
			}
		case MsgAbort:
			msg.Abort = &AbortMsg{}
		}
		return msg, total, nil
	}

	switch t {
	case MsgVersionReq, MsgVersion:
		need := 1 + 1 + VersionCommitWords*4
		if len(buf) < need {
			return Message{}, 0, decodeErr(DecodeIncomplete, "dpp: need %d bytes for %v, have %d", need, t, len(buf))
		}
		p := buf[1:need]
		v := &VersionMsg{Revision: p[0]}
		for i := 0; i < VersionCommitWords; i++ {
			v.CommitSHA[i] = readU32(p[1+i*4 : 5+i*4])
		}
		msg := Message{Type: t}
		if t == MsgVersionReq {
			msg.VersionReq = v
		} else {
			msg.Version = v
		}
		return msg, need, nil

	case MsgSampleData16, MsgSampleData32:
		const headerLen = 1 + 1 + 2 // channel, count, reserved
		if len(buf) < 1+headerLen {
			return Message{}, 0, decodeErr(DecodeIncomplete, "dpp: need %d bytes for %v header, have %d", 1+headerLen, t, len(buf))
		}
		channel := buf[1]
		count := buf[2]
		reserved := readU16(buf[3:5])
		width := 2
		if t == MsgSampleData32 {
			width = 4
		}
		total := 1 + headerLen + int(count)*width
		if len(buf) < total {
			return Message{}, 0, decodeErr(DecodeIncomplete, "dpp: need %d bytes for %v payload, have %d", total, t, len(buf))
		}
		payload := buf[1+headerLen : total]
		m := &SampleDataMsg{Width16: t == MsgSampleData16, Channel: channel, Count: count, Reserved: reserved, Raw: payload}
		return Message{Type: t, SampleData: m}, total, nil

	default:
		return Message{}, 0, decodeErr(DecodeUnknownType, "dpp: unknown message type %d", byte(t))
	}
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	byteOrder.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readU16(b []byte) uint16 { return byteOrder.Uint16(b) }
func readU32(b []byte) uint32 { return byteOrder.Uint32(b) }

// NewSampleData16 builds a SampleDataMsg carrying 16-bit samples, encoding
// them into a fresh Raw buffer (for constructing outbound messages; Decode
// never goes through this path).
func NewSampleData16(channel byte, samples []uint16) *SampleDataMsg {
	raw := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		raw = appendU16(raw, s)
	}
	return &SampleDataMsg{Width16: true, Channel: channel, Count: byte(len(samples)), Raw: raw}
}

// NewSampleData32 builds a SampleDataMsg carrying 32-bit samples.
func NewSampleData32(channel byte, samples []uint32) *SampleDataMsg {
	raw := make([]byte, 0, len(samples)*4)
	for _, s := range samples {
		raw = appendU32(raw, s)
	}
	return &SampleDataMsg{Width16: false, Channel: channel, Count: byte(len(samples)), Raw: raw}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
