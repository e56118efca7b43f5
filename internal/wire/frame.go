// Package wire implements the DI-4108-E command/response/stream wire
// protocol: outbound command framing, inbound frame classification, and
// ADC word decoding.
package wire

import "fmt"

// FrameID tags the variant of an inbound or outbound frame.
type FrameID uint32

const (
	// IDCommand tags every outbound command frame.
	IDCommand FrameID = 0x31415926
	// IDResponse tags an inbound echo of a command.
	IDResponse FrameID = 0x21712818
	// IDADCData tags an inbound stream-data packet.
	IDADCData FrameID = 0x14142135
)

// Command is the outbound command opcode (par1/par2/par3 + payload carry
// the operands; the set below is the subset this driver emits).
type Command uint32

const (
	CmdSyncStart     Command = 1
	CmdSyncStop      Command = 6
	CmdConnect       Command = 10
	CmdDisconnect    Command = 11
	CmdKeepalive     Command = 12
	CmdSecondCommand Command = 13
)

// RangeTag selects the analog input range for a scan-list slot. The value
// occupies bits 15:8 of the slist sub-command's second operand.
type RangeTag uint16

const (
	RangePN10V0 RangeTag = 0 << 8
	RangePN5V0  RangeTag = 1 << 8
	RangePN2V0  RangeTag = 2 << 8
	RangePN1V0  RangeTag = 3 << 8
	RangePN0V5  RangeTag = 4 << 8
	RangePN0V2  RangeTag = 5 << 8
)

// Volts returns the full-scale voltage (±) for a range tag. Unknown tags
// report 0 and false.
func (t RangeTag) Volts() (float64, bool) {
	switch t {
	case RangePN10V0:
		return 10.0, true
	case RangePN5V0:
		return 5.0, true
	case RangePN2V0:
		return 2.0, true
	case RangePN1V0:
		return 1.0, true
	case RangePN0V5:
		return 0.5, true
	case RangePN0V2:
		return 0.2, true
	default:
		return 0, false
	}
}

func (t RangeTag) String() string {
	if v, ok := t.Volts(); ok {
		return fmt.Sprintf("±%gV", v)
	}
	return fmt.Sprintf("RangeTag(0x%04x)", uint16(t))
}

// OutboundFrame is a command frame bound for the logger's command socket.
type OutboundFrame struct {
	ID       FrameID // always IDCommand in practice; kept explicit for round-trip tests
	GroupKey uint32
	Command  Command
	Par1     uint32
	Par2     uint32
	Par3     uint32
	Payload  string
}

// InboundFrame is the sum type of datagrams the data/response socket can
// receive. Exactly one of ResponseFrame, ADCDataFrame, UnknownFrame is
// produced per call to Decode.
type InboundFrame interface {
	frameID() FrameID
}

// ResponseFrame echoes a command's ASCII result.
type ResponseFrame struct {
	GroupKey uint32
	Order    uint32
	Payload  string
}

func (ResponseFrame) frameID() FrameID { return IDResponse }

// ADCDataFrame carries one packet of interleaved ADC sample words.
type ADCDataFrame struct {
	GroupKey         uint32
	Order            uint32
	CumulativeCount  uint32
	PayloadSampleLen uint32 // number of 16-bit words, not bytes
	Payload          []byte // raw little-endian words, 2*PayloadSampleLen bytes
}

func (ADCDataFrame) frameID() FrameID { return IDADCData }

// UnknownFrame is produced for frame ids this driver does not recognize, or
// for datagrams too short to classify.
type UnknownFrame struct {
	RawID uint32
	Len   int
}

func (UnknownFrame) frameID() FrameID { return 0 }

// DecodeWord decodes one 16-bit ADC sample word into a scaled voltage.
//
// The low 2 bits are status/marker bits and are masked off before the sign
// bit (0x8000 of the masked value) is inspected — the sign is computed
// after masking rather than before.
func DecodeWord(raw uint16, rangeVolts float64) float32 {
	masked := raw & 0xFFFC
	signed := int32(int16(masked))
	return float32(rangeVolts * float64(signed) / 32768.0)
}
