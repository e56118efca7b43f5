package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUndersizeFrame is returned when a datagram is too short to classify
// or to extract the fields its variant requires.
var ErrUndersizeFrame = errors.New("wire: undersize frame")

// outboundHeaderLen is the fixed 24-byte command-frame header (six u32 fields).
const outboundHeaderLen = 24

// Codec encodes outbound command frames; inbound datagrams are decoded by
// the package-level Decode. Stateless and safe for concurrent use.
type Codec struct{}

// Encode produces the wire bytes for an outbound command: the 24-byte
// little-endian header followed by the ASCII payload, verbatim (no
// trailing terminator is added — callers include `\r` in Payload
// themselves for protocol sub-commands that require it).
func (Codec) Encode(f OutboundFrame) []byte {
	var buf bytes.Buffer
	buf.Grow(outboundHeaderLen + len(f.Payload))
	id := f.ID
	if id == 0 {
		id = IDCommand
	}
	var hdr [outboundHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(id))
	binary.LittleEndian.PutUint32(hdr[4:8], f.GroupKey)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(f.Command))
	binary.LittleEndian.PutUint32(hdr[12:16], f.Par1)
	binary.LittleEndian.PutUint32(hdr[16:20], f.Par2)
	binary.LittleEndian.PutUint32(hdr[20:24], f.Par3)
	buf.Write(hdr[:])
	buf.WriteString(f.Payload)
	return buf.Bytes()
}

// EncodeTo writes the same bytes Encode would produce directly to w,
// returning the number of bytes written.
func (c Codec) EncodeTo(w io.Writer, f OutboundFrame) (int, error) {
	n, err := w.Write(c.Encode(f))
	if err != nil {
		return n, fmt.Errorf("wire encode: %w", err)
	}
	return n, nil
}

// Decode classifies and parses a single inbound datagram (one UDP message,
// not a byte stream — the transport hands us exactly one frame's bytes).
//
// Per §3, shorter frames imply zeroed group_key/order: a frame shorter than
// 8 bytes has group_key=0; shorter than 12 has order=0. order is clamped to
// [0, syncDeviceCount]. Frames with an unrecognized id, or too short even
// to carry a 4-byte id, decode to UnknownFrame.
func Decode(buf []byte, syncDeviceCount int) (InboundFrame, error) {
	if len(buf) < 4 {
		return UnknownFrame{Len: len(buf)}, fmt.Errorf("%w: %d bytes", ErrUndersizeFrame, len(buf))
	}
	id := FrameID(binary.LittleEndian.Uint32(buf[0:4]))

	var groupKey, order uint32
	if len(buf) >= 8 {
		groupKey = binary.LittleEndian.Uint32(buf[4:8])
	}
	if len(buf) >= 12 {
		order = binary.LittleEndian.Uint32(buf[8:12])
	}
	if syncDeviceCount > 0 && order > uint32(syncDeviceCount) {
		order = uint32(syncDeviceCount)
	}

	switch id {
	case IDResponse:
		if len(buf) < 16 {
			return UnknownFrame{RawID: uint32(id), Len: len(buf)}, fmt.Errorf("%w: response header needs 16 bytes, got %d", ErrUndersizeFrame, len(buf))
		}
		payloadLen := binary.LittleEndian.Uint32(buf[12:16])
		end := 16 + int(payloadLen)
		if end > len(buf) {
			return UnknownFrame{RawID: uint32(id), Len: len(buf)}, fmt.Errorf("%w: response payload truncated", ErrUndersizeFrame)
		}
		return ResponseFrame{
			GroupKey: groupKey,
			Order:    order,
			Payload:  string(buf[16:end]),
		}, nil

	case IDADCData:
		if len(buf) < 20 {
			return UnknownFrame{RawID: uint32(id), Len: len(buf)}, fmt.Errorf("%w: adc header needs 20 bytes, got %d", ErrUndersizeFrame, len(buf))
		}
		cumulative := binary.LittleEndian.Uint32(buf[12:16])
		sampleLen := binary.LittleEndian.Uint32(buf[16:20])
		need := 20 + 2*int(sampleLen)
		if need > len(buf) {
			return UnknownFrame{RawID: uint32(id), Len: len(buf)}, fmt.Errorf("%w: adc payload needs %d bytes, got %d", ErrUndersizeFrame, need, len(buf))
		}
		return ADCDataFrame{
			GroupKey:         groupKey,
			Order:            order,
			CumulativeCount:  cumulative,
			PayloadSampleLen: sampleLen,
			Payload:          buf[20:need],
		}, nil

	default:
		return UnknownFrame{RawID: uint32(id), Len: len(buf)}, nil
	}
}

// Words reinterprets an ADCDataFrame's raw payload as little-endian 16-bit
// sample words, in wire order.
func (f ADCDataFrame) Words() []uint16 {
	words := make([]uint16, f.PayloadSampleLen)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(f.Payload[2*i : 2*i+2])
	}
	return words
}
