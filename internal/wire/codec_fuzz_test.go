package wire

import (
	"encoding/binary"
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add(buildResponse(1, 0, "ps 0"))
	f.Add(buildADC(1, 0, 4, []uint16{0x0010, 0x0020}))
	f.Add([]byte{0x01})
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, raw []byte) {
		// Must never panic regardless of input shape; error is fine.
		_, _ = Decode(raw, 5)
	})
}

func FuzzCodecEncodeDecodeRoundTrip(f *testing.F) {
	f.Add(uint32(1), uint32(10), uint32(1), uint32(0), uint32(0), "192.168.1.3")
	f.Fuzz(func(t *testing.T, groupKey, cmd, p1, p2, p3 uint32, payload string) {
		in := OutboundFrame{
			GroupKey: groupKey,
			Command:  Command(cmd),
			Par1:     p1,
			Par2:     p2,
			Par3:     p3,
			Payload:  payload,
		}
		raw := Codec{}.Encode(in)
		if len(raw) != outboundHeaderLen+len(payload) {
			t.Fatalf("encoded length mismatch")
		}
		le := binary.LittleEndian
		if FrameID(le.Uint32(raw[0:4])) != IDCommand || le.Uint32(raw[4:8]) != groupKey ||
			le.Uint32(raw[8:12]) != cmd || le.Uint32(raw[12:16]) != p1 ||
			le.Uint32(raw[16:20]) != p2 || le.Uint32(raw[20:24]) != p3 {
			t.Fatalf("header fields did not round-trip: % x", raw[:outboundHeaderLen])
		}
		if string(raw[outboundHeaderLen:]) != payload {
			t.Fatalf("payload did not round-trip")
		}
	})
}

func FuzzDecodeWord(f *testing.F) {
	f.Add(uint16(0xFFFC), 10.0)
	f.Add(uint16(0x8000), 5.0)
	f.Fuzz(func(t *testing.T, raw uint16, rangeVolts float64) {
		// Must never panic for any 16-bit input and finite range.
		_ = DecodeWord(raw, rangeVolts)
	})
}
