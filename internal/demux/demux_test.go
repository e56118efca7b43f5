package demux

import (
	"errors"
	"testing"

	"github.com/omnisurfer/dataq-logger/internal/devstate"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

func twoSlotList(t *testing.T) scanlist.List {
	t.Helper()
	l, err := scanlist.New([]scanlist.Slot{
		{Channel: scanlist.Analog1, Range: wire.RangePN10V0},
		{Channel: scanlist.Analog2, Range: wire.RangePN10V0},
	})
	if err != nil {
		t.Fatalf("scanlist.New: %v", err)
	}
	return l
}

func TestProcess_GapRepairScenario(t *testing.T) {
	list := twoSlotList(t)
	d := &Demuxer{List: list}
	state := devstate.New()

	packetA := wire.ADCDataFrame{CumulativeCount: 4, PayloadSampleLen: 4,
		Payload: wordsToPayload(0x0010, 0x0020, 0x0030, 0x0040)}
	if err := d.Process(state, packetA); err != nil {
		t.Fatalf("Process(A): %v", err)
	}
	if got := state.QueueFor(scanlist.Analog1).Len(); got != 2 {
		t.Fatalf("after A: slot-0 len = %d, want 2", got)
	}
	if got := state.QueueFor(scanlist.Analog2).Len(); got != 2 {
		t.Fatalf("after A: slot-1 len = %d, want 2", got)
	}
	if state.Carryover != 0 {
		t.Fatalf("after A: carryover = %d, want 0", state.Carryover)
	}
	if state.CumulativeReceived != 4 {
		t.Fatalf("after A: tracked = %d, want 4", state.CumulativeReceived)
	}
	if state.CumulativeMissing != 0 {
		t.Fatalf("after A: missing = %d, want 0", state.CumulativeMissing)
	}

	packetB := wire.ADCDataFrame{CumulativeCount: 8, PayloadSampleLen: 2,
		Payload: wordsToPayload(0x0050, 0x0060)}
	if err := d.Process(state, packetB); err != nil {
		t.Fatalf("Process(B): %v", err)
	}
	if got := state.QueueFor(scanlist.Analog1).Len(); got != 4 {
		t.Fatalf("after B: slot-0 len = %d, want 4 (2 real + 1 filler + 1 real)", got)
	}
	if got := state.QueueFor(scanlist.Analog2).Len(); got != 4 {
		t.Fatalf("after B: slot-1 len = %d, want 4", got)
	}
	if state.CumulativeReceived != 8 {
		t.Fatalf("after B: tracked = %d, want 8", state.CumulativeReceived)
	}
	if state.CumulativeMissing != 2 {
		t.Fatalf("after B: missing-counter = %d, want 2", state.CumulativeMissing)
	}

	// slot-0 samples in arrival order: real(0x10), real(0x30), filler, real(0x50)
	slot0 := state.QueueFor(scanlist.Analog1).DrainAll()
	if slot0[2].Filler != true || slot0[0].Filler || slot0[1].Filler || slot0[3].Filler {
		t.Fatalf("slot-0 filler flags = %+v, want only index 2 set", slot0)
	}
}

func wordsToPayload(words ...uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		buf[2*i] = byte(w)
		buf[2*i+1] = byte(w >> 8)
	}
	return buf
}

func TestProcess_NegativeMissingIsFatal(t *testing.T) {
	list := twoSlotList(t)
	d := &Demuxer{List: list}
	state := devstate.New()
	state.CumulativeReceived = 100

	frame := wire.ADCDataFrame{CumulativeCount: 4, PayloadSampleLen: 1, Payload: wordsToPayload(0x10)}
	err := d.Process(state, frame)
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if state.CumulativeReceived != 100 {
		t.Fatalf("state mutated on fatal packet: tracked = %d", state.CumulativeReceived)
	}
}

func TestProcess_EmptyPayloadIsNoop(t *testing.T) {
	list := twoSlotList(t)
	d := &Demuxer{List: list}
	state := devstate.New()

	frame := wire.ADCDataFrame{CumulativeCount: 0, PayloadSampleLen: 0, Payload: nil}
	if err := d.Process(state, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if state.Carryover != 0 {
		t.Fatalf("carryover = %d, want 0", state.Carryover)
	}
}

func TestProcess_NotifiesOnGap(t *testing.T) {
	list := twoSlotList(t)
	var gotMissing int
	d := &Demuxer{List: list, OnGap: func(order uint32, missing int, cumMissing uint64) {
		gotMissing = missing
	}}
	state := devstate.New()
	frame := wire.ADCDataFrame{CumulativeCount: 3, PayloadSampleLen: 0}
	if err := d.Process(state, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if gotMissing != 3 {
		t.Fatalf("notified missing = %d, want 3", gotMissing)
	}
}
