package scanlist

import (
	"errors"
	"testing"

	"github.com/omnisurfer/dataq-logger/internal/wire"
)

func TestNew_ValidList(t *testing.T) {
	l, err := New([]Slot{
		{Channel: Analog1, Range: wire.RangePN10V0},
		{Channel: Analog2, Range: wire.RangePN5V0},
		{Channel: Digital1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", l.Length())
	}
	if l.Slot(1).Channel != Analog2 {
		t.Fatalf("slot 1 channel = %v, want Analog2", l.Slot(1).Channel)
	}
	if got := l.RangeVolts(0); got != 10.0 {
		t.Fatalf("RangeVolts(0) = %v, want 10.0", got)
	}
}

func TestNew_RejectsEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestNew_RejectsTooLong(t *testing.T) {
	slots := make([]Slot, NumChannels+1)
	for i := range slots {
		slots[i] = Slot{Channel: Analog1, Range: wire.RangePN10V0}
	}
	if _, err := New(slots); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v, want ErrTooLong", err)
	}
}

func TestNew_RejectsWrongFirstSlot(t *testing.T) {
	slots := []Slot{{Channel: Analog2, Range: wire.RangePN10V0}}
	if _, err := New(slots); !errors.Is(err, ErrFirstSlot) {
		t.Fatalf("err = %v, want ErrFirstSlot", err)
	}
}

func TestNew_RejectsUnknownRange(t *testing.T) {
	slots := []Slot{{Channel: Analog1, Range: wire.RangeTag(0xBEEF)}}
	if _, err := New(slots); !errors.Is(err, ErrUnknownRange) {
		t.Fatalf("err = %v, want ErrUnknownRange", err)
	}
}

func TestChannels(t *testing.T) {
	l, err := New([]Slot{
		{Channel: Analog1, Range: wire.RangePN10V0},
		{Channel: Analog3, Range: wire.RangePN2V0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := l.Channels()
	want := []ChannelID{Analog1, Analog3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Channels() = %v, want %v", got, want)
	}
}
