// Package scanlist models the ordered channel/range selection a logger is
// configured to stream, and the fixed channel identifier space it draws from.
package scanlist

import (
	"errors"
	"fmt"

	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// ChannelID names one of the logger's fixed acquisition channels: analog
// channels 0-7 followed by two digital channels in their own slots (see
// DESIGN.md for why the vendor's count channel has no identifier of its
// own).
type ChannelID int

const (
	Analog1 ChannelID = iota
	Analog2
	Analog3
	Analog4
	Analog5
	Analog6
	Analog7
	Analog8
	Digital1
	Digital2

	// NumChannels is the fixed size of the device-state channel index.
	NumChannels = int(Digital2) + 1
)

func (c ChannelID) String() string {
	switch {
	case c >= Analog1 && c <= Analog8:
		return fmt.Sprintf("AI%d", int(c-Analog1)+1)
	case c == Digital1:
		return "DI1"
	case c == Digital2:
		return "DI2"
	default:
		return fmt.Sprintf("ChannelID(%d)", int(c))
	}
}

// ErrEmpty is returned by New when given zero slots.
var ErrEmpty = errors.New("scanlist: empty")

// ErrTooLong is returned by New when given more slots than the device supports.
var ErrTooLong = errors.New("scanlist: too many slots")

// ErrFirstSlot is returned by New when slot 0 does not select channel 1
// (Analog1), which the device requires.
var ErrFirstSlot = errors.New("scanlist: first slot must be channel 1")

// ErrUnknownRange is returned by New when a slot names a range tag with no
// known full-scale voltage.
var ErrUnknownRange = errors.New("scanlist: unknown range")

// Slot is one entry of a configured scan list: a channel paired with the
// analog input range it is sampled at (ignored for digital channels, but
// still carried so every slot has one shape).
type Slot struct {
	Channel ChannelID
	Range   wire.RangeTag
}

// List is a validated, ordered scan-list configuration.
type List struct {
	slots []Slot
}

// New validates slots and returns a List. Per the device's requirement, the
// list must be non-empty, no longer than NumChannels, and its first slot
// must select channel 1.
func New(slots []Slot) (List, error) {
	if len(slots) == 0 {
		return List{}, ErrEmpty
	}
	if len(slots) > NumChannels {
		return List{}, fmt.Errorf("%w: %d slots, max %d", ErrTooLong, len(slots), NumChannels)
	}
	if slots[0].Channel != Analog1 {
		return List{}, fmt.Errorf("%w: slot 0 selects %s", ErrFirstSlot, slots[0].Channel)
	}
	for i, s := range slots {
		if _, ok := s.Range.Volts(); !ok {
			return List{}, fmt.Errorf("%w: slot %d: %s", ErrUnknownRange, i, s.Range)
		}
	}
	out := make([]Slot, len(slots))
	copy(out, slots)
	return List{slots: out}, nil
}

// Length returns the number of configured slots.
func (l List) Length() int { return len(l.slots) }

// Slot returns the slot at position i. It panics if i is out of range, as
// callers are expected to range over [0, Length()).
func (l List) Slot(i int) Slot { return l.slots[i] }

// RangeVolts returns the full-scale voltage for the slot at position i.
func (l List) RangeVolts(i int) float64 {
	v, _ := l.slots[i].Range.Volts()
	return v
}

// Channels returns the ordered channel identifiers, one per slot.
func (l List) Channels() []ChannelID {
	out := make([]ChannelID, len(l.slots))
	for i, s := range l.slots {
		out[i] = s.Channel
	}
	return out
}
