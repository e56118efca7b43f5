// Package demux turns inbound ADC-data frames into per-channel samples,
// repairing gaps the receive path detects via the device's cumulative
// sample counter.
package demux

import (
	"errors"
	"fmt"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/devstate"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// fillerRaw is the raw word value synthesized for a gap-repair sample.
// The device's own documentation calls it an "event marker" with no
// better-documented meaning available.
const fillerRaw uint16 = 0x0003

// ErrOutOfOrder is returned when a packet's cumulative count is behind the
// already-tracked count — the packet is stale or duplicated and is dropped
// rather than rewinding state.
var ErrOutOfOrder = errors.New("demux: out-of-order packet")

// GapNotifier is invoked when a packet implies 1 or more missing samples,
// throttled to at most once per MinNotifyInterval so a sustained loss
// doesn't spam the caller once per packet.
type GapNotifier func(order uint32, missing int, cumulativeMissing uint64)

// Demuxer applies one scan list to a stream of ADC-data frames, writing
// decoded and filler samples into a devstate.State.
type Demuxer struct {
	List scanlist.List

	// OnGap, if set, is called when a packet implies missing samples.
	OnGap GapNotifier
	// MinNotifyInterval throttles OnGap. Zero disables throttling (every
	// gap notifies).
	MinNotifyInterval time.Duration

	lastNotify time.Time
}

// Process decodes one ADC-data frame against state, synthesizing filler
// samples for any gap implied by frame.CumulativeCount before decoding the
// frame's own payload words, and advances state.Carryover past both.
//
// missing counts the samples the device reports as sent that landed neither
// in a prior packet nor in this one: cumulative_count less what was already
// tracked and less this packet's own payload length. Once the fill and the
// decode both run, tracked always lands exactly on cumulative_count.
func (d *Demuxer) Process(state *devstate.State, frame wire.ADCDataFrame) error {
	n := d.List.Length()
	if n == 0 {
		return errors.New("demux: empty scan list")
	}

	words := frame.Words()
	missing := int64(frame.CumulativeCount) - int64(state.CumulativeReceived) - int64(len(words))
	if missing < 0 {
		return fmt.Errorf("%w: cumulative_count=%d already tracked=%d payload=%d", ErrOutOfOrder, frame.CumulativeCount, state.CumulativeReceived, len(words))
	}

	if missing > 0 {
		d.fill(state, int(missing))
		state.CumulativeMissing += uint64(missing)
		d.notify(frame.Order, int(missing), state.CumulativeMissing)
	}

	for _, w := range words {
		slot := d.List.Slot(state.Carryover)
		volts := d.List.RangeVolts(state.Carryover)
		state.QueueFor(slot.Channel).Append(devstate.Sample{Value: wire.DecodeWord(w, volts)})
		state.Carryover = (state.Carryover + 1) % n
	}
	state.CumulativeReceived = uint64(frame.CumulativeCount)

	return nil
}

// fill synthesizes count filler samples round-robin across the scan list
// starting at state.Carryover, advancing it past them.
func (d *Demuxer) fill(state *devstate.State, count int) {
	n := d.List.Length()
	for i := 0; i < count; i++ {
		slot := d.List.Slot(state.Carryover)
		volts := d.List.RangeVolts(state.Carryover)
		state.QueueFor(slot.Channel).Append(devstate.Sample{
			Value:  wire.DecodeWord(fillerRaw, volts),
			Filler: true,
		})
		state.Carryover = (state.Carryover + 1) % n
	}
}

func (d *Demuxer) notify(order uint32, missing int, cumulativeMissing uint64) {
	if d.OnGap == nil {
		return
	}
	if d.MinNotifyInterval > 0 {
		now := timeNow()
		if now.Sub(d.lastNotify) < d.MinNotifyInterval {
			return
		}
		d.lastNotify = now
	}
	d.OnGap(order, missing, cumulativeMissing)
}

// timeNow is a var so tests can stub it without a wall-clock dependency.
var timeNow = time.Now
