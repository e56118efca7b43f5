// Package devstate tracks the per-device counters and per-channel output
// queues that persist across packet boundaries while a logger streams.
package devstate

import "github.com/omnisurfer/dataq-logger/internal/scanlist"

// Sample is one decoded, scaled reading destined for a channel's queue. A
// Sample with Filler set was synthesized to repair a detected gap, not read
// off the wire.
type Sample struct {
	Value  float32
	Filler bool
}

// Queue is an append-only, ordered buffer of samples for one channel. It is
// not safe for concurrent use without external synchronization; callers in
// this module hold the owning session's mutex for the duration of any
// mutation.
type Queue struct {
	samples []Sample
}

// Append adds s to the end of the queue.
func (q *Queue) Append(s Sample) {
	q.samples = append(q.samples, s)
}

// Len reports the number of samples currently queued.
func (q *Queue) Len() int { return len(q.samples) }

// DrainAll removes and returns every queued sample, oldest first.
func (q *Queue) DrainAll() []Sample {
	out := q.samples
	q.samples = nil
	return out
}

// State is the per-device record the demultiplexer threads across packets:
// cumulative counters, the carryover index into the scan list, and one
// output queue per fixed channel.
type State struct {
	// CumulativeReceived is the count of samples this driver has attributed
	// to the device so far, including synthesized filler.
	CumulativeReceived uint64
	// CumulativeMissing is the running total of filler samples synthesized
	// to repair detected gaps.
	CumulativeMissing uint64
	// Carryover is the scan-list position the next payload word (or filler
	// sample) will be assigned to.
	Carryover int

	Queues [scanlist.NumChannels]Queue
}

// New returns a zeroed State ready to track a streaming device.
func New() *State {
	return &State{}
}

// Reset clears all counters and queues, as on a fresh CONNECT/ConfigureAndConnect.
func (s *State) Reset() {
	s.CumulativeReceived = 0
	s.CumulativeMissing = 0
	s.Carryover = 0
	for i := range s.Queues {
		s.Queues[i].DrainAll()
	}
}

// QueueFor returns the output queue for ch.
func (s *State) QueueFor(ch scanlist.ChannelID) *Queue {
	return &s.Queues[ch]
}
