package main

import (
	"context"
	"sync"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
)

// ringSink is a stand-in downstream consumer: a rolling in-memory buffer
// per channel, fed by a broadcast.Subscriber. Snapshot hands the caller an
// independent copy rather than the live buffer, so a plotting or storage
// consumer can read without racing the next append.
type ringSink struct {
	mu       sync.Mutex
	capacity int
	data     [scanlist.NumChannels][]float32
}

func newRingSink(capacity int) *ringSink {
	return &ringSink{capacity: capacity}
}

// Run drains sub.Out until ctx is done or the subscriber is closed,
// appending each batch's values into the matching channel's ring and
// trimming it back to capacity.
func (s *ringSink) Run(ctx context.Context, sub *broadcast.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Closed:
			return
		case b := <-sub.Out:
			s.append(b)
		}
	}
}

func (s *ringSink) append(b broadcast.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring := s.data[b.Channel]
	for _, sample := range b.Samples {
		ring = append(ring, sample.Value)
	}
	if over := len(ring) - s.capacity; s.capacity > 0 && over > 0 {
		ring = ring[over:]
	}
	s.data[b.Channel] = ring
}

// Snapshot returns a copy of ch's current buffered values, safe for the
// caller to read or mutate without racing future appends.
func (s *ringSink) Snapshot(ch scanlist.ChannelID) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.data[ch]))
	copy(out, s.data[ch])
	return out
}
