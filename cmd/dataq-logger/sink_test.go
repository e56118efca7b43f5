package main

import (
	"context"
	"testing"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
	"github.com/omnisurfer/dataq-logger/internal/devstate"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
)

func TestRingSink_AppendAndTrim(t *testing.T) {
	s := newRingSink(3)
	s.append(broadcast.Batch{Channel: scanlist.Analog1, Samples: []devstate.Sample{{Value: 1}, {Value: 2}}})
	s.append(broadcast.Batch{Channel: scanlist.Analog1, Samples: []devstate.Sample{{Value: 3}, {Value: 4}}})

	got := s.Snapshot(scanlist.Analog1)
	want := []float32{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}
}

func TestRingSink_SnapshotIsIndependentCopy(t *testing.T) {
	s := newRingSink(10)
	s.append(broadcast.Batch{Channel: scanlist.Analog2, Samples: []devstate.Sample{{Value: 5}}})
	snap := s.Snapshot(scanlist.Analog2)
	snap[0] = 999
	if got := s.Snapshot(scanlist.Analog2); got[0] == 999 {
		t.Fatalf("mutating a snapshot affected the sink's live buffer")
	}
}

func TestRingSink_RunDrainsUntilClosed(t *testing.T) {
	s := newRingSink(10)
	sub := broadcast.NewSubscriber(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, sub)
		close(done)
	}()

	sub.Out <- broadcast.Batch{Channel: scanlist.Analog1, Samples: []devstate.Sample{{Value: 7}}}

	deadline := time.After(time.Second)
	for {
		if len(s.Snapshot(scanlist.Analog1)) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("ringSink never observed the appended batch")
		case <-time.After(time.Millisecond):
		}
	}

	sub.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after subscriber closed")
	}
}
