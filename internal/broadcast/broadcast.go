// Package broadcast fans decoded sample batches out to any number of
// registered subscribers, so a caller can run several downstream consumers
// (a ring-buffer sink, a debug logger, a future plotting client) off one
// session.Session without each one reading off the transport itself.
//
// Backpressure is a per-hub choice: drop the batch silently, or kick the
// slow subscriber outright, so one stalled consumer never blocks ingest.
package broadcast

import (
	"sync"

	"github.com/omnisurfer/dataq-logger/internal/devstate"
	"github.com/omnisurfer/dataq-logger/internal/logging"
	"github.com/omnisurfer/dataq-logger/internal/metrics"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
)

// BackpressurePolicy selects what happens when a subscriber's queue is full.
type BackpressurePolicy int

const (
	// PolicyDrop silently discards the batch for that subscriber only.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick disconnects the subscriber so its consumer can notice and
	// resubscribe rather than silently falling further behind.
	PolicyKick
)

// Batch is one callback invocation's worth of newly decoded samples for one
// channel, the same shape session.OnDataFunc delivers.
type Batch struct {
	Order   uint32
	Channel scanlist.ChannelID
	Samples []devstate.Sample
}

// Subscriber is a registered fanout target. Construct with NewSubscriber;
// read from Out until Closed is closed.
type Subscriber struct {
	Out       chan Batch
	Closed    chan struct{}
	closeOnce sync.Once
}

// NewSubscriber allocates a Subscriber with the given output buffer size.
func NewSubscriber(bufSize int) *Subscriber {
	return &Subscriber{
		Out:    make(chan Batch, bufSize),
		Closed: make(chan struct{}),
	}
}

// Close signals the subscriber is done; idempotent.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.Closed) })
}

// Hub fans out Batches to every registered Subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	Policy      BackpressurePolicy
}

// New creates an empty Hub with the drop policy.
func New() *Hub { return &Hub{subscribers: make(map[*Subscriber]struct{})} }

// Subscribe registers s with the hub.
func (h *Hub) Subscribe(s *Subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	metrics.SetBroadcastSubscribers(n)
	logging.L().Debug("broadcast_subscribed", "subscribers", n)
}

// Unsubscribe removes s from the hub and closes it; safe to call more than
// once for the same Subscriber.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, existed := h.subscribers[s]
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()
	if existed {
		s.Close()
		metrics.SetBroadcastSubscribers(n)
	}
}

// Publish delivers b to every subscriber, honoring the configured
// backpressure policy for any whose queue is full.
func (h *Hub) Publish(b Batch) {
	subs := h.snapshot()
	for _, s := range subs {
		select {
		case s.Out <- b:
		default:
			if h.Policy == PolicyKick {
				metrics.IncBroadcastKick()
				h.Unsubscribe(s)
			} else {
				metrics.IncBroadcastDrop()
			}
		}
	}
}

func (h *Hub) snapshot() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		out = append(out, s)
	}
	return out
}

// Count returns the number of currently registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
