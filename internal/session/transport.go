package session

import "context"

// Transport is the datagram I/O seam a Session drives: one send path for
// outbound command bytes, one receive path for inbound datagrams (both
// command responses and ADC-data packets arrive here, classified by the
// codec after the fact). Production code is backed by internal/udpsock;
// tests substitute an in-memory fake.
type Transport interface {
	// Send writes one outbound datagram. It must not block past ctx's
	// deadline.
	Send(ctx context.Context, payload []byte) error
	// Receive blocks for the next inbound datagram, or until ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases any underlying sockets. Safe to call more than once.
	Close() error
}
