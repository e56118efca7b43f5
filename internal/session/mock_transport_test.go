package session

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// mockTransport is an in-memory Transport: Send auto-generates a trivial
// ResponseFrame echoing the outbound frame's group_key, queued for the next
// Receive. Tests can also push arbitrary datagrams (e.g. ADC-data packets)
// directly onto respCh to simulate streaming.
type mockTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	respCh chan []byte
	closed bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{respCh: make(chan []byte, 32)}
}

func (m *mockTransport) Send(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, append([]byte(nil), payload...))
	m.mu.Unlock()

	groupKey := binary.LittleEndian.Uint32(payload[4:8])
	resp := mockResponseBytes(groupKey, 0, "ok")
	select {
	case m.respCh <- resp:
	default:
	}
	return nil
}

func (m *mockTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-m.respCh:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) sentCommands() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockTransport) push(b []byte) {
	m.respCh <- b
}

func mockResponseBytes(groupKey, order uint32, payload string) []byte {
	buf := make([]byte, 16+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(wire.IDResponse))
	binary.LittleEndian.PutUint32(buf[4:8], groupKey)
	binary.LittleEndian.PutUint32(buf[8:12], order)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	copy(buf[16:], payload)
	return buf
}

func mockADCBytes(order, cumulative uint32, words []uint16) []byte {
	buf := make([]byte, 20+2*len(words))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(wire.IDADCData))
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint32(buf[8:12], order)
	binary.LittleEndian.PutUint32(buf[12:16], cumulative)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(words)))
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[20+2*i:22+2*i], w)
	}
	return buf
}
