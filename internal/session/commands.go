package session

import (
	"context"
	"fmt"

	"github.com/omnisurfer/dataq-logger/internal/metrics"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// sendCommand writes frame and, unless ignoreResponse is set, blocks for the
// next inbound response and returns it as this command's reply (it is not
// checked against the command) — exactly one outstanding command at a time,
// no pipelining. The write and read each run on their own goroutine raced
// against ctx's deadline via a select over an error channel and ctx.Done().
func (s *Session) sendCommand(ctx context.Context, frame wire.OutboundFrame, ignoreResponse bool) (wire.InboundFrame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	raw := s.codec.Encode(frame)

	writeErrCh := make(chan error, 1)
	go func() { writeErrCh <- s.transport.Send(ctx, raw) }()

	select {
	case err := <-writeErrCh:
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCommandSend, err)
		}
	case <-ctx.Done():
		metrics.IncCommandTimeouts()
		return nil, fmt.Errorf("%w: %v", ErrCommandTimeout, ctx.Err())
	}
	metrics.IncCommandsSent()

	if ignoreResponse {
		return nil, nil
	}

	// Once the supervisor owns the transport's read side (streaming has
	// started), reading here directly would race its receive loop for the
	// same datagram. Route through the waiter the dispatch loop fills
	// instead; otherwise read the response ourselves.
	if s.running.Load() {
		return s.awaitResponse(ctx)
	}

	type readResult struct {
		frame wire.InboundFrame
		err   error
	}
	readCh := make(chan readResult, 1)
	go func() {
		resp, err := s.transport.Receive(ctx)
		if err != nil {
			readCh <- readResult{err: err}
			return
		}
		fr, err := wire.Decode(resp, s.syncDeviceCount)
		readCh <- readResult{frame: fr, err: err}
	}()

	select {
	case r := <-readCh:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCommandTimeout, r.err)
		}
		return r.frame, nil
	case <-ctx.Done():
		metrics.IncCommandTimeouts()
		return nil, fmt.Errorf("%w: %v", ErrCommandTimeout, ctx.Err())
	}
}

// awaitResponse registers a waiter the supervisor's dispatch loop delivers
// the next ResponseFrame to, instead of reading the transport directly.
func (s *Session) awaitResponse(ctx context.Context) (wire.InboundFrame, error) {
	waiter := make(chan wire.ResponseFrame, 1)
	s.respMu.Lock()
	s.respWaiter = waiter
	s.respMu.Unlock()
	defer func() {
		s.respMu.Lock()
		if s.respWaiter == waiter {
			s.respWaiter = nil
		}
		s.respMu.Unlock()
	}()

	select {
	case r := <-waiter:
		return r, nil
	case <-ctx.Done():
		metrics.IncCommandTimeouts()
		return nil, fmt.Errorf("%w: %v", ErrCommandTimeout, ctx.Err())
	}
}

// nextGroupKey returns a fresh group_key for the next command sequence.
// The device expects this value to change on every reconfiguration; it is
// derived from a counter rather than crypto/rand so command sequences stay
// deterministic under test (see DESIGN.md).
func (s *Session) nextGroupKey() uint32 {
	s.groupKeyCounter++
	return s.groupKeyCounter
}
