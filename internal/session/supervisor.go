package session

import (
	"context"
	"errors"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
	"github.com/omnisurfer/dataq-logger/internal/demux"
	"github.com/omnisurfer/dataq-logger/internal/metrics"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// startSupervisor launches the two background tasks a streaming session
// runs for its lifetime: one pulling inbound datagrams off the transport,
// one emitting periodic keepalives. Exactly these two, coordinated by their
// own gate so Stop can pause both without tearing them down and Disconnect
// can terminate them for good.
func (s *Session) startSupervisor(ctx context.Context) {
	s.wg.Add(2)
	go s.receiveLoop(ctx)
	go s.keepaliveLoop(ctx)
}

func (s *Session) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	for s.receiveGate.Wait(ctx) {
		raw, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("receive_error", "error", err)
			continue
		}
		frame, err := wire.Decode(raw, s.syncDeviceCount)
		if err != nil {
			metrics.IncMalformed()
			s.logger.Debug("malformed_frame", "error", err)
			continue
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame wire.InboundFrame) {
	switch f := frame.(type) {
	case wire.ADCDataFrame:
		s.handleADCData(f)
	case wire.ResponseFrame:
		s.respMu.Lock()
		waiter := s.respWaiter
		s.respMu.Unlock()
		if waiter != nil {
			select {
			case waiter <- f:
			default:
			}
			return
		}
		// A response arriving with no in-flight sendCommand waiting (e.g. a
		// stray echo during streaming) is logged and dropped.
		s.logger.Debug("unsolicited_response", "order", f.Order, "payload", f.Payload)
	case wire.UnknownFrame:
		metrics.IncUnknown()
		s.logger.Debug("unknown_frame", "raw_id", f.RawID, "len", f.Len)
	}
}

func (s *Session) handleADCData(f wire.ADCDataFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := int(f.Order)
	if order < 0 || order >= len(s.devices) {
		s.logger.Warn("adc_data_order_out_of_range", "order", f.Order)
		return
	}
	state := s.devices[order]
	before := state.CumulativeMissing
	if err := s.demux.Process(state, f); err != nil {
		if errors.Is(err, demux.ErrOutOfOrder) {
			metrics.IncPacketsDropped()
			s.logger.Warn("state_regression", "order", f.Order, "error", err)
			return
		}
		s.logger.Error("demux_error", "order", f.Order, "error", err)
		return
	}
	metrics.IncPacketsReceived()
	metrics.AddSamplesReceived(len(f.Words()))
	if gained := state.CumulativeMissing - before; gained > 0 {
		metrics.AddSamplesFilled(int(gained))
	}

	if s.onData == nil && s.hub == nil {
		return
	}

	qMax, qSum, qN := 0, 0, 0
	for _, ch := range s.scanList.Channels() {
		q := state.QueueFor(ch)
		if q.Len() == 0 {
			continue
		}
		samples := q.DrainAll()
		if len(samples) > qMax {
			qMax = len(samples)
		}
		qSum += len(samples)
		qN++
		if s.onData != nil {
			s.onData(f.Order, ch, samples)
		}
		if s.hub != nil {
			s.hub.Publish(broadcast.Batch{Order: f.Order, Channel: ch, Samples: samples})
		}
	}
	if qN > 0 {
		metrics.SetQueueDepth(qMax, qSum/qN)
	}
}

func (s *Session) keepaliveLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.keepaliveInterval)
	defer ticker.Stop()
	for {
		if !s.keepaliveGate.Wait(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendKeepalive(ctx)
		}
	}
}

func (s *Session) sendKeepalive(ctx context.Context) {
	frame := s.commandFrame(wire.CmdKeepalive, "keepalive\r")
	if _, err := s.sendCommand(ctx, frame, true); err != nil {
		s.logger.Warn("keepalive_send_failed", "error", err)
		return
	}
	metrics.IncKeepalivesSent()
}
