// Package session implements the logger's control state machine and the
// public surface callers drive: bind sockets, configure and connect,
// start/stop streaming, disconnect, and a background supervisor that keeps
// the stream flowing and the link alive.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
	"github.com/omnisurfer/dataq-logger/internal/demux"
	"github.com/omnisurfer/dataq-logger/internal/devstate"
	"github.com/omnisurfer/dataq-logger/internal/logging"
	"github.com/omnisurfer/dataq-logger/internal/metrics"
	"github.com/omnisurfer/dataq-logger/internal/rateplan"
	"github.com/omnisurfer/dataq-logger/internal/scanlist"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

// State names a position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateSocketsBound
	StateConfigured
	StateConnected
	StateStreaming
	StateStopped
	StateDisconnected
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateSocketsBound:
		return "sockets_bound"
	case StateConfigured:
		return "configured"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(st))
	}
}

// OnDataFunc is invoked with every batch of samples a channel's queue
// accumulated since the last packet, as soon as that packet is processed.
type OnDataFunc func(order uint32, ch scanlist.ChannelID, samples []devstate.Sample)

const (
	defaultCommandTimeout    = 2 * time.Second
	defaultKeepaliveInterval = 6 * time.Second
	defaultSyncDeviceCount   = 1

	// deviceKeepaliveTimeoutMs is the device-side keepalive timeout sent as
	// the "keepalive 8000" configuration sub-command — distinct from
	// keepaliveInterval, which is this driver's own keepalive send cadence.
	deviceKeepaliveTimeoutMs = 8000
)

// connectParams holds the CONNECT command's operands: where the device
// should stream UDP data back to, and this session's role/position in a
// multi-device sync group. These are protocol fields carried in the
// command frame itself, not transport configuration.
type connectParams struct {
	clientIP       string
	discRemotePort uint32
	role           uint32
	order          uint32
}

// Session drives one logger's control channel and stream ingest pipeline.
type Session struct {
	mu    sync.Mutex
	state State

	transport Transport
	codec     wire.Codec
	logger    *slog.Logger

	commandTimeout    time.Duration
	keepaliveInterval time.Duration
	syncDeviceCount   int

	scanList        scanlist.List
	rateParams      rateplan.Params
	groupKeyCounter uint32

	devices []*devstate.State
	demux   *demux.Demuxer
	onData  OnDataFunc
	onGap   demux.GapNotifier
	hub     *broadcast.Hub
	connect connectParams

	receiveGate   *gate
	keepaliveGate *gate
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	// running is set while the supervisor owns the transport's read side;
	// sendCommand consults it to decide whether to read the response itself
	// or hand off to the supervisor's dispatch loop (see respMu/respWaiter).
	running    atomic.Bool
	respMu     sync.Mutex
	respWaiter chan wire.ResponseFrame
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithTransport supplies the datagram transport. Required — Session has no
// default so tests can substitute an in-memory fake without pulling in
// internal/udpsock.
func WithTransport(t Transport) Option { return func(s *Session) { s.transport = t } }

// WithLogger overrides the session's logger (defaults to logging.L()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCommandTimeout overrides the command/response round-trip deadline.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.commandTimeout = d
		}
	}
}

// WithKeepaliveInterval overrides the keepalive cadence during streaming.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.keepaliveInterval = d
		}
	}
}

// WithSyncDeviceCount sets how many devices' responses this session expects
// to multiplex (clamping the order field); 1 for a single logger.
func WithSyncDeviceCount(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.syncDeviceCount = n
		}
	}
}

// WithOnData registers the callback invoked with newly decoded samples.
func WithOnData(fn OnDataFunc) Option { return func(s *Session) { s.onData = fn } }

// WithOnGap registers the callback invoked when a packet implies missing
// samples.
func WithOnGap(fn demux.GapNotifier) Option { return func(s *Session) { s.onGap = fn } }

// WithBroadcast fans every decoded batch out to hub's subscribers in
// addition to invoking OnDataFunc, letting more than one downstream
// consumer (a ring-buffer sink, a debug logger, a future plotting client)
// read the stream without each one touching the transport.
func WithBroadcast(hub *broadcast.Hub) Option { return func(s *Session) { s.hub = hub } }

// WithConnect supplies the CONNECT command's operands. clientIP is the
// host address the device streams UDP data back to (carried as the
// command's payload); discRemotePort is echoed in par1 (the discovery
// remote port the device should target). role and order place this
// session within a multi-device sync group — pass 1 (master) and 0 for a
// standalone logger. Required: ConfigureAndConnect fails if clientIP is
// never set.
func WithConnect(clientIP string, discRemotePort int, role, order uint32) Option {
	return func(s *Session) {
		s.connect = connectParams{
			clientIP:       clientIP,
			discRemotePort: uint32(discRemotePort),
			role:           role,
			order:          order,
		}
	}
}

// New constructs a Session in StateIdle. At minimum WithTransport must be
// supplied; ConfigureAndConnect fails otherwise.
func New(opts ...Option) *Session {
	s := &Session{
		state:             StateIdle,
		logger:            logging.L(),
		commandTimeout:    defaultCommandTimeout,
		keepaliveInterval: defaultKeepaliveInterval,
		syncDeviceCount:   defaultSyncDeviceCount,
		receiveGate:       newGate(),
		keepaliveGate:     newGate(),
	}
	for _, o := range opts {
		o(s)
	}
	s.receiveGate.Pause()
	s.keepaliveGate.Pause()
	s.devices = make([]*devstate.State, s.syncDeviceCount)
	for i := range s.devices {
		s.devices[i] = devstate.New()
	}
	return s
}

func (s *Session) commandFrame(cmd wire.Command, payload string) wire.OutboundFrame {
	return wire.OutboundFrame{
		GroupKey: s.groupKeyCounter,
		Command:  cmd,
		Payload:  payload,
	}
}

// State reports the session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.state = st
	metrics.SetConnectionState(int(st))
	s.logger.Info("state_transition", "state", st.String())
}

// Bind marks the transport ready for use; Session does not own socket
// creation (that belongs to whatever built the Transport), but still
// enforces the lifecycle ordering the control state machine requires.
func (s *Session) Bind(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: Bind from %s", ErrStateTransition, s.state)
	}
	if s.transport == nil {
		return fmt.Errorf("%w: no transport configured", ErrBind)
	}
	s.setState(StateSocketsBound)
	return nil
}

// ConfigureAndConnect validates scanList and rateHz, sends CONNECT and the
// SECONDCOMMAND configuration sequence (info, encode, ps, srate/dec/deca,
// keepalive, then one slist entry per scan-list slot), and transitions to
// StateConnected.
func (s *Session) ConfigureAndConnect(ctx context.Context, scanList scanlist.List, rateHz int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSocketsBound && s.state != StateStopped {
		return fmt.Errorf("%w: ConfigureAndConnect from %s", ErrStateTransition, s.state)
	}
	if scanList.Length() == 0 {
		return fmt.Errorf("%w: empty scan list", ErrConfiguration)
	}
	params, err := rateplan.Plan(rateHz)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if s.connect.clientIP == "" {
		return fmt.Errorf("%w: WithConnect not configured (missing client IP)", ErrConfiguration)
	}

	s.groupKeyCounter = s.nextGroupKey()

	connectFrame := wire.OutboundFrame{
		GroupKey: s.groupKeyCounter,
		Command:  wire.CmdConnect,
		Par1:     s.connect.discRemotePort,
		Par2:     s.connect.role,
		Par3:     s.connect.order,
		Payload:  s.connect.clientIP,
	}
	if _, err := s.sendCommand(ctx, connectFrame, false); err != nil {
		return fmt.Errorf("%w: CONNECT: %v", ErrConfiguration, err)
	}

	// Supplemental: query device identity for diagnostic logging right
	// after CONNECT. Never required for correctness.
	if resp, err := s.sendCommand(ctx, s.commandFrame(wire.CmdSecondCommand, "info 1\r"), false); err != nil {
		s.logger.Debug("info_query_failed", "error", err)
	} else if r, ok := resp.(wire.ResponseFrame); ok {
		s.logger.Debug("device_info", "payload", r.Payload)
	}

	seq := []string{
		"encode 0\r",
		"ps 0\r",
		fmt.Sprintf("srate %d\r", params.Srate),
		fmt.Sprintf("dec %d\r", params.Dec),
		fmt.Sprintf("deca %d\r", params.Deca),
		fmt.Sprintf("keepalive %d\r", deviceKeepaliveTimeoutMs),
	}
	for i := 0; i < scanList.Length(); i++ {
		slot := scanList.Slot(i)
		seq = append(seq, fmt.Sprintf("slist %d %d\r", i, int(slot.Channel)+int(slot.Range)))
	}
	for _, sub := range seq {
		if _, err := s.sendCommand(ctx, s.commandFrame(wire.CmdSecondCommand, sub), false); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfiguration, sub, err)
		}
	}

	s.scanList = scanList
	s.rateParams = params
	s.demux = &demux.Demuxer{List: scanList, OnGap: s.onGap, MinNotifyInterval: time.Second}
	for _, d := range s.devices {
		d.Reset()
	}
	s.setState(StateConnected)
	return nil
}

// Start sends SYNCSTART and launches the receive and keepalive background
// tasks, transitioning to StateStreaming.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return fmt.Errorf("%w: Start from %s", ErrStateTransition, s.state)
	}
	if _, err := s.sendCommand(ctx, s.commandFrame(wire.CmdSyncStart, "start 0\r"), false); err != nil {
		return fmt.Errorf("%w: SYNCSTART: %v", ErrConfiguration, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.receiveGate.Resume()
	s.keepaliveGate.Resume()
	s.running.Store(true)
	s.startSupervisor(runCtx)

	s.setState(StateStreaming)
	return nil
}

// Stop sends SYNCSTOP and pauses (without terminating) the background
// tasks, transitioning to StateStopped. A subsequent ConfigureAndConnect +
// Start may resume streaming.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: Stop from %s", ErrStateTransition, st)
	}
	frame := s.commandFrame(wire.CmdSyncStop, "stop\r")
	s.mu.Unlock()

	// sendCommand is not called with s.mu held: while streaming, its
	// response arrives through the receive loop's dispatch, which takes
	// s.mu itself to process any ADC packet ahead of the SYNCSTOP echo.
	// Holding the lock here would make that packet block the very
	// dispatch this call is waiting on.
	if _, err := s.sendCommand(ctx, frame, false); err != nil {
		return fmt.Errorf("%w: SYNCSTOP: %v", ErrConfiguration, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiveGate.Pause()
	s.keepaliveGate.Pause()
	s.running.Store(false)
	s.setState(StateStopped)
	return nil
}

// Disconnect sends DISCONNECT, terminates the background tasks for good,
// closes the transport, and transitions to StateDisconnected. Safe to call
// from any state other than Idle.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: Disconnect from %s", ErrStateTransition, st)
	}
	sendDisconnect := s.state == StateStreaming || s.state == StateStopped || s.state == StateConnected
	frame := s.commandFrame(wire.CmdDisconnect, "disconnect\r")
	cancel := s.cancel
	s.mu.Unlock()

	if sendDisconnect {
		if _, err := s.sendCommand(ctx, frame, true); err != nil {
			s.logger.Warn("disconnect_send_failed", "error", err)
		}
	}

	// As in Stop, wg.Wait must not be called with s.mu held: the receive
	// loop it's waiting on takes s.mu itself to dispatch any ADC packet
	// still in flight before it can observe the cancelled ctx and exit.
	s.running.Store(false)
	s.receiveGate.Terminate()
	s.keepaliveGate.Terminate()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil {
		_ = s.transport.Close()
	}
	s.setState(StateDisconnected)
	return nil
}

// GetRateParameters returns the rateplan.Params last applied by
// ConfigureAndConnect.
func (s *Session) GetRateParameters() rateplan.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateParams
}
