// Package udpsock is the concrete two-socket UDP transport the session
// package drives through its Transport seam: one socket for outbound
// commands, one for everything the device sends back unsolicited
// (responses, ADC stream, unknown datagrams).
package udpsock

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Config names the four ports and one address the device's command/discovery
// split requires. Defaults mirror the device's documented hardcoded values;
// callers override whichever differ for their deployment.
type Config struct {
	// LoggerAddr is the device's IP or hostname.
	LoggerAddr string
	// DeviceCommandPort is the remote port commands are sent to.
	DeviceCommandPort int
	// DeviceDiscoveryPort is unused by the transport directly; carried for
	// parity with the CONNECT command's par1 (disc_remote_port) operand.
	DeviceDiscoveryPort int
	// ClientCommandPort is the local port the command socket binds.
	ClientCommandPort int
	// ClientDataPort is the local port the data/response socket binds.
	ClientDataPort int
	// RecvBufBytes requests a best-effort receive-buffer enlargement on the
	// data socket (see bufsize_linux.go). Zero leaves the OS default.
	RecvBufBytes int
}

// DefaultConfig returns the device's default port set.
func DefaultConfig(loggerAddr string) Config {
	return Config{
		LoggerAddr:          loggerAddr,
		DeviceCommandPort:   51235,
		DeviceDiscoveryPort: 1235,
		ClientCommandPort:   1427,
		ClientDataPort:      1234,
		RecvBufBytes:        4 << 20,
	}
}

// Transport is the two-socket net.UDPConn-backed implementation of
// session.Transport. It is deliberately the only package depending on
// net.UDPConn directly — session never imports net.
type Transport struct {
	cfg Config

	cmdConn  *net.UDPConn
	dataConn *net.UDPConn
	deviceAddr *net.UDPAddr
}

// Dial resolves addresses and binds both local sockets. The command socket
// is implicitly "connected" to the device's command port (so Send can just
// Write); the data socket stays unconnected since it must accept datagrams
// from whatever source address the device actually streams from.
func Dial(cfg Config) (*Transport, error) {
	deviceAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.LoggerAddr, cfg.DeviceCommandPort))
	if err != nil {
		return nil, fmt.Errorf("udpsock: resolve device addr: %w", err)
	}

	cmdLocal := &net.UDPAddr{Port: cfg.ClientCommandPort}
	cmdConn, err := net.DialUDP("udp", cmdLocal, deviceAddr)
	if err != nil {
		return nil, fmt.Errorf("udpsock: dial command socket: %w", err)
	}

	dataLocal := &net.UDPAddr{Port: cfg.ClientDataPort}
	dataConn, err := net.ListenUDP("udp", dataLocal)
	if err != nil {
		_ = cmdConn.Close()
		return nil, fmt.Errorf("udpsock: bind data socket: %w", err)
	}

	if cfg.RecvBufBytes > 0 {
		if err := enlargeRecvBuffer(dataConn, cfg.RecvBufBytes); err != nil {
			// Best-effort: a logger streaming 8 channels at 10kHz can burst
			// past the OS default, but failing to enlarge it isn't fatal —
			// the caller still gets a working (if more loss-prone) socket.
			_ = err
		}
	}

	return &Transport{cfg: cfg, cmdConn: cmdConn, dataConn: dataConn, deviceAddr: deviceAddr}, nil
}

// Send writes payload to the device's command port. The command socket is
// connected (DialUDP), so a plain Write suffices; ctx is honored only in the
// sense that a canceled context aborts before the syscall when already
// expired (UDP writes are effectively non-blocking, so there is nothing to
// cancel mid-flight).
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.cmdConn.Write(payload)
	if err != nil {
		return fmt.Errorf("udpsock: send: %w", err)
	}
	return nil
}

// Receive blocks for the next datagram on the data socket. If ctx carries a
// deadline, that deadline is set directly on the socket; otherwise Receive
// polls in short slices so a cancel-only ctx (no deadline) still unblocks a
// pending read promptly instead of hanging until the next datagram arrives.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.dataConn.SetReadDeadline(dl)
		buf := make([]byte, maxDatagramSize)
		n, _, err := t.dataConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("udpsock: receive: %w", err)
		}
		return buf[:n], nil
	}

	buf := make([]byte, maxDatagramSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = t.dataConn.SetReadDeadline(time.Now().Add(receivePollInterval))
		n, _, err := t.dataConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("udpsock: receive: %w", err)
		}
		return buf[:n], nil
	}
}

// receivePollInterval bounds how long a cancel-only ctx can be stuck inside
// ReadFromUDP before Receive re-checks ctx.Done().
const receivePollInterval = 200 * time.Millisecond

// Close releases both sockets.
func (t *Transport) Close() error {
	errCmd := t.cmdConn.Close()
	errData := t.dataConn.Close()
	if errCmd != nil {
		return errCmd
	}
	return errData
}

// maxDatagramSize covers the widest ADC packet size the protocol's packet-
// size (ps) code selects (up to 2048 bytes) plus header, rounded up.
const maxDatagramSize = 4096
