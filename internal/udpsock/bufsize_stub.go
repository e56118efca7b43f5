//go:build !linux

package udpsock

import "net"

// enlargeRecvBuffer falls back to the portable net.UDPConn.SetReadBuffer off
// Linux, since SO_RCVBUFFORCE is Linux-specific; the OS may cap the size
// actually granted.
func enlargeRecvBuffer(conn *net.UDPConn, bytes int) error {
	return conn.SetReadBuffer(bytes)
}
