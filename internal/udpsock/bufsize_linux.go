//go:build linux

package udpsock

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// enlargeRecvBuffer requests SO_RCVBUFFORCE on the data socket's file
// descriptor, bypassing the usual rmem_max cap (requires CAP_NET_ADMIN;
// falls back silently to whatever the kernel already granted if denied).
// Needed because a streaming 8-channel/10kHz logger can burst past the
// default receive buffer between consumer wakeups.
func enlargeRecvBuffer(conn *net.UDPConn, bytes int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("udpsock: syscall conn: %w", err)
	}

	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, bytes)
	})
	if ctrlErr != nil {
		return fmt.Errorf("udpsock: control: %w", ctrlErr)
	}
	if setErr != nil {
		return fmt.Errorf("udpsock: SO_RCVBUFFORCE: %w", setErr)
	}
	return nil
}
