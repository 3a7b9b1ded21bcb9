//go:build unix

package conn

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddress sets SO_REUSEADDR on the raw socket before
// connect(2), so a client can rebind a local port still sitting in
// TIME_WAIT from a previous connection to the same server.
func controlReuseAddress(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
