//go:build !unix

package conn

import "syscall"

// controlReuseAddress is a no-op on platforms without SO_REUSEADDR
// socket-option support through golang.org/x/sys/unix.
func controlReuseAddress(_, _ string, _ syscall.RawConn) error {
	return nil
}
