package server

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// dualStackListenConfig returns a net.ListenConfig whose Control callback
// clears IPV6_V6ONLY and sets SO_REUSEADDR on the raw socket fd before bind().
// Go's net package has no portable knob for IPV6_V6ONLY, so this reaches the
// raw fd directly via golang.org/x/sys/unix.
func dualStackListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

// NewDataListener opens a dual-stack TCP listener on an ephemeral port.
//
// net.ListenConfig has no listen-backlog knob, so the backlog used is
// whatever the kernel's net.core.somaxconn default provides.
func NewDataListener() (net.Listener, error) {
	lc := dualStackListenConfig()
	return lc.Listen(context.Background(), "tcp6", "[::]:0")
}
