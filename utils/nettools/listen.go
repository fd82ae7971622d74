package nettools

import (
	"context"
	"net"
)

// Listen opens a TCP listener. With reusePort, several processes may bind the
// same address and the kernel spreads incoming connections among them.
func Listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = reusePortControl
	}
	return lc.Listen(ctx, "tcp", addr)
}
