//go:build darwin || linux

package nettools

import (
	"golang.org/x/sys/unix"
)

var _ = func() error { // make sure this executes before func init()
	supported[ModePoll] = pollProbe
	return nil
}()

func pollProbe(fd int) Liveness {
	s := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(s, 0)
	if err != nil {
		return Unknown
	}
	if n == 0 {
		return Alive // nothing to read, no hangup
	}
	if s[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return Gone
	}
	return peek(fd)
}

// peek tells apart pending data from an orderly shutdown (a zero byte read).
// A FIN only closes the peer's sending side, so it is reported as HalfClosed.
func peek(fd int) Liveness {
	var b [1]byte
	n, _, err := unix.Recvfrom(fd, b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		return Alive
	case err != nil:
		return Gone
	case n == 0:
		return HalfClosed
	}
	return Alive
}
