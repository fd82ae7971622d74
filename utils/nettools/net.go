package nettools

import (
	"net"
	"syscall"
)

type Mode int

const (
	ModePoll Mode = iota
	ModeSelect
)

// Liveness is the result of probing a connection without consuming from it
type Liveness int

const (
	Unknown Liveness = iota // the platform or the connection type can't be probed
	Alive
	HalfClosed // the peer sent FIN, it may still be reading
	Gone       // the peer reset the connection or the socket errored
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case HalfClosed:
		return "half-closed"
	case Gone:
		return "gone"
	}
	return "unknown"
}

type prober func(fd int) Liveness

var (
	supported = map[Mode]prober{}
	picked    prober
)

func init() {
	for _, mode := range []Mode{ModePoll, ModeSelect} {
		if supported[mode] != nil {
			picked = supported[mode]
			break
		}
	}
}

// Use switches the probing syscall, it returns false if mode is not
// supported on this platform. Not safe to call while probing.
func Use(mode Mode) bool {
	if p := supported[mode]; p != nil {
		picked = p
		return true
	}
	return false
}

// Probe checks, without blocking and without reading, whether the peer of c
// has hung up. Pending unread data counts as [Alive].
func Probe(c net.Conn) Liveness {
	if picked == nil {
		return Unknown
	}
	rc := connToFD(c)
	if rc == nil {
		return Unknown
	}
	result := Unknown
	// errors would only happen before the control action, here's an example
	// on *[net.conn]:
	//
	//  if err := fd.incref(); err != nil {
	//  	return err
	//  }
	//  defer fd.decref()
	//  f(uintptr(fd.Sysfd))
	//  return nil
	if err := rc.Control(func(fd uintptr) {
		result = picked(int(fd))
	}); err != nil {
		return Gone // already closed on our side
	}
	return result
}

func connToFD(raw net.Conn) syscall.RawConn {
	for {
		if t, ok := raw.(interface{ NetConn() net.Conn }); ok {
			// is *tls.Conn or polyfilled TLS Connection
			raw = t.NetConn()
		} else if t, ok := raw.(interface{ Raw() net.Conn }); ok {
			// pooled connections
			raw = t.Raw()
		} else {
			break
		}
	}
	if c, ok := raw.(syscall.Conn); ok {
		if c, err := c.SyscallConn(); err == nil {
			return c
		}
	}
	return nil
}
