package netpool

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a connection owned by the pool. Close is idempotent so that both
// the handler and the pool may close it.
type Conn struct {
	conn      net.Conn
	isClosed  uint32
	closeOnce sync.Once
	closeErr  error
}

var _ net.Conn = (*Conn)(nil)

func (c *Conn) Available() bool {
	return atomic.LoadUint32(&c.isClosed) == 0
}

func (c *Conn) Raw() net.Conn {
	return c.conn
}

func (c *Conn) Read(p []byte) (n int, err error) {
	return c.conn.Read(p)
}

func (c *Conn) Write(p []byte) (n int, err error) {
	return c.conn.Write(p)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		atomic.StoreUint32(&c.isClosed, 1)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
