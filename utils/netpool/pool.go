package netpool

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("netpool: pool closed")

type HandleFunc func(ctx context.Context, c net.Conn)

type job struct {
	ctx  context.Context
	conn *Conn
}

// Pool is a fixed set of workers pulling accepted connections from a shared
// bounded queue. Each worker serves one connection at a time. Once every
// worker is busy and the queue is full, [Pool.Serve] blocks, which stops the
// caller from accepting more.
type Pool struct {
	muClose sync.RWMutex
	closed  bool
	queue   chan job
	wg      sync.WaitGroup

	busy    int32
	handle  HandleFunc
	OnPanic func(c net.Conn, v interface{})
}

func NewPool(workers, backlog uint, handle HandleFunc) *Pool {
	if workers == 0 {
		workers = 1
	}
	p := &Pool{
		queue:  make(chan job, backlog),
		handle: handle,
	}
	p.wg.Add(int(workers))
	for i := uint(0); i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	atomic.AddInt32(&p.busy, 1)
	defer func() {
		if v := recover(); v != nil && p.OnPanic != nil {
			p.OnPanic(j.conn.Raw(), v)
		}
		j.conn.Close() // connection is ALWAYS closed
		atomic.AddInt32(&p.busy, -1)
	}()
	p.handle(j.ctx, j.conn)
}

// Serve queues c for the next free worker. The pool owns c afterwards, unless
// an error is returned.
func (p *Pool) Serve(ctx context.Context, c net.Conn) error {
	p.muClose.RLock()
	defer p.muClose.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- job{ctx, &Conn{conn: c}}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy returns the number of workers currently serving a connection
func (p *Pool) Busy() int {
	return int(atomic.LoadInt32(&p.busy))
}

// Queued returns the number of connections waiting for a worker
func (p *Pool) Queued() int {
	return len(p.queue)
}

// Close stops accepting new connections and waits for the queued and
// in-flight ones to be served.
func (p *Pool) Close() error {
	p.muClose.Lock()
	if p.closed {
		p.muClose.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.queue)
	p.muClose.Unlock()
	p.wg.Wait()
	return nil
}
