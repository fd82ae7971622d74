package netpool

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func pipe(t *testing.T) net.Conn {
	a, b := net.Pipe()
	t.Cleanup(func() { b.Close() })
	return a
}

func TestPoolServesAll(t *testing.T) {
	var served int32
	p := NewPool(3, 2, func(ctx context.Context, c net.Conn) {
		atomic.AddInt32(&served, 1)
	})
	conns := make([]net.Conn, 20)
	for i := range conns {
		conns[i] = pipe(t)
		if err := p.Serve(context.Background(), conns[i]); err != nil {
			t.Fatal(err)
		}
	}
	p.Close()
	if served != 20 {
		t.Errorf("served %d, want 20", served)
	}
	// every connection got closed by the pool
	for _, c := range conns {
		if _, err := c.Write([]byte{0}); err == nil {
			t.Error("connection left open")
		}
	}
}

func TestPoolBackpressure(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	p := NewPool(2, 1, func(ctx context.Context, c net.Conn) {
		started <- struct{}{}
		<-release
	})
	defer p.Close()

	p.Serve(context.Background(), pipe(t))
	p.Serve(context.Background(), pipe(t))
	<-started
	<-started
	if p.Busy() != 2 {
		t.Errorf("busy %d, want 2", p.Busy())
	}
	// fills the queue
	if err := p.Serve(context.Background(), pipe(t)); err != nil {
		t.Fatal(err)
	}
	if p.Queued() != 1 {
		t.Errorf("queued %d, want 1", p.Queued())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Serve(ctx, pipe(t)); err != context.DeadlineExceeded {
		t.Errorf("got %v, want blocked until deadline", err)
	}
	close(release)
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(1, 0, func(ctx context.Context, c net.Conn) {})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Serve(context.Background(), pipe(t)); err != ErrPoolClosed {
		t.Errorf("got %v", err)
	}
	if err := p.Close(); err != ErrPoolClosed {
		t.Errorf("second close: got %v", err)
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	var recovered int32
	p := NewPool(1, 1, func(ctx context.Context, c net.Conn) {
		panic("boom")
	})
	p.OnPanic = func(c net.Conn, v interface{}) {
		if v == "boom" {
			atomic.AddInt32(&recovered, 1)
		}
	}
	p.Serve(context.Background(), pipe(t))
	p.Serve(context.Background(), pipe(t))
	p.Close()
	if recovered != 2 {
		t.Errorf("recovered %d, want 2: worker should survive a panic", recovered)
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	c := &Conn{conn: pipe(t)}
	if !c.Available() {
		t.Fatal("new conn unavailable")
	}
	c.Close()
	c.Close()
	if c.Available() {
		t.Error("closed conn available")
	}
}
