//go:build darwin || linux

package nettools

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func tcpPair(t *testing.T) (client, server net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server = <-accepted
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return
}

func eventually(t *testing.T, c net.Conn, want Liveness) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	got := Probe(c)
	for got != want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		got = Probe(c)
	}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProbe(t *testing.T) {
	for _, mode := range []Mode{ModePoll, ModeSelect} {
		if !Use(mode) {
			t.Fatalf("mode %d unsupported", mode)
		}
		client, server := tcpPair(t)
		if got := Probe(server); got != Alive {
			t.Errorf("idle: got %v", got)
		}

		client.Write([]byte("pending"))
		eventually(t, server, Alive)
	}
	Use(ModePoll)
}

func TestProbeHangup(t *testing.T) {
	for _, mode := range []Mode{ModePoll, ModeSelect} {
		Use(mode)
		client, server := tcpPair(t)
		client.Close()
		eventually(t, server, HalfClosed)
	}
	Use(ModePoll)
}

func TestProbeHalfClosed(t *testing.T) {
	client, server := tcpPair(t)
	client.(*net.TCPConn).CloseWrite()
	eventually(t, server, HalfClosed)
	// the peer can still read
	if _, err := server.Write([]byte("late")); err != nil {
		t.Fatal(err)
	}
	b := make([]byte, 4)
	if _, err := io.ReadFull(client, b); err != nil || string(b) != "late" {
		t.Errorf("got %q, %v", b, err)
	}
}

func TestProbeReset(t *testing.T) {
	for _, mode := range []Mode{ModePoll, ModeSelect} {
		Use(mode)
		client, server := tcpPair(t)
		client.(*net.TCPConn).SetLinger(0) // close sends RST
		client.Close()
		eventually(t, server, Gone)
	}
	Use(ModePoll)
}

func TestProbeClosedLocally(t *testing.T) {
	_, server := tcpPair(t)
	server.Close()
	if got := Probe(server); got != Gone {
		t.Errorf("got %v", got)
	}
}

func TestProbeUnknown(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if got := Probe(a); got != Unknown {
		t.Errorf("got %v", got)
	}
}

type wrapped struct{ net.Conn }

func (w wrapped) Raw() net.Conn { return w.Conn }

func TestProbeUnwraps(t *testing.T) {
	client, server := tcpPair(t)
	client.(*net.TCPConn).SetLinger(0)
	client.Close()
	eventually(t, wrapped{server}, Gone)
}

func TestListenReusePort(t *testing.T) {
	ln1, err := Listen(context.Background(), "127.0.0.1:0", true)
	if err != nil {
		t.Fatal(err)
	}
	defer ln1.Close()
	ln2, err := Listen(context.Background(), ln1.Addr().String(), true)
	if err != nil {
		t.Fatalf("second bind with SO_REUSEPORT failed: %v", err)
	}
	ln2.Close()

	if ln3, err := Listen(context.Background(), ln1.Addr().String(), false); err == nil {
		ln3.Close()
		t.Error("bind without SO_REUSEPORT should fail")
	}
}
