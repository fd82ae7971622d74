package internal

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/frankli0324/go-httpd/internal/resource"
	"github.com/frankli0324/go-httpd/internal/router"
	"github.com/frankli0324/go-httpd/internal/transport"
	"github.com/frankli0324/go-httpd/utils/netpool"
	"github.com/frankli0324/go-httpd/utils/nettools"
)

// Server accepts connections and hands each of them to the connection
// handler, either through a worker pool or on a goroutine of its own.
type Server struct {
	cfg       Config
	log       *logrus.Logger
	fsys      fs.FS
	table     *router.Table
	loader    *resource.Loader
	transport transport.Transport
	pool      *netpool.Pool

	ctx    context.Context // cancelled by Shutdown
	cancel context.CancelFunc
	wg     sync.WaitGroup // task mode connections
	connID atomic.Uint64

	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
	forced     bool // guarded by mu, connections are closed as soon as they start
}

type ServerOption func(*Server)

func SetServerLogger(l *logrus.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// SetResourcesFS serves resources from fsys instead of Config.Resources
func SetResourcesFS(fsys fs.FS) ServerOption {
	return func(s *Server) { s.fsys = fsys }
}

func NewServer(cfg *Config, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       *cfg,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	var err error
	if s.table, err = router.NewTable(cfg.Routes, cfg.NotFound, cfg.Match); err != nil {
		return nil, err
	}
	if s.fsys == nil {
		dir, err := filepath.Abs(cfg.Resources)
		if err != nil {
			return nil, err
		}
		s.log.WithField("dir", dir).Info("serving resources")
		s.loader = resource.Dir(dir)
	} else {
		s.loader = resource.NewLoader(s.fsys)
	}
	for _, name := range s.loader.Check(s.table.Files()...) {
		s.log.WithField("file", name).Warn("resource missing, requests for it will get 500")
	}
	s.transport = transport.HTTP1(cfg.MaxHeaderBytes)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Mode == ModePool {
		s.pool = netpool.NewPool(cfg.Workers, cfg.Queue, s.ServeConn)
		s.pool.OnPanic = func(c net.Conn, v interface{}) {
			s.log.WithFields(logrus.Fields{"remote": c.RemoteAddr().String(), "panic": v}).Error("worker panicked")
		}
	}
	return s, nil
}

// ListenAndServe listens on Config.Addr, see [Server.Serve]
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := nettools.Listen(ctx, s.cfg.Addr, s.cfg.ReusePort)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or the server is shut
// down, and closes ln before returning. Connections already accepted are
// left running, see [Server.Shutdown].
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Mode == ModeTask && s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	if !s.trackListener(ln, true) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)
	defer ln.Close()

	connCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		cancel()
		ln.Close()
	})
	defer stop()

	s.log.WithFields(logrus.Fields{
		"addr":  ln.Addr().String(),
		"mode":  s.cfg.Mode,
		"match": s.table.Mode().String(),
	}).Info("listening")
	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, time.Second)
			}
			s.log.WithError(AcceptError{err}).WithField("retry_in", backoff).Error("accept failed")
			select {
			case <-time.After(backoff):
			case <-connCtx.Done():
			}
			continue
		}
		backoff = 0
		s.dispatch(connCtx, c)
	}
}

func (s *Server) dispatch(ctx context.Context, c net.Conn) {
	if s.pool != nil {
		if s.pool.Busy() >= int(s.cfg.Workers) && s.pool.Queued() >= int(s.cfg.Queue) {
			s.log.WithFields(logrus.Fields{"busy": s.pool.Busy(), "queued": s.pool.Queued()}).Debug("pool saturated")
		}
		// blocks while every worker is busy and the queue is full
		if err := s.pool.Serve(ctx, c); err != nil {
			s.log.WithError(err).WithField("remote", c.RemoteAddr().String()).Debug("dropping connection")
			c.Close()
		}
		return
	}
	// checked under mu so that Shutdown never waits before this Add
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		s.ServeConn(ctx, c)
	}()
}

// Shutdown stops accepting, cancels pending delays and waits for connections
// to finish. Once ctx is done the remaining connections are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	for ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		if s.pool != nil {
			s.pool.Close()
		}
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	s.mu.Lock()
	s.forced = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	<-done
	return ctx.Err()
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.listeners[ln] = struct{}{}
	} else {
		delete(s.listeners, ln)
	}
	return true
}

func (s *Server) trackConn(c net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.forced {
			return false
		}
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
	return true
}

// Busy reports how many connections are being served right now
func (s *Server) Busy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
