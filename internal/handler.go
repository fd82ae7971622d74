package internal

import (
	"bufio"
	"context"
	"errors"
	"net"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frankli0324/go-httpd/internal/model"
	"github.com/frankli0324/go-httpd/internal/router"
	"github.com/frankli0324/go-httpd/internal/transport"
	"github.com/frankli0324/go-httpd/internal/transport/h2c"
	"github.com/frankli0324/go-httpd/utils/nettools"
)

// time allowed for an announced request body to arrive after the response
// was written
const drainTimeout = 500 * time.Millisecond

var internalErrorBody = []byte("500 Internal Server Error\n")

// connHandler carries one connection through
//
//	readingRequest -> classified -> [delaying] -> loadingBody -> writingResponse -> closing
//
// any state may end the connection early by returning nil.
type connHandler struct {
	s    *Server
	ctx  context.Context
	conn net.Conn
	br   *bufio.Reader
	log  *logrus.Entry

	req   *model.Request
	route *router.Route
	resp  *model.PreparedResponse
}

type stateFunc func(*connHandler) stateFunc

// ServeConn runs the connection handler on c and closes it when done.
func (s *Server) ServeConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	if !s.trackConn(c, true) {
		return
	}
	defer s.trackConn(c, false)

	h := &connHandler{
		s:    s,
		ctx:  ctx,
		conn: c,
		br:   bufio.NewReader(c),
		log: s.log.WithFields(logrus.Fields{
			"remote": c.RemoteAddr().String(),
			"conn":   s.connID.Add(1),
		}),
	}
	defer func() {
		if v := recover(); v != nil {
			h.log.WithField("panic", v).Errorf("connection handler panicked\n%s", debug.Stack())
		}
	}()
	for state := stateFunc(readingRequest); state != nil; {
		state = state(h)
	}
	h.log.Debug("closed")
}

func readingRequest(h *connHandler) stateFunc {
	if d := h.s.cfg.ReadTimeout; d > 0 {
		_ = h.conn.SetReadDeadline(time.Now().Add(d))
	}
	h.req = &model.Request{RemoteAddr: h.conn.RemoteAddr().String()}
	if err := h.s.transport.ReadRequest(h.br, h.req); err != nil {
		h.log.WithError(ReadError{h.req.RemoteAddr, err}).Warn("abandoning connection")
		return nil
	}
	h.log = h.log.WithField("request", h.req.Line())
	h.log.Info("request")
	if h.req.IsPreface() && h.s.cfg.H2C {
		return servingH2
	}
	return classified
}

func classified(h *connHandler) stateFunc {
	h.route = h.s.table.Match(h.req)
	h.log.WithField("status", h.route.Status).Debug("classified")
	if h.route.Delay > 0 {
		return delaying
	}
	return loadingBody
}

func delaying(h *connHandler) stateFunc {
	if err := h.s.delay(h.ctx, h.route.Delay); err != nil {
		h.log.WithError(err).Debug("delay cancelled")
		return nil
	}
	if h.s.cfg.ProbePeer && nettools.Probe(h.conn) == nettools.Gone {
		h.log.WithError(WriteError{h.req.RemoteAddr, errPeerGone}).Warn("abandoning connection")
		return nil
	}
	return loadingBody
}

func loadingBody(h *connHandler) stateFunc {
	h.resp = h.s.respond(h.route, h.log)
	return writingResponse
}

func writingResponse(h *connHandler) stateFunc {
	if err := h.s.transport.WriteResponse(h.conn, h.resp); err != nil {
		h.log.WithError(WriteError{h.req.RemoteAddr, err}).Warn("abandoning connection")
		return nil
	}
	h.log.WithField("status", h.resp.StatusCode).Debug("response written")
	return closing
}

// closing swallows an announced request body, closing with unread data would
// reset the connection before the peer reads the response.
func closing(h *connHandler) stateFunc {
	if h.req.Header.Get("Content-Length") == "" && h.req.Header.Get("Transfer-Encoding") == "" {
		return nil
	}
	_ = h.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	if err := transport.DrainBody(h.br, h.req); err != nil {
		h.log.WithError(err).Debug("request body not drained")
	}
	return nil
}

func servingH2(h *connHandler) stateFunc {
	_ = h.conn.SetReadDeadline(time.Time{})
	h.log.Debug("switching to h2c")
	serve := func(ctx context.Context, req *model.Request) *model.PreparedResponse {
		req.RemoteAddr = h.req.RemoteAddr
		return h.s.serveStream(ctx, req)
	}
	err := h2c.Serve(h.ctx, h.conn, h.br, serve, h2c.Options{Logger: h.log})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.WithError(err).Warn("h2c connection ended")
	}
	return nil
}

// serveStream answers one HTTP/2 stream. Streams are matched by method and
// path since their request line is synthesized.
func (s *Server) serveStream(ctx context.Context, req *model.Request) *model.PreparedResponse {
	log := s.log.WithFields(logrus.Fields{"remote": req.RemoteAddr, "request": req.Line()})
	log.Info("request")
	route := s.table.MatchMode(req, router.MatchParsed)
	if route.Delay > 0 {
		if err := s.delay(ctx, route.Delay); err != nil {
			log.WithError(err).Debug("delay cancelled")
			return nil
		}
	}
	return s.respond(route, log)
}

// respond loads the body of route, falling back to the internal error
// response when it can not be read.
func (s *Server) respond(route *router.Route, log *logrus.Entry) *model.PreparedResponse {
	body, err := s.loader.Load(route.File)
	if err == nil {
		resp, err := (&model.Response{StatusCode: route.Status, Body: body}).Prepare()
		if err == nil {
			return resp
		}
		log.WithError(err).Error("preparing response")
	} else {
		log.WithError(err).Error("loading response body")
	}
	return s.internalError(log)
}

func (s *Server) internalError(log *logrus.Entry) *model.PreparedResponse {
	ie := s.cfg.InternalError
	body := internalErrorBody
	if ie.File != "" {
		if b, err := s.loader.Load(ie.File); err == nil {
			body = b
		} else {
			log.WithError(err).Debug("using built-in 500 body")
		}
	}
	status := ie.Status
	if status == 0 {
		status = 500
	}
	resp, err := (&model.Response{StatusCode: status, Body: body}).Prepare()
	if err != nil {
		resp, _ = (&model.Response{StatusCode: 500, Body: internalErrorBody}).Prepare()
	}
	return resp
}

// delay suspends the caller for d, or until ctx is done
func (s *Server) delay(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
