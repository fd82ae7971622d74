package h2c

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/frankli0324/go-httpd/internal/model"
)

// Handler produces the response for one stream. It runs on its own goroutine
// and ctx is cancelled when the stream is reset or the connection goes away.
type Handler func(ctx context.Context, req *model.Request) *model.PreparedResponse

type Options struct {
	MaxConcurrentStreams uint32
	MaxHeaderListSize    uint32
	Logger               logrus.FieldLogger
}

// prefaceRest is what is left of the client preface once the HTTP/1 head
// reader consumed "PRI * HTTP/2.0\r\n\r\n"
var prefaceRest = strings.TrimPrefix(http2.ClientPreface, model.PrefaceLine+"\r\n\r\n")

// Serve speaks HTTP/2 with prior knowledge (RFC 9113 section 3.3) on rw. br
// must be the reader the request head was read from, positioned right after
// the "PRI * HTTP/2.0" head. Serve returns once the peer closes the
// connection and every dispatched stream finished. The caller closes rw.
func Serve(ctx context.Context, rw io.ReadWriter, br *bufio.Reader, h Handler, opts Options) error {
	rest := make([]byte, len(prefaceRest))
	if _, err := io.ReadFull(br, rest); err != nil || string(rest) != prefaceRest {
		return ErrBadPreface
	}
	return newConn(rw, br, h, opts).serve(ctx)
}

// Conn is the server side of one HTTP/2 connection. Frames are read by a
// single loop, every request is answered on its own goroutine.
type Conn struct {
	*framerMixin
	peer    *settings
	handler Handler
	opts    Options
	log     logrus.FieldLogger

	mu       sync.Mutex // guards everything below but lastStreamID
	condFlow *sync.Cond
	outflow  outflow // connection level, RFC 9113 6.9
	streams  map[uint32]*stream
	closed   bool

	lastStreamID uint32 // read loop only
	goingAway    bool   // read loop only
	wg           sync.WaitGroup
}

func newConn(w io.Writer, r io.Reader, h Handler, opts Options) *Conn {
	if opts.MaxConcurrentStreams == 0 {
		opts.MaxConcurrentStreams = 250
	}
	if opts.MaxHeaderListSize == 0 {
		opts.MaxHeaderListSize = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	c := &Conn{
		framerMixin: newFramerMixin(w, r, opts.MaxHeaderListSize),
		peer:        newPeerSettings(),
		handler:     h,
		opts:        opts,
		log:         opts.Logger,
		outflow:     outflow{n: 65535},
		streams:     make(map[uint32]*stream),
	}
	c.condFlow = sync.NewCond(&c.mu)
	c.peer.On(http2.SettingInitialWindowSize, func(old, new uint32) {
		// RFC 9113 6.9.2: adjust the window of every open stream by the difference
		delta := int32(new) - int32(old)
		c.mu.Lock()
		for _, st := range c.streams {
			st.outflow.add(delta)
		}
		c.condFlow.Broadcast()
		c.mu.Unlock()
	})
	c.peer.On(http2.SettingHeaderTableSize, func(_, new uint32) {
		c.setMaxDynamicTableSize(new)
	})
	return c
}

func (c *Conn) serve(ctx context.Context) error {
	// once ctx is done, ask the peer to leave after its open streams
	stopGoAway := context.AfterFunc(ctx, func() {
		_ = c.writeGoAway(1<<31-1, http2.ErrCodeNo, nil)
	})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The server connection preface consists of a potentially empty SETTINGS frame
	// that MUST be the first frame the server sends in the HTTP/2 connection.
	// https://httpwg.org/specs/rfc9113.html#rfc.section.3.4
	err := c.writeSettings(
		http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: c.opts.MaxConcurrentStreams},
		http2.Setting{ID: http2.SettingMaxHeaderListSize, Val: c.opts.MaxHeaderListSize},
	)
	if err == nil {
		err = c.readLoop(ctx)
	}
	stopGoAway()

	c.mu.Lock()
	c.closed = true
	c.condFlow.Broadcast()
	c.mu.Unlock()
	cancel() // nobody is left to read the responses of in-flight streams
	c.wg.Wait()
	return err
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		f, err := c.ReadFrame()
		if err != nil {
			var se http2.StreamError
			if errors.As(err, &se) {
				c.writeRSTStream(se.StreamID, se.Code)
				continue
			}
			return c.connError(err)
		}
		if err := c.processFrame(ctx, f); err != nil {
			return c.connError(err)
		}
	}
}

// connError sends GOAWAY for protocol violations. A plain EOF is the peer
// closing the connection and is not an error.
func (c *Conn) connError(err error) error {
	if err == io.EOF {
		return nil
	}
	var ce http2.ConnectionError
	if errors.As(err, &ce) {
		_ = c.writeGoAway(c.lastStreamID, http2.ErrCode(ce), nil)
	}
	return err
}

func (c *Conn) processFrame(ctx context.Context, f http2.Frame) error {
	switch f := f.(type) {
	case *http2.SettingsFrame:
		if f.IsAck() {
			return nil
		}
		if err := c.peer.UpdateFrom(f); err != nil {
			return err
		}
		return c.writeSettingsAck()
	case *http2.PingFrame:
		if f.StreamID != 0 {
			return http2.ConnectionError(http2.ErrCodeProtocol)
		}
		if !f.IsAck() {
			return c.writePing(true, f.Data)
		}
	case *http2.MetaHeadersFrame:
		return c.onHeaders(ctx, f)
	case *http2.DataFrame:
		return c.onData(f)
	case *http2.WindowUpdateFrame:
		return c.onWindowUpdate(f)
	case *http2.RSTStreamFrame:
		if st := c.stream(f.StreamID); st != nil {
			err := ErrStreamResetRemote(f.StreamID, f.ErrCode)
			c.mu.Lock()
			st.reset = err
			c.condFlow.Broadcast()
			c.mu.Unlock()
			st.cancel(err)
		}
	case *http2.GoAwayFrame:
		// streams up to now are still answered, new ones are ignored
		c.goingAway = true
	case *http2.PushPromiseFrame:
		// clients MUST NOT push
		return http2.ConnectionError(http2.ErrCodeProtocol)
	}
	return nil
}

func (c *Conn) stream(id uint32) *stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[id]
}

func (c *Conn) onHeaders(ctx context.Context, f *http2.MetaHeadersFrame) error {
	id := f.StreamID
	if st := c.stream(id); st != nil {
		// trailers, which must end the stream
		if st.dispatched || !f.StreamEnded() {
			return http2.ConnectionError(http2.ErrCodeProtocol)
		}
		c.dispatch(st)
		return nil
	}
	if id%2 == 0 || id <= c.lastStreamID {
		return http2.ConnectionError(http2.ErrCodeProtocol)
	}
	if c.goingAway {
		return nil
	}
	c.lastStreamID = id

	req, err := newRequest(f)
	if err != nil {
		c.log.WithError(err).WithField("stream", id).Debug("h2c: malformed request")
		return c.writeRSTStream(id, http2.ErrCodeProtocol)
	}

	c.mu.Lock()
	if uint32(len(c.streams)) >= c.opts.MaxConcurrentStreams {
		c.mu.Unlock()
		return c.writeRSTStream(id, http2.ErrCodeRefusedStream)
	}
	st := newStream(ctx, id, req, c.peer.Get(http2.SettingInitialWindowSize))
	c.streams[id] = st
	c.mu.Unlock()

	if f.StreamEnded() {
		c.dispatch(st)
	}
	return nil
}

// onData discards request bodies, handing the flow control credit straight
// back to the peer.
func (c *Conn) onData(f *http2.DataFrame) error {
	id, n := f.StreamID, f.Length
	if n > 0 {
		if err := c.writeWindowUpdate(0, n); err != nil {
			return err
		}
	}
	st := c.stream(id)
	if st == nil || st.dispatched {
		return c.writeRSTStream(id, http2.ErrCodeStreamClosed)
	}
	if f.StreamEnded() {
		c.dispatch(st)
	} else if n > 0 {
		return c.writeWindowUpdate(id, n)
	}
	return nil
}

func (c *Conn) onWindowUpdate(f *http2.WindowUpdateFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.condFlow.Broadcast()
	if f.StreamID == 0 {
		if !c.outflow.Refund(f.Increment) {
			return http2.ConnectionError(http2.ErrCodeFlowControl)
		}
		return nil
	}
	if st := c.streams[f.StreamID]; st != nil && !st.outflow.Refund(f.Increment) {
		st.reset = http2.StreamError{StreamID: f.StreamID, Code: http2.ErrCodeFlowControl}
		go c.writeRSTStream(f.StreamID, http2.ErrCodeFlowControl)
	}
	return nil
}

func (c *Conn) dispatch(st *stream) {
	st.dispatched = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.closeStream(st)
		resp := c.handler(st.ctx, st.req)
		if resp == nil {
			if err := context.Cause(st.ctx); errors.Is(err, ErrStreamResetRemote(st.id, 0)) {
				c.log.WithError(err).Debug("h2c: stream abandoned")
				return
			}
			c.log.WithError(ErrNoResponse(st.id)).Warn("h2c: resetting stream")
			c.writeRSTStream(st.id, http2.ErrCodeInternal)
			return
		}
		if err := c.writeResponse(st, resp); err != nil {
			c.log.WithError(err).Debug("h2c: response not delivered")
		}
	}()
}

func (c *Conn) closeStream(st *stream) {
	c.mu.Lock()
	delete(c.streams, st.id)
	c.mu.Unlock()
	st.cancel(nil)
}

// takeOutflow blocks until both the stream and the connection window have
// room, and takes at most sz bytes out of them.
func (c *Conn) takeOutflow(st *stream, sz uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return 0, ErrStreamClosed(st.id).Wrap(io.ErrClosedPipe)
		}
		if st.reset != nil {
			return 0, ErrStreamClosed(st.id).Wrap(st.reset)
		}
		if st.outflow.Available() && c.outflow.Available() {
			break
		}
		c.condFlow.Wait()
	}
	take1 := st.outflow.Pay(sz)
	take2 := c.outflow.Pay(take1)
	if take2 < take1 {
		// returning less than had, will not overflow
		st.outflow.Refund(take1 - take2)
	}
	return take2, nil
}
