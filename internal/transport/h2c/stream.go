package h2c

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http2"

	"github.com/frankli0324/go-httpd/internal/model"
)

type stream struct {
	id     uint32
	req    *model.Request
	ctx    context.Context
	cancel context.CancelCauseFunc

	dispatched bool // read loop only

	// guarded by Conn.mu
	outflow outflow
	reset   error // set once the peer sent RST_STREAM
}

func newStream(ctx context.Context, id uint32, req *model.Request, initialWindow uint32) *stream {
	ctx, cancel := context.WithCancelCause(ctx)
	return &stream{
		id:      id,
		req:     req,
		ctx:     ctx,
		cancel:  cancel,
		outflow: outflow{n: int32(initialWindow)},
	}
}

// newRequest turns a request header block into the same shape the HTTP/1
// reader produces, so that it can be classified the same way.
func newRequest(f *http2.MetaHeadersFrame) (*model.Request, error) {
	req := &model.Request{Proto: "HTTP/2.0", Header: make(http.Header)}
	for _, hf := range f.PseudoFields() {
		switch hf.Name {
		case ":method":
			req.Method = hf.Value
		case ":path":
			req.Target = hf.Value
		case ":authority":
			req.Header.Set("Host", hf.Value)
		case ":scheme":
		default:
			return nil, errors.New("invalid pseudo header " + hf.Name)
		}
	}
	if req.Method == "" || (req.Target == "" && req.Method != "CONNECT") {
		return nil, errors.New("missing :method or :path")
	}
	req.Lines = append(req.Lines, req.Method+" "+req.Target+" "+req.Proto)
	for _, hf := range f.RegularFields() {
		req.Header.Add(textproto.CanonicalMIMEHeaderKey(hf.Name), hf.Value)
		req.Lines = append(req.Lines, hf.Name+": "+hf.Value)
	}
	return req, nil
}

func (c *Conn) writeResponse(st *stream, resp *model.PreparedResponse) error {
	maxFrameSize := c.peer.Get(http2.SettingMaxFrameSize)
	hasBody := resp.ContentLength > 0
	err := c.writeHeaders(st.id, func(f func(k, v string)) {
		f(":status", strconv.Itoa(resp.StatusCode))
		f("content-length", strconv.FormatInt(resp.ContentLength, 10))
		for k, vv := range resp.Header {
			k = strings.ToLower(k)
			switch k {
			case "connection", "keep-alive", "transfer-encoding", "upgrade":
				continue // connection specific, RFC 9113 8.2.2
			}
			for _, v := range vv {
				f(k, v)
			}
		}
	}, !hasBody, maxFrameSize)
	if err != nil {
		return ErrFramerWrite(st.id).Wrap(err)
	}
	if !hasBody {
		return nil
	}

	body := resp.GetBody()
	buf := make([]byte, min(int64(maxFrameSize), resp.ContentLength))
	remaining := resp.ContentLength
	for remaining > 0 {
		n, err := io.ReadFull(body, buf[:min(int64(len(buf)), remaining)])
		if err != nil {
			c.writeRSTStream(st.id, http2.ErrCodeInternal)
			return err
		}
		chunk := buf[:n]
		for len(chunk) > 0 {
			take, err := c.takeOutflow(st, uint32(len(chunk)))
			if err != nil {
				return err
			}
			remaining -= int64(take)
			if err := c.writeData(st.id, remaining == 0, chunk[:take]); err != nil {
				return ErrFramerWrite(st.id).Wrap(err)
			}
			chunk = chunk[take:]
		}
	}
	return nil
}
