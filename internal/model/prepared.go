package model

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var statusText = map[int]string{
	http.StatusOK:                  "OK",
	http.StatusNotFound:            "NOT FOUND",
	http.StatusInternalServerError: "INTERNAL SERVER ERROR",
}

// StatusText returns the reason phrase written on the status line. Known
// codes use the upper-case phrases clients of this server already expect.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return strings.ToUpper(http.StatusText(code))
}

// PreparedResponse is a [Response] whose body length is known. Writers must
// emit ContentLength as the Content-Length header and exactly GetBody's bytes
// after it.
type PreparedResponse struct {
	*Response

	StatusLine string
	Header     http.Header
	GetBody    func() io.Reader

	ContentLength int64
}

func (r *Response) Prepare() (*PreparedResponse, error) {
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := r.Status
	if status == "" {
		if r.StatusCode < 100 || r.StatusCode > 999 {
			return nil, fmt.Errorf("invalid status code %d", r.StatusCode)
		}
		status = strconv.Itoa(r.StatusCode) + " " + StatusText(r.StatusCode)
	}

	headers := r.Header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	// the length is always derived from the body
	for k := range headers {
		if strings.EqualFold(k, "content-length") || strings.EqualFold(k, "transfer-encoding") {
			delete(headers, k)
		}
	}

	pr := &PreparedResponse{
		Response:   r,
		StatusLine: proto + " " + status,
		Header:     headers,
	}
	if err := pr.updateBody(); err != nil {
		return nil, err
	}
	return pr, nil
}

// should only be called once at [Prepare]
func (r *PreparedResponse) updateBody() error {
	switch b := r.Response.Body.(type) {
	case nil:
		r.ContentLength = 0
		r.GetBody = func() io.Reader { return http.NoBody }
	case *bytes.Buffer:
		r.ContentLength = int64(b.Len())
		buf := b.Bytes()
		r.GetBody = func() io.Reader { return bytes.NewReader(buf) }
	case *bytes.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() io.Reader {
			r := snapshot
			return &r
		}
	case *strings.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() io.Reader {
			r := snapshot
			return &r
		}
	case string:
		r.ContentLength = int64(len(b))
		r.GetBody = func() io.Reader { return strings.NewReader(b) }
	case []byte:
		r.ContentLength = int64(len(b))
		r.GetBody = func() io.Reader { return bytes.NewReader(b) }
	default:
		return fmt.Errorf("unsupported body type: %T", r.Response.Body)
	}
	return nil
}
