package transport

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/frankli0324/go-httpd/internal/model"
)

var (
	ErrHeaderTooLarge = errors.New("request head too large")
	ErrEmptyRequest   = errors.New("connection closed before request line")
)

type http1 struct {
	maxHeaderBytes int
}

// ReadRequest collects lines into req until the first empty line. An EOF
// after at least one line ends the head as if the empty line had been sent.
func (t *http1) ReadRequest(r *bufio.Reader, req *model.Request) error {
	remaining := t.maxHeaderBytes
	for {
		line, err := readLine(r, &remaining)
		if err != nil {
			if err == io.EOF {
				if len(req.Lines) > 0 {
					break
				}
				return ErrEmptyRequest
			}
			return err
		}
		if len(line) == 0 {
			break
		}
		req.Lines = append(req.Lines, line)
	}
	parseHead(req)
	return nil
}

// similar to readLineSlice() in net/textproto/reader.go, with a byte budget
func readLine(r *bufio.Reader, remaining *int) (string, error) {
	var line []byte
	for {
		l, more, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if *remaining -= len(l) + 2; *remaining < 0 {
			return "", ErrHeaderTooLarge
		}
		if line == nil && !more {
			return string(l), nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return string(line), nil
}

// parseHead fills the structured fields of req from its lines. Malformed
// lines are kept in req.Lines but otherwise ignored, classification works on
// the raw request line.
func parseHead(req *model.Request) {
	if method, rest, ok := strings.Cut(req.Line(), " "); ok {
		if target, proto, ok := strings.Cut(rest, " "); ok {
			req.Method, req.Target, req.Proto = method, target, proto
		}
	}
	req.Header = make(http.Header, len(req.Lines))
	for _, l := range req.Lines[min(1, len(req.Lines)):] {
		k, v, ok := strings.Cut(l, ":")
		if !ok || !httpguts.ValidHeaderFieldName(k) {
			continue
		}
		v = textproto.TrimString(v)
		if !httpguts.ValidHeaderFieldValue(v) {
			continue
		}
		req.Header.Add(textproto.CanonicalMIMEHeaderKey(k), v)
	}
}

// WriteResponse writes the whole response and flushes it, e.g.:
//
//	HTTP/1.1 200 OK\r\n
//	Content-Length: 13\r\n
//	\r\n
//	<h1>hi</h1>\r\n
func (t *http1) WriteResponse(w io.Writer, r *model.PreparedResponse) error {
	bw := bufio.NewWriter(w) // default bufsize is 4096

	bw.WriteString(r.StatusLine)
	bw.WriteString("\r\n")
	bw.WriteString("Content-Length: ")
	bw.WriteString(strconv.FormatInt(r.ContentLength, 10))
	bw.WriteString("\r\n")
	for k, v := range r.Header {
		for _, v := range v {
			bw.WriteString(k)
			bw.WriteString(": ")
			bw.WriteString(v)
			bw.WriteString("\r\n")
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	n, err := io.Copy(bw, r.GetBody())
	if err != nil {
		return err
	}
	if n != r.ContentLength {
		return io.ErrShortWrite
	}
	return bw.Flush()
}
