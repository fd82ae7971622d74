package transport_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/frankli0324/go-httpd/internal/model"
	"github.com/frankli0324/go-httpd/internal/transport"
	"github.com/frankli0324/go-httpd/internal/transport/chunked"
)

type tCase struct {
	data  string
	lines []string
	rest  string
}

var reqShouldBe = map[string]tCase{
	"CRLF": {
		data:  "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n",
		lines: []string{"GET / HTTP/1.1", "Host: localhost"},
	},
	"BareLF": {
		data:  "GET /sleep HTTP/1.1\nHost: localhost\n\n",
		lines: []string{"GET /sleep HTTP/1.1", "Host: localhost"},
	},
	"StopsAtFirstBlank": {
		data:  "GET / HTTP/1.1\r\n\r\nbody bytes",
		lines: []string{"GET / HTTP/1.1"},
		rest:  "body bytes",
	},
	"EOFEndsHead": {
		data:  "GET / HTTP/1.1\r\nHost: x",
		lines: []string{"GET / HTTP/1.1", "Host: x"},
	},
	"EmptyHead": {
		data:  "\r\n",
		lines: nil,
	},
	"Preface": {
		data:  "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n",
		lines: []string{model.PrefaceLine},
		rest:  "SM\r\n\r\n",
	},
}

func TestReadRequest(t *testing.T) {
	for name, cas := range reqShouldBe {
		tCase := cas
		t.Run(name, func(t *testing.T) {
			br := bufio.NewReader(iotest.HalfReader(strings.NewReader(tCase.data)))
			req := &model.Request{}
			if err := transport.HTTP1(0).ReadRequest(br, req); err != nil {
				t.Fatal(err)
			}
			if strings.Join(req.Lines, "|") != strings.Join(tCase.lines, "|") {
				t.Errorf("got lines %q, want %q", req.Lines, tCase.lines)
			}
			rest, _ := io.ReadAll(br)
			if string(rest) != tCase.rest {
				t.Errorf("got rest %q, want %q", rest, tCase.rest)
			}
		})
	}
}

func TestReadRequestParsesHead(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET /x?y=1 HTTP/1.0\r\nx-thing:  v \r\nbad header\r\n\r\n"))
	req := &model.Request{}
	if err := transport.HTTP1(0).ReadRequest(br, req); err != nil {
		t.Fatal(err)
	}
	if req.Method != "GET" || req.Target != "/x?y=1" || req.Proto != "HTTP/1.0" || req.Path() != "/x" {
		t.Errorf("bad request line parse: %+v", req)
	}
	if req.Header.Get("X-Thing") != "v" {
		t.Errorf("got header %q", req.Header.Get("X-Thing"))
	}
	if len(req.Header) != 1 {
		t.Errorf("malformed header kept: %v", req.Header)
	}
}

func TestReadRequestErrors(t *testing.T) {
	readErr := errors.New("connection reset")
	for name, c := range map[string]struct {
		r    io.Reader
		want error
	}{
		"Empty":   {strings.NewReader(""), transport.ErrEmptyRequest},
		"Broken":  {iotest.ErrReader(readErr), readErr},
		"TooLong": {strings.NewReader("GET /" + strings.Repeat("a", 200) + " HTTP/1.1\r\n\r\n"), transport.ErrHeaderTooLarge},
		"MidHead": {io.MultiReader(strings.NewReader("GET / HTTP/1.1\r\n"), iotest.ErrReader(readErr)), readErr},
	} {
		c := c
		t.Run(name, func(t *testing.T) {
			err := transport.HTTP1(64).ReadRequest(bufio.NewReader(c.r), &model.Request{})
			if !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
		})
	}
}

func TestWriteResponse(t *testing.T) {
	pr, err := (&model.Response{StatusCode: 200, Body: "<h1>hello</h1>\n"}).Prepare()
	if err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	if err := transport.HTTP1(0).WriteResponse(buf, pr); err != nil {
		t.Fatal(err)
	}
	if err := iotest.TestReader(buf, []byte("HTTP/1.1 200 OK\r\nContent-Length: 15\r\n\r\n<h1>hello</h1>\n")); err != nil {
		t.Error(err)
	}
}

func TestWriteResponseBrokenPipe(t *testing.T) {
	pr, _ := (&model.Response{StatusCode: 404, Body: strings.Repeat("x", 8192)}).Prepare()
	if err := transport.HTTP1(0).WriteResponse(failWriter{}, pr); err == nil {
		t.Error("expected write error")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestDrainBody(t *testing.T) {
	chunkedBody := new(bytes.Buffer)
	cw := chunked.NewChunkedWriter(chunkedBody)
	cw.Write([]byte("some request body"))
	cw.Close()

	for name, head := range map[string]string{
		"ContentLength": "POST / HTTP/1.1\r\nContent-Length: 17\r\n\r\nsome request body",
		"Chunked":       "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" + chunkedBody.String(),
		"NoBody":        "GET / HTTP/1.1\r\n\r\n",
	} {
		head := head
		t.Run(name, func(t *testing.T) {
			br := bufio.NewReader(strings.NewReader(head + "NEXT"))
			req := &model.Request{}
			if err := transport.HTTP1(0).ReadRequest(br, req); err != nil {
				t.Fatal(err)
			}
			if err := transport.DrainBody(br, req); err != nil {
				t.Fatal(err)
			}
			if rest, _ := io.ReadAll(br); string(rest) != "NEXT" {
				t.Errorf("body not fully drained, rest %q", rest)
			}
		})
	}
}

func TestDrainBodyTooLarge(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("POST / HTTP/1.1\r\nContent-Length: 999999999\r\n\r\n"))
	req := &model.Request{}
	transport.HTTP1(0).ReadRequest(br, req)
	if err := transport.DrainBody(br, req); !errors.Is(err, transport.ErrBodyTooLarge) {
		t.Errorf("got %v", err)
	}
}
