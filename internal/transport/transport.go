package transport

import (
	"bufio"
	"io"

	"github.com/frankli0324/go-httpd/internal/model"
)

type Transport interface {
	ReadRequest(r *bufio.Reader, req *model.Request) error
	WriteResponse(w io.Writer, resp *model.PreparedResponse) error
}

// DefaultMaxHeaderBytes matches net/http.DefaultMaxHeaderBytes
const DefaultMaxHeaderBytes = 1 << 20

// HTTP1 returns the HTTP/1.x codec. A maxHeaderBytes of 0 means
// [DefaultMaxHeaderBytes].
func HTTP1(maxHeaderBytes int) Transport {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	return &http1{maxHeaderBytes: maxHeaderBytes}
}
