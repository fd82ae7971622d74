package transport

import (
	"bufio"
	"errors"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/frankli0324/go-httpd/internal/model"
	"github.com/frankli0324/go-httpd/internal/transport/chunked"
)

// maxDrainBytes bounds how much of a request body is read and thrown away
// before the connection is closed anyway.
const maxDrainBytes = 256 << 10

var ErrBodyTooLarge = errors.New("request body too large to drain")

// DrainBody discards the request body announced by req's headers, so that
// closing the connection after the response does not reset it while the
// peer is still reading. Bodies are only drained up to a fixed limit.
func DrainBody(r *bufio.Reader, req *model.Request) error {
	if req.Header == nil {
		return nil
	}
	if te := req.Header.Get("Transfer-Encoding"); te != "" {
		if !strings.EqualFold(textproto.TrimString(te), "chunked") {
			return errors.New("unsupported transfer encoding " + te)
		}
		n, err := io.Copy(io.Discard, io.LimitReader(chunked.NewChunkedReader(r), maxDrainBytes+1))
		if err != nil {
			return err
		}
		if n > maxDrainBytes {
			return ErrBodyTooLarge
		}
		return discardTrailer(r)
	}
	cls := req.Header.Get("Content-Length")
	if cls == "" {
		return nil
	}
	cl, err := strconv.ParseUint(textproto.TrimString(cls), 10, 63)
	if err != nil {
		return errors.New("malformed Content-Length " + strconv.Quote(cls))
	}
	if cl > maxDrainBytes {
		return ErrBodyTooLarge
	}
	_, err = io.CopyN(io.Discard, r, int64(cl))
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// discardTrailer reads the trailer section following the last chunk
func discardTrailer(r *bufio.Reader) error {
	tp := textproto.NewReader(r)
	for {
		line, err := tp.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		if line == "" {
			return nil
		}
	}
}
