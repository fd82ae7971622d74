package chunked

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// NewChunkedReader decodes a chunked body from r. It returns io.EOF after the
// last-chunk line, leaving the trailer section unread in r.
func NewChunkedReader(r io.Reader) io.Reader {
	var br *bufio.Reader
	if v, ok := r.(*bufio.Reader); ok {
		br = v
	} else {
		br = bufio.NewReader(r)
	}
	return &chunkedReader{r: br}
}

// the bufio.Reader is not embedded, or its WriteTo would be promoted and
// io.Copy would bypass decoding.
type chunkedReader struct {
	r                              *bufio.Reader
	currentChunk                   io.Reader
	currentCount, currentChunkSize int64
	done                           bool // last-chunk seen
}

func (c *chunkedReader) readChunkHeader() (size uint64, err error) {
	var line []byte
	isPref := true
	for isPref {
		var l []byte
		l, isPref, err = c.r.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		line = append(line, l...)
		if len(line) > 4096 {
			return 0, errors.New("http chunk header too long")
		}
	}
	// chunk extensions are ignored
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, " \t")
	if len(line) == 0 {
		return 0, errors.New("empty chunk length")
	}
	if len(line) > 16 {
		return 0, errors.New("http chunk length too large")
	}
	for _, b := range line {
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, errors.New("invalid byte in chunk length")
		}
		size <<= 4
		size |= uint64(b)
	}
	return
}

func (c *chunkedReader) Read(p []byte) (n int, err error) {
	if c.done {
		return 0, io.EOF
	}
	if c.currentChunk == nil {
		l, err := c.readChunkHeader()
		if err != nil {
			return n, err
		}
		if l == 0 {
			c.done = true
			return 0, io.EOF
		}
		c.currentChunk = io.LimitReader(c.r, int64(l))
		c.currentChunkSize = int64(l)
	}
	n, err = c.currentChunk.Read(p)
	c.currentCount += int64(n)
	if err == io.EOF {
		if c.currentCount != c.currentChunkSize {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
		dr, _ := c.r.ReadByte()
		dn, err := c.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, err
		}
		if dr != '\r' || dn != '\n' {
			return n, errors.New("malformed chunked encoding")
		}
		c.currentChunk = nil
		c.currentCount = 0
	}
	return
}
