package model

import (
	"net/http"
)

// Request is the head of one request as read off the wire. Lines holds every
// line up to, but not including, the first empty line.
type Request struct {
	Lines []string

	Method string
	Target string
	Proto  string
	Header http.Header

	RemoteAddr string
}

// Line returns the request line, or "" for an empty head.
func (r *Request) Line() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// Path returns the request target without its query.
func (r *Request) Path() string {
	p := r.Target
	for i := 0; i < len(p); i++ {
		if p[i] == '?' || p[i] == '#' {
			return p[:i]
		}
	}
	return p
}

const PrefaceLine = "PRI * HTTP/2.0"

// IsPreface reports whether the head is the first half of the HTTP/2 client
// connection preface ("PRI * HTTP/2.0\r\n\r\n").
func (r *Request) IsPreface() bool {
	return len(r.Lines) == 1 && r.Lines[0] == PrefaceLine
}

type Response struct {
	Proto      string
	Status     string
	StatusCode int
	Header     http.Header

	Body interface{}
}
