package internal

import (
	"errors"

	"github.com/frankli0324/go-httpd/internal/resource"
)

// ErrServerClosed is returned by [Server.Serve] after [Server.Shutdown]
var ErrServerClosed = errors.New("httpd: server closed")

// FileNotFoundError is answered with a 500 response on the connection it
// happened on.
type FileNotFoundError = resource.FileNotFoundError

// AcceptError is logged, the accept loop keeps going
type AcceptError struct {
	error
}

func (e AcceptError) Error() string { return "accept: " + e.error.Error() }
func (e AcceptError) Unwrap() error { return e.error }

// ReadError means the request head could not be read. The connection is
// abandoned without a response.
type ReadError struct {
	Remote string
	error
}

func (e ReadError) Error() string { return "read request from " + e.Remote + ": " + e.error.Error() }
func (e ReadError) Unwrap() error { return e.error }

// WriteError means the peer went away before the response was delivered.
// The connection is abandoned, there is no retry.
type WriteError struct {
	Remote string
	error
}

func (e WriteError) Error() string { return "write response to " + e.Remote + ": " + e.error.Error() }
func (e WriteError) Unwrap() error { return e.error }

var errPeerGone = errors.New("peer hung up")
