package httpd

import (
	"github.com/frankli0324/go-httpd/internal"
)

var ErrServerClosed = internal.ErrServerClosed

// errors a [Server] logs, they never reach the caller of Serve
type (
	AcceptError       = internal.AcceptError
	ReadError         = internal.ReadError
	WriteError        = internal.WriteError
	FileNotFoundError = internal.FileNotFoundError
)
