package httpd

import (
	"net/http"

	"github.com/frankli0324/go-httpd/internal/model"
)

type Header = http.Header
type Request = model.Request
type Response = model.Response
type PreparedResponse = model.PreparedResponse
