// package transport contains implementations to requirements on *message syntaxes*
// defined by http related RFCs, from the server's point of view.
//
// the server only ever looks at the request head: the request line plus the
// header lines up to the first empty line (RFC9112 section 2.1). lines may be
// terminated by CRLF or a bare LF, which RFC9112 section 2.2 allows a
// recipient to accept.
//
// responses are always written with a Content-Length equal to the body
// length. chunked encoding is only ever *read*, to discard request bodies.
//
// net/http components are reused on the "semantics" part ([net/http.Header],
// status texts, etc.)

package transport
