package router

import (
	"github.com/frankli0324/go-httpd/internal/router"
)

// A Route maps one request line to a status, a resource file and an optional
// delay before the file is sent. The zero Delay answers immediately.
type Route = router.Route

// Table is the immutable set of routes a [Server] classifies requests with.
// Requests matching no route get the not-found route, so [Table.Match] never
// returns nil.
//
// Tables are built once and never change afterwards, which is what allows
// every connection to share one without locking.
type Table = router.Table

// MatchMode selects how request lines are compared:
//
//  1. [MatchExact] compares the whole line, "GET / HTTP/1.0" does not match
//     a route for "GET / HTTP/1.1".
//  2. [MatchParsed] compares only method and path, ignoring the protocol
//     version and the query. HTTP/2 requests are always matched this way.
type MatchMode = router.MatchMode

const (
	MatchExact  = router.MatchExact
	MatchParsed = router.MatchParsed
)

var (
	NewTable       = router.NewTable
	ParseMatchMode = router.ParseMatchMode
)
