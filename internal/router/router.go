// package router holds the immutable table mapping request lines to the
// resource served for them.
package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/frankli0324/go-httpd/internal/model"
)

type MatchMode int

const (
	// MatchExact compares the request line verbatim
	MatchExact MatchMode = iota
	// MatchParsed compares method and path, ignoring protocol version and query
	MatchParsed
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "", "exact":
		return MatchExact, nil
	case "parsed":
		return MatchParsed, nil
	}
	return 0, fmt.Errorf("unknown match mode %q", s)
}

func (m MatchMode) String() string {
	if m == MatchParsed {
		return "parsed"
	}
	return "exact"
}

type Route struct {
	Line   string
	Status int
	File   string
	Delay  time.Duration

	method, path string
}

type Table struct {
	mode     MatchMode
	exact    map[string]*Route
	parsed   map[string]*Route // method + " " + path
	notFound *Route
}

// NewTable copies routes into a table. The table never changes afterwards and
// may be shared by any number of connections.
func NewTable(routes []Route, notFound Route, mode MatchMode) (*Table, error) {
	t := &Table{
		mode:   mode,
		exact:  make(map[string]*Route, len(routes)),
		parsed: make(map[string]*Route, len(routes)),
	}
	for i := range routes {
		r := routes[i]
		method, rest, ok := strings.Cut(r.Line, " ")
		path, _, ok2 := strings.Cut(rest, " ")
		if !ok || !ok2 || method == "" || path == "" {
			return nil, fmt.Errorf("malformed route line %q", r.Line)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		r.method, r.path = method, path
		if _, dup := t.exact[r.Line]; dup {
			return nil, fmt.Errorf("duplicate route %q", r.Line)
		}
		t.exact[r.Line] = &r
		// first route wins when lines only differ by protocol version
		if _, dup := t.parsed[method+" "+path]; !dup {
			t.parsed[method+" "+path] = &r
		}
	}
	if err := notFound.validate(); err != nil {
		return nil, err
	}
	t.notFound = &notFound
	return t, nil
}

func (r *Route) validate() error {
	if r.Status < 100 || r.Status > 999 {
		return fmt.Errorf("route %q: invalid status %d", r.Line, r.Status)
	}
	if r.File == "" {
		return fmt.Errorf("route %q: missing file", r.Line)
	}
	if r.Delay < 0 {
		return fmt.Errorf("route %q: negative delay", r.Line)
	}
	return nil
}

func (t *Table) Mode() MatchMode { return t.mode }

// Match never returns nil: unknown requests get the not-found route.
func (t *Table) Match(req *model.Request) *Route {
	return t.MatchMode(req, t.mode)
}

func (t *Table) MatchMode(req *model.Request, mode MatchMode) *Route {
	var r *Route
	switch mode {
	case MatchExact:
		r = t.exact[req.Line()]
	case MatchParsed:
		if req.Method != "" {
			r = t.parsed[req.Method+" "+req.Path()]
		}
	}
	if r == nil {
		return t.notFound
	}
	return r
}

// Files lists every resource file the table may serve.
func (t *Table) Files() []string {
	seen := map[string]bool{t.notFound.File: true}
	files := []string{t.notFound.File}
	for _, r := range t.exact {
		if !seen[r.File] {
			seen[r.File] = true
			files = append(files, r.File)
		}
	}
	return files
}
