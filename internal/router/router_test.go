package router_test

import (
	"sort"
	"testing"
	"time"

	"github.com/frankli0324/go-httpd/internal/model"
	"github.com/frankli0324/go-httpd/internal/router"
)

var routes = []router.Route{
	{Line: "GET / HTTP/1.1", Status: 200, File: "index.html"},
	{Line: "GET /sleep HTTP/1.1", Status: 200, File: "index.html", Delay: 5 * time.Second},
}

var notFound = router.Route{Status: 404, File: "404.html"}

func req(line, method, target string) *model.Request {
	return &model.Request{Lines: []string{line}, Method: method, Target: target}
}

func TestMatchExact(t *testing.T) {
	tbl, err := router.NewTable(routes, notFound, router.MatchExact)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Mode() != router.MatchExact {
		t.Errorf("mode %v", tbl.Mode())
	}
	for line, want := range map[string]int{
		"GET / HTTP/1.1":      200,
		"GET /sleep HTTP/1.1": 200,
		"GET / HTTP/1.0":      404,
		"GET /?a=b HTTP/1.1":  404,
		"get / HTTP/1.1":      404,
		"GET  / HTTP/1.1":     404,
		"POST / HTTP/1.1":     404,
		"":                    404,
	} {
		if got := tbl.Match(req(line, "", "")).Status; got != want {
			t.Errorf("%q: got %d, want %d", line, got, want)
		}
	}
	if tbl.Match(req("GET /sleep HTTP/1.1", "", "")).Delay != 5*time.Second {
		t.Error("sleep route lost its delay")
	}
	if tbl.Match(&model.Request{}).File != "404.html" {
		t.Error("empty request should get the not found route")
	}
}

func TestMatchParsed(t *testing.T) {
	tbl, err := router.NewTable(routes, notFound, router.MatchParsed)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Mode() != router.MatchParsed {
		t.Errorf("mode %v", tbl.Mode())
	}
	cases := []struct {
		method, target string
		want           int
	}{
		{"GET", "/", 200},
		{"GET", "/?a=b", 200},
		{"GET", "/sleep", 200},
		{"POST", "/", 404},
		{"GET", "/index.html", 404},
		{"", "", 404},
	}
	for _, c := range cases {
		if got := tbl.Match(req("ignored", c.method, c.target)).Status; got != c.want {
			t.Errorf("%s %s: got %d, want %d", c.method, c.target, got, c.want)
		}
	}
}

func TestNewTableRejects(t *testing.T) {
	for name, rs := range map[string][]router.Route{
		"Malformed": {{Line: "GET", Status: 200, File: "a"}},
		"Duplicate": {routes[0], routes[0]},
		"Status":    {{Line: "GET / HTTP/1.1", Status: 20, File: "a"}},
		"File":      {{Line: "GET / HTTP/1.1", Status: 200}},
		"Delay":     {{Line: "GET / HTTP/1.1", Status: 200, File: "a", Delay: -1}},
	} {
		if _, err := router.NewTable(rs, notFound, router.MatchExact); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := router.NewTable(routes, router.Route{Status: 404}, router.MatchExact); err == nil {
		t.Error("not found route without file accepted")
	}
}

func TestFiles(t *testing.T) {
	tbl, _ := router.NewTable(routes, notFound, router.MatchExact)
	files := tbl.Files()
	sort.Strings(files)
	if len(files) != 2 || files[0] != "404.html" || files[1] != "index.html" {
		t.Errorf("got %v", files)
	}
}

func TestParseMatchMode(t *testing.T) {
	if m, err := router.ParseMatchMode("Parsed"); err != nil || m != router.MatchParsed {
		t.Error("parsed not recognised")
	}
	if m, err := router.ParseMatchMode(""); err != nil || m != router.MatchExact {
		t.Error("default should be exact")
	}
	if _, err := router.ParseMatchMode("regex"); err == nil {
		t.Error("unknown mode accepted")
	}
}
