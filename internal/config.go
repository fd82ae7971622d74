package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/astaxie/beego/config"

	"github.com/frankli0324/go-httpd/internal/router"
)

const (
	ModePool = "pool" // fixed set of workers fed from a queue
	ModeTask = "task" // one goroutine per connection
)

// Config is read once by [NewServer]. Changing it afterwards has no effect.
type Config struct {
	Addr      string
	Resources string
	Mode      string
	Workers   uint
	Queue     uint
	MaxConns  int // task mode only, 0 is unlimited

	ReadTimeout    time.Duration // 0 waits forever
	MaxHeaderBytes int
	Match          router.MatchMode
	H2C            bool
	ReusePort      bool
	ProbePeer      bool

	Routes        []router.Route
	NotFound      router.Route
	InternalError router.Route // its File may be missing, a built-in body is used then
}

func DefaultConfig() *Config {
	return &Config{
		Addr:      "127.0.0.1:8080",
		Resources: "resources",
		Mode:      ModePool,
		Workers:   4,
		Queue:     16,
		H2C:       true,
		ProbePeer: true,
		Routes: []router.Route{
			{Line: "GET / HTTP/1.1", Status: 200, File: "index.html"},
			{Line: "GET /sleep HTTP/1.1", Status: 200, File: "index.html", Delay: 5 * time.Second},
		},
		NotFound:      router.Route{Status: 404, File: "404.html"},
		InternalError: router.Route{Status: 500, File: "500.html"},
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: empty addr")
	}
	switch c.Mode {
	case ModePool:
		if c.Workers == 0 {
			return errors.New("config: pool mode needs at least one worker")
		}
	case ModeTask:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.MaxConns < 0 || c.MaxHeaderBytes < 0 || c.ReadTimeout < 0 {
		return errors.New("config: negative limit")
	}
	return nil
}

// LoadConfig reads an ini file on top of [DefaultConfig], e.g.:
//
//	[server]
//	addr = 127.0.0.1:8080
//	mode = pool
//	workers = 4
//	routes = index;sleep
//
//	[route.index]
//	line = "GET / HTTP/1.1"
//	status = 200
//	file = index.html
//
//	[route.sleep]
//	line = "GET /sleep HTTP/1.1"
//	file = index.html
//	delay = 5s
//
// values may reference environment variables as ${NAME}.
func LoadConfig(filename string) (*Config, error) {
	cnf, err := config.NewConfig("ini", filename)
	if err != nil {
		return nil, err
	}
	return parseConfig(cnf)
}

func ParseConfig(data []byte) (*Config, error) {
	cnf, err := config.NewConfigData("ini", data)
	if err != nil {
		return nil, err
	}
	return parseConfig(cnf)
}

func parseConfig(cnf config.Configer) (*Config, error) {
	c := DefaultConfig()
	var err error
	c.Addr = cnf.DefaultString("server::addr", c.Addr)
	c.Resources = cnf.DefaultString("server::resources", c.Resources)
	c.Mode = strings.ToLower(cnf.DefaultString("server::mode", c.Mode))
	workers := cnf.DefaultInt("server::workers", int(c.Workers))
	queue := cnf.DefaultInt("server::queue", int(c.Queue))
	if workers < 0 || queue < 0 {
		return nil, errors.New("config: negative workers or queue")
	}
	c.Workers, c.Queue = uint(workers), uint(queue)
	c.MaxConns = cnf.DefaultInt("server::max_conns", c.MaxConns)
	c.MaxHeaderBytes = cnf.DefaultInt("server::max_header_bytes", c.MaxHeaderBytes)
	c.H2C = cnf.DefaultBool("server::h2c", c.H2C)
	c.ReusePort = cnf.DefaultBool("server::reuse_port", c.ReusePort)
	c.ProbePeer = cnf.DefaultBool("server::probe_peer", c.ProbePeer)
	if c.ReadTimeout, err = duration(cnf, "server::read_timeout", c.ReadTimeout); err != nil {
		return nil, err
	}
	if c.Match, err = router.ParseMatchMode(cnf.String("server::match")); err != nil {
		return nil, err
	}

	if names := cnf.Strings("server::routes"); len(names) > 0 && names[0] != "" {
		c.Routes = c.Routes[:0]
		for _, name := range names {
			r, err := parseRoute(cnf, "route."+strings.TrimSpace(name), router.Route{Status: 200})
			if err != nil {
				return nil, err
			}
			if r.Line == "" {
				return nil, fmt.Errorf("config: route %s has no line", name)
			}
			c.Routes = append(c.Routes, r)
		}
	}
	if c.NotFound, err = parseRoute(cnf, "notfound", c.NotFound); err != nil {
		return nil, err
	}
	if c.InternalError, err = parseRoute(cnf, "internalerror", c.InternalError); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// parseRoute reads a section over def. A missing section yields def.
func parseRoute(cnf config.Configer, section string, def router.Route) (router.Route, error) {
	sec, err := cnf.GetSection(strings.ToLower(section))
	if err != nil {
		return def, nil
	}
	r := def
	if v, ok := sec["line"]; ok {
		r.Line = v
	}
	if v, ok := sec["file"]; ok {
		r.File = v
	}
	if v, ok := sec["status"]; ok {
		if r.Status, err = strconv.Atoi(v); err != nil {
			return r, fmt.Errorf("config: [%s] status: %w", section, err)
		}
	}
	if v, ok := sec["delay"]; ok {
		if r.Delay, err = time.ParseDuration(v); err != nil {
			return r, fmt.Errorf("config: [%s] delay: %w", section, err)
		}
	}
	return r, nil
}

func duration(cnf config.Configer, key string, def time.Duration) (time.Duration, error) {
	v := cnf.String(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
