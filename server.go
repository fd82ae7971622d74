package httpd

import (
	"github.com/frankli0324/go-httpd/internal"
)

type Server = internal.Server
type Config = internal.Config
type ServerOption = internal.ServerOption

const (
	ModePool = internal.ModePool
	ModeTask = internal.ModeTask
)

var (
	NewServer       = internal.NewServer
	DefaultConfig   = internal.DefaultConfig
	LoadConfig      = internal.LoadConfig
	ParseConfig     = internal.ParseConfig
	NewLogger       = internal.NewLogger
	SetServerLogger = internal.SetServerLogger
	SetResourcesFS  = internal.SetResourcesFS
)
