package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	httpd "github.com/frankli0324/go-httpd"
)

var (
	configFile = flag.String("config", "", "ini config file, defaults are used when empty")
	addr       = flag.String("addr", "", "listen address, overrides the config file")
	resources  = flag.String("resources", "", "directory holding the response bodies")
	mode       = flag.String("mode", "", "concurrency model: pool or task")
	workers    = flag.Uint("workers", 0, "pool size in pool mode")
	logLevel   = flag.String("log-level", "info", "panic, fatal, error, warn, info, debug or trace")
	grace      = flag.Duration("grace", 10*time.Second, "how long shutdown waits for connections")
)

func loadConfig() (*httpd.Config, error) {
	cfg := httpd.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = httpd.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "resources":
			cfg.Resources = *resources
		case "mode":
			cfg.Mode = *mode
		case "workers":
			cfg.Workers = *workers
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	log, err := httpd.NewLogger(os.Stderr, *logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("bad log level")
	}
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	srv, err := httpd.NewServer(cfg, httpd.SetServerLogger(log))
	if err != nil {
		log.WithError(err).Fatal("creating server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), *grace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("connections closed forcibly")
		}
	}()

	if err := srv.ListenAndServe(context.Background()); !errors.Is(err, httpd.ErrServerClosed) {
		log.WithError(err).Fatal("serving")
	}
	<-stopped
}
