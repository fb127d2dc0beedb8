package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/collabedit/internal/collab/discovery"
	"github.com/dshills/collabedit/internal/collab/hub"
	"github.com/dshills/collabedit/internal/collab/relay"
)

func runServe(args []string) int {
	var common commonFlags
	var listen, redisURL, instance string
	var advertise bool

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&listen, "listen", "", "Address to listen on (default from config, :8080)")
	fs.StringVar(&redisURL, "redis", "", "Redis URL for relaying between hub instances")
	fs.BoolVar(&advertise, "advertise", false, "Advertise the hub on the local network")
	fs.StringVar(&instance, "instance", "", "Instance name to advertise (default: hostname)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if listen != "" {
		cfg.Hub.Listen = listen
	}
	if redisURL != "" {
		cfg.Hub.Redis = redisURL
	}
	if advertise {
		cfg.Hub.Advertise = true
	}
	if instance != "" {
		cfg.Hub.Instance = instance
	}

	logger, closeLog, err := newLogger(cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCfg := hub.Config{
		Encoding:     cfg.Hub.Encoding,
		HistoryLimit: cfg.Hub.HistoryLimit,
		JoinTimeout:  cfg.Hub.JoinTimeout.Std(),
		Logger:       logger.WithComponent("hub"),
	}
	if cfg.Hub.Redis != "" {
		r, err := relay.NewRedis(ctx, cfg.Hub.Redis, logger.WithComponent("relay"))
		if err != nil {
			logger.Error("relay: %v", err)
			return 1
		}
		defer r.Close()
		hubCfg.Relay = r
		logger.Info("relaying through redis as %s", r.Instance())
	}

	srv, err := hub.New(hubCfg)
	if err != nil {
		logger.Error("hub: %v", err)
		return 1
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Hub.Listen)
	if err != nil {
		logger.Error("listen: %v", err)
		return 1
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if cfg.Hub.Advertise {
		name := cfg.Hub.Instance
		if name == "" {
			host, _ := os.Hostname()
			name = "collabedit-" + host
		}
		adv, err := discovery.Advertise(name, port)
		if err != nil {
			logger.Warn("advertise: %v", err)
		} else {
			defer adv.Shutdown()
			logger.Info("advertising %s as %q", discovery.Service, name)
		}
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	logger.Info("hub listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve: %v", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Hijacked websocket connections are closed by srv.Close.
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}
	return 0
}
