package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/collabedit/internal/app"
	"github.com/dshills/collabedit/internal/collab/discovery"
	"github.com/dshills/collabedit/internal/collab/session"
	"github.com/dshills/collabedit/internal/config"
	"github.com/dshills/collabedit/internal/document"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
	"github.com/dshills/collabedit/internal/logging"
)

func runJoin(args []string) int {
	var common commonFlags
	var url, doc, name string

	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&url, "url", "", "Document URL, e.g. ws://host:8080/docs/notes (default: discover a hub)")
	fs.StringVar(&doc, "doc", "", "Document name on a discovered hub")
	fs.StringVar(&name, "name", "", "Nickname (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if url != "" {
		cfg.Session.URL = url
	}
	if doc != "" {
		cfg.Session.Document = doc
	}
	if name != "" {
		cfg.User.Name = name
	}

	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Session.URL == "" {
		dctx, cancel := context.WithTimeout(ctx, cfg.Session.DiscoverTimeout.Std())
		h, err := discovery.First(dctx, logger.WithComponent("discovery"))
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: no -url given and %v\n", err)
			return 1
		}
		cfg.Session.URL = h.URL(cfg.Session.Document)
		logger.Info("using discovered hub %s", h)
	}

	if err := join(ctx, cfg, common.configPath, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func join(ctx context.Context, cfg config.Config, configPath string, logger *logging.Logger) error {
	d, err := document.New(cfg.Session.Document,
		document.WithLogger(logger),
		document.WithCollapseLeadingNewline(cfg.Editor.CollapseLeadingNewline),
	)
	if err != nil {
		return err
	}
	defer d.Close()

	client, err := d.Connect(ctx, session.ClientConfig{
		URL:              cfg.Session.URL,
		Name:             cfg.User.Name,
		MaxRetries:       uint64(cfg.Session.MaxRetries),
		HandshakeTimeout: cfg.Session.HandshakeTimeout.Std(),
		Logger:           logger.WithComponent("session"),
	})
	if err != nil {
		return fmt.Errorf("joining %s: %w", cfg.Session.URL, err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer screen.Fini()

	// The loop stops when the hub goes away, ending Run.
	go func() {
		select {
		case <-client.Done():
			d.Loop().Stop()
		case <-ctx.Done():
		}
	}()

	if w := watchConfig(configPath, d, logger); w != nil {
		defer w.Close()
		go func() { _ = w.Run(ctx) }()
	}

	application := app.New(screen, d, app.Options{
		TabWidth:        cfg.Editor.TabWidth,
		ShowAttribution: cfg.Editor.ShowAttribution,
		Peers:           func() int { return max(0, len(client.Users())-1) },
		Logger:          logger,
	})
	err = application.Run(ctx)
	screen.Fini()

	if cerr := client.Err(); cerr != nil {
		return fmt.Errorf("session ended: %w", cerr)
	}
	if derr := d.Err(); derr != nil {
		return derr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchConfig reloads the log level when the config file changes and
// announces the reload on the document bus.
func watchConfig(path string, d *document.Document, logger *logging.Logger) *config.Watcher {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, func(cfg config.Config, err error) {
		_ = d.Post(func() {
			if err == nil {
				logger.SetLevel(cfg.LogLevel())
			}
			_ = d.Bus().Publish(context.Background(), event.NewEvent(events.TopicConfigReloaded, events.ConfigReloaded{
				Path: path,
				Err:  err,
			}, d.Bus().Source()))
		})
	}, config.WithWatchLogger(logger.WithComponent("config")))
	if err != nil {
		logger.Warn("not watching %s: %v", path, err)
		return nil
	}
	return w
}
