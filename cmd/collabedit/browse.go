package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dshills/collabedit/internal/collab/discovery"
)

func runBrowse(args []string) int {
	var common commonFlags
	var timeout time.Duration

	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	common.register(fs)
	fs.DurationVar(&timeout, "timeout", 0, "How long to listen for hubs (default from config, 3s)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if timeout <= 0 {
		timeout = cfg.Session.DiscoverTimeout.Std()
	}
	logger, closeLog, err := newLogger(cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	hubs, err := discovery.Browse(ctx, logger.WithComponent("discovery"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(hubs) == 0 {
		fmt.Println("No hubs found.")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tADDRESS\tVERSION")
	for _, h := range hubs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Instance, h.Addr(), h.Version)
	}
	_ = tw.Flush()
	return 0
}
