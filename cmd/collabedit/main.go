// Package main is the entry point for collabedit: a hub server and a
// terminal client for shared documents.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dshills/collabedit/internal/config"
	"github.com/dshills/collabedit/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "join":
		return runJoin(args[1:])
	case "browse":
		return runBrowse(args[1:])
	case "version", "-v", "-version", "--version":
		fmt.Printf("collabedit %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return 0
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		usage(os.Stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "collabedit - shared terminal text editing\n\n")
	fmt.Fprintf(w, "Usage: collabedit <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  serve     Run a hub serving shared documents\n")
	fmt.Fprintf(w, "  join      Edit a document on a hub\n")
	fmt.Fprintf(w, "  browse    List hubs on the local network\n")
	fmt.Fprintf(w, "  version   Show version information\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  collabedit serve -listen :8080 -advertise\n")
	fmt.Fprintf(w, "  collabedit join -url ws://localhost:8080/docs/notes -name alice\n")
	fmt.Fprintf(w, "  collabedit join -doc notes          Join the first hub found nearby\n")
	fmt.Fprintf(w, "\nRun 'collabedit <command> -h' for command options.\n")
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", config.DefaultPath(), "Path to configuration file (TOML or YAML)")
	fs.StringVar(&c.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
}

// load reads the configuration and applies the log level flag.
func (c *commonFlags) load() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	if c.logLevel != "" {
		switch c.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return cfg, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.logLevel)
		}
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. When toStderr is false and no log
// file is configured, output is discarded; the terminal client owns the
// screen.
func newLogger(cfg config.Config, toStderr bool) (*logging.Logger, func(), error) {
	out := io.Discard
	closeFn := func() {}
	switch {
	case cfg.Logging.File != "":
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	case toStderr:
		out = os.Stderr
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: out,
		Prefix: "collabedit",
	})
	logging.SetDefault(logger)
	return logger, closeFn, nil
}
