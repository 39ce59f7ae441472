package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seasoning/internal/app"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	// Graceful shutdown on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "seasoningd: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (app.Options, error) {
	fs := flag.NewFlagSet("seasoningd", flag.ContinueOnError)
	fs.SetOutput(output)
	var opts app.Options
	fs.StringVar(&opts.ConfigPath, "config", "config.json", "path to config.json")
	fs.StringVar(&opts.LogDir, "log-dir", "data", "directory for the log file and its archives")
	fs.StringVar(&opts.LogFile, "log-file", "seasoning.log", "log file name inside -log-dir")
	fs.DurationVar(&opts.ReadTimeout, "read-timeout", 10*time.Second, "HTTP read header timeout")
	if err := fs.Parse(args); err != nil {
		return app.Options{}, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintln(output, err)
		return app.Options{}, err
	}
	return opts, nil
}
