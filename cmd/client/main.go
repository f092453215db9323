package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/taskkeeper/internal/client/api"
	"github.com/iudanet/taskkeeper/internal/client/cli"
	"github.com/iudanet/taskkeeper/internal/client/iocli"
	"github.com/iudanet/taskkeeper/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	stdio := iocli.NewStdio()

	fs := flag.NewFlagSet("taskkeeper", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	showVersion := fs.Bool("version", false, "Show version information")
	serverURL := fs.String("server", "http://localhost:8000", "Server URL")
	dbPath := fs.String("db", "taskkeeper-client.db", "Path to local session database")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		printVersion()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close database: %v\n", err)
		}
	}()

	c := cli.New(stdio, api.NewClient(*serverURL, sessions), os.Getenv)
	if err := c.Run(ctx, fs.Args()); err != nil {
		if errors.Is(err, api.ErrNotLoggedIn) {
			fmt.Fprintln(os.Stderr, "Error: not logged in. Please run 'taskkeeper login' first")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("TaskKeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
