// Package main provides chromectl, a browser session manager that launches
// Chromium instances with negotiated remote debugging ports and drives them
// over HTTP, from scenario files or from the tool registry.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

// command is one chromectl subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

func commands() []command {
	return []command{
		{name: "serve", summary: "Serve the session API over HTTP", run: runServe},
		{name: "run", summary: "Run a scenario file", run: runScenario},
		{name: "ports", summary: "Show free remote debugging ports", run: runPorts},
		{name: "config", summary: "Show or edit the configuration file", run: runConfig},
		{name: "version", summary: "Print the version", run: runVersion},
	}
}

func main() {
	// Create context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		if err := c.run(ctx, args[1:], stdout); err != nil {
			fmt.Fprintf(stderr, "chromectl %s: %v\n", c.name, err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stderr, "chromectl: unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "chromectl - browser session manager\n\n")
	fmt.Fprintf(w, "Usage: chromectl <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun 'chromectl <command> -h' for command options.\n")
}

func runVersion(ctx context.Context, args []string, stdout io.Writer) error {
	fmt.Fprintf(stdout, "chromectl v%s\n", version)
	return nil
}
