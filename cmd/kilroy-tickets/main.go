// Command kilroy-tickets is the CLI entrypoint for the ticket-to-task
// workflow orchestrator (spec.md §6), grounded on the teacher's
// cmd/kilroy/main.go dispatch shape: a flat os.Args[1] switch, a
// signal-driven cancellable context, and exit codes mapped from the
// domain error taxonomy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
)

const version = "0.1.0"

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("stopped by signal %s", sig.String()))
			case <-stopCh:
				return
			}
		}
	}()
	cleanup := func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel(nil)
	}
	return ctx, cleanup
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(int(ferrors.ExitGeneral))
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("kilroy-tickets %s\n", version)
		os.Exit(0)
	case "ticket":
		ticketCmd(os.Args[2:])
	case "workflow":
		workflowCmd(os.Args[2:])
	case "tasklist":
		tasklistCmd(os.Args[2:])
	default:
		usage()
		os.Exit(int(ferrors.ExitGeneral))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets --version")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets ticket fetch <input> [--platform <p>] [--skip-cache] [--json]")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets workflow run <ticket-input> [--fail-fast] [--parallel] [--max-parallel <n>]")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets workflow resume --tasklist <file> --run-dir <dir>")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets tasklist parse <file>")
	fmt.Fprintln(os.Stderr, "  kilroy-tickets tasklist format <file>")
}

// exitWithErr maps a domain error to its exit code and prints it to stderr.
func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(int(ferrors.ExitCodeFor(err)))
}
