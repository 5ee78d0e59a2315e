package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"heapwalk/internal/version"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	sess := &session{}
	root := newRootCmd(sess)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	sess.close(stderr, err != nil)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd(sess *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "heapwalk",
		Short: "Inspect and verify runtime heap images",
		Long: `heapwalk reads captured runtime heap images, prints their objects,
walks the graph reachable from the roots and checks it for corruption.`,
		Version:       version.Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return sess.prepare(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to heapwalk.toml (default: search upward from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.String("archive", "", "image archive database (default from config)")
	pf.Bool("timings", false, "print phase timings to stderr")
	pf.String("trace", "", "trace output file (- for stderr, .ndjson for JSON lines)")
	pf.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace event format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval for long batches (0 disables)")
	pf.String("cpuprofile", "", "write a CPU profile to file")
	pf.String("memprofile", "", "write a heap profile to file")
	pf.String("exectrace", "", "write a Go execution trace to file")

	root.AddCommand(
		newSynthCmd(sess),
		newDumpCmd(sess),
		newPrintCmd(sess),
		newTreeCmd(sess),
		newVerifyCmd(sess),
		newStatsCmd(sess),
		newArchiveCmd(sess),
		newVersionCmd(),
	)
	return root
}

// exitError carries a specific exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
