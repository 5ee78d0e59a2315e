package main

import (
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"heapwalk/internal/rt"
	"heapwalk/internal/trace"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// verifyResult is the outcome for one image.
type verifyResult struct {
	Ref    string
	Report rt.Report
	Err    error
}

func newVerifyCmd(s *session) *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "verify IMAGE...",
		Short: "Check images for corrupt objects and dangling roots",
		Long: `verify scans each image's heap, then walks everything reachable from the
closure table and the static roots. Images are checked in parallel; the
command fails if any image does.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("jobs") {
				jobs = s.cfg.Verify.Jobs
			}
			results := verifyAll(cmd, s, args, jobs)
			failed := writeVerifyResults(cmd.OutOrStdout(), results)
			if failed > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d images failed verification", failed, len(results))}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel image checks (0 = GOMAXPROCS)")
	return cmd
}

// verifyAll checks refs with at most jobs images in flight. Results keep
// the argument order.
func verifyAll(cmd *cobra.Command, s *session, refs []string, jobs int) []verifyResult {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	ctx := cmd.Context()
	parent := trace.CurrentSpan(ctx)
	results := make([]verifyResult, len(refs))

	var done atomic.Int64
	hb := trace.StartHeartbeat(s.tracer, s.heartbeat, func() string {
		return fmt.Sprintf("verified %d/%d", done.Load(), len(refs))
	})
	defer hb.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(refs)))
	for i, ref := range refs {
		g.Go(func() error {
			defer done.Add(1)
			if err := gctx.Err(); err != nil {
				results[i] = verifyResult{Ref: ref, Err: err}
				return nil
			}
			span := trace.Begin(s.tracer, trace.ScopeImage, "verify-image", parent)
			results[i] = verifyOne(cmd, s, ref)
			if results[i].Err != nil {
				span.WithExtra("error", results[i].Err.Error())
			}
			span.WithExtra("image", ref).End("")
			return nil
		})
	}
	// Workers record failures in results; Wait only reports cancellation.
	_ = g.Wait()
	return results
}

func verifyOne(cmd *cobra.Command, s *session, ref string) verifyResult {
	res := verifyResult{Ref: ref}
	c, err := s.openImage(cmd, ref)
	if err != nil {
		res.Err = err
		return res
	}
	res.Err = s.timer.Measure("verify "+ref, func() error {
		var err error
		res.Report, err = c.Verify()
		return err
	})
	return res
}

// writeVerifyResults prints one line per image and returns the number of
// failures.
func writeVerifyResults(w io.Writer, results []verifyResult) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", failColor.Sprint("FAIL"), r.Ref, r.Err)
			continue
		}
		st := r.Report.Stats
		fmt.Fprintf(w, "%s   %s: %d objects, %d bytes, %d reachable, %d closures, %d static roots\n",
			okColor.Sprint("ok"), r.Ref, st.Objects, st.Bytes, r.Report.Reachable,
			r.Report.ClosureEntries, r.Report.StaticRoots)
	}
	return failed
}
