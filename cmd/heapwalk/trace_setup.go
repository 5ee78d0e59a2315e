package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heapwalk/internal/trace"
)

// setupTracing reads the trace flags, falling back to the [trace] section
// of the configuration, and attaches the tracer to the command context.
func setupTracing(cmd *cobra.Command, s *session) error {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}

	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return fmt.Errorf("failed to get trace-level flag: %w", err)
	}

	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return fmt.Errorf("failed to get trace-mode flag: %w", err)
	}

	formatStr, err := root.PersistentFlags().GetString("trace-format")
	if err != nil {
		return fmt.Errorf("failed to get trace-format flag: %w", err)
	}

	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	s.heartbeat, err = root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	// An explicit output without a level means "trace phases".
	if levelStr == "" {
		levelStr = s.cfg.Trace.Level
		if traceOutput != "" && (levelStr == "" || levelStr == "off") {
			levelStr = trace.LevelPhase.String()
		}
	}
	if traceOutput == "" {
		traceOutput = s.cfg.Trace.Output
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid trace level: %w", err)
	}

	if level == trace.LevelOff {
		s.tracer = trace.Nop
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return fmt.Errorf("invalid trace format: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  s.heartbeat,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	s.tracer = tracer
	s.traceMode = mode

	s.span = trace.Begin(tracer, trace.ScopeCommand, cmd.CommandPath(), 0)
	ctx := trace.WithSpan(trace.WithTracer(cmd.Context(), tracer), s.span)
	cmd.SetContext(ctx)
	root.SetContext(ctx)
	return nil
}
