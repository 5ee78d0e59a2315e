package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"heapwalk/internal/abi"
	"heapwalk/internal/config"
	"heapwalk/internal/format"
	"heapwalk/internal/observ"
	"heapwalk/internal/prof"
	"heapwalk/internal/rt"
	"heapwalk/internal/snapshot"
	"heapwalk/internal/trace"
)

// archivePrefix selects an image stored in the archive instead of a file.
const archivePrefix = "db:"

// session is the state shared by one command invocation.
type session struct {
	cfg     config.Config
	cfgPath string
	noColor bool

	tracer    trace.Tracer
	span      *trace.Span
	traceMode trace.StorageMode
	heartbeat time.Duration
	timer     *observ.Timer
	prof      *prof.Session

	archiveMu   sync.Mutex
	archivePath string
	archive     *snapshot.Archive
}

func (s *session) prepare(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if cfgPath != "" {
		if s.cfg, err = config.LoadFile(cfgPath); err != nil {
			return err
		}
		s.cfgPath = cfgPath
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		if s.cfg, s.cfgPath, err = config.Load(wd); err != nil {
			return err
		}
	}

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := readColorMode(colorFlag)
	if err != nil {
		return err
	}
	s.noColor = !useColor(mode, cmd.OutOrStdout())
	color.NoColor = s.noColor

	if s.archivePath, err = flags.GetString("archive"); err != nil {
		return fmt.Errorf("failed to get archive flag: %w", err)
	}
	if s.archivePath == "" {
		s.archivePath = s.cfg.Archive.Path
	}

	timings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		s.timer = observ.NewTimer()
	}

	var popts prof.Options
	for name, dst := range map[string]*string{"cpuprofile": &popts.CPU, "memprofile": &popts.Mem, "exectrace": &popts.Trace} {
		if *dst, err = flags.GetString(name); err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
	}
	if s.prof, err = prof.Start(popts); err != nil {
		return err
	}

	return setupTracing(cmd, s)
}

// close releases everything prepare acquired. A failed command with a
// ring tracer dumps the ring so the events leading up to the failure are
// not lost.
func (s *session) close(stderr io.Writer, failed bool) {
	s.archiveMu.Lock()
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			fmt.Fprintf(stderr, "archive: close error: %v\n", err)
		}
		s.archive = nil
	}
	s.archiveMu.Unlock()

	if s.tracer != nil {
		detail := "ok"
		if failed {
			detail = "failed"
		}
		s.span.End(detail)
		if ring, ok := trace.Ring(s.tracer); ok && failed && s.traceMode == trace.ModeRing {
			fmt.Fprintf(stderr, "trace ring (last %d events):\n", ring.Len())
			if err := ring.Dump(stderr, trace.FormatText); err != nil {
				fmt.Fprintf(stderr, "trace: dump error: %v\n", err)
			}
		}
		if err := s.tracer.Flush(); err != nil {
			fmt.Fprintf(stderr, "trace: flush error: %v\n", err)
		}
		if err := s.tracer.Close(); err != nil {
			fmt.Fprintf(stderr, "trace: close error: %v\n", err)
		}
	}
	if err := s.prof.Stop(); err != nil {
		fmt.Fprintf(stderr, "prof: %v\n", err)
	}
	if s.timer != nil {
		_ = s.timer.WriteSummary(stderr)
	}
}

// host prints through the command's streams. Traps report on stderr and
// unwind as *abi.TrapError so a corrupt image fails the command instead of
// exiting the process.
func (s *session) host(cmd *cobra.Command) abi.Host {
	return &abi.StdHost{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr(), Exit: func(int) {}}
}

// formatOptions maps the dump section onto renderer options. The file
// states zero explicitly, which the renderer reads as "default", so zero
// is passed on as "none".
func (s *session) formatOptions() format.Options {
	d := s.cfg.Dump
	opts := format.Options{Capacity: d.SinkCapacity, ArrayPreview: d.ArrayPreview, InlineDepth: d.InlineDepth}
	if opts.ArrayPreview == 0 {
		opts.ArrayPreview = -1
	}
	if opts.InlineDepth == 0 {
		opts.InlineDepth = -1
	}
	return opts
}

// codec resolves name, falling back to the configured image format.
func (s *session) codec(name string) (snapshot.Codec, error) {
	if name == "" {
		name = s.cfg.Image.Format
	}
	return snapshot.CodecByName(name)
}

// openArchive opens the archive once per invocation; bbolt holds a file
// lock, so parallel readers must share the handle.
func (s *session) openArchive() (*snapshot.Archive, error) {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	if s.archive != nil {
		return s.archive, nil
	}
	c, err := s.codec("")
	if err != nil {
		return nil, err
	}
	ar, err := snapshot.OpenArchive(s.archivePath, c)
	if err != nil {
		return nil, err
	}
	s.archive = ar
	return ar, nil
}

// readImage loads ref, a file path or "db:NAME" for an archived image.
func (s *session) readImage(ref string) (*snapshot.Image, error) {
	var img *snapshot.Image
	err := s.timer.Measure("read "+ref, func() error {
		name, archived := strings.CutPrefix(ref, archivePrefix)
		if !archived {
			var err error
			img, _, err = snapshot.ReadFile(ref)
			return err
		}
		ar, err := s.openArchive()
		if err != nil {
			return err
		}
		img, err = ar.Get(archiveKey(name))
		return err
	})
	return img, err
}

// openImage reads ref and binds it to a runtime context printing through
// cmd's streams.
func (s *session) openImage(cmd *cobra.Command, ref string) (*rt.Context, error) {
	img, err := s.readImage(ref)
	if err != nil {
		return nil, err
	}
	c, err := img.Open(rt.Config{
		Host:   s.host(cmd),
		Tracer: s.tracer,
		Format: s.formatOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return c, nil
}

// archiveKey normalizes an archive name to NFC so that names typed on
// different systems address the same entry.
func archiveKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

type colorMode string

const (
	colorAuto colorMode = "auto"
	colorOn   colorMode = "on"
	colorOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorAuto, nil
	case "on":
		return colorOn, nil
	case "off":
		return colorOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func useColor(mode colorMode, out io.Writer) bool {
	switch mode {
	case colorOn:
		return true
	case colorOff:
		return false
	default:
		return os.Getenv("NO_COLOR") == "" && isTerminal(out)
	}
}
