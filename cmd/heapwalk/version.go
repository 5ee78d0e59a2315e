package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/snapshot"
	"heapwalk/internal/version"
)

// versionPayload describes the build and the heap formats it understands.
// Images written by another build are readable when ImageSchema matches.
type versionPayload struct {
	Tool        string   `json:"tool"`
	Version     string   `json:"version"`
	ImageSchema uint16   `json:"image_schema"`
	Codecs      []string `json:"codecs"`
	ObjectTags  int      `json:"object_tags"`
	WordSize    int      `json:"word_size"`
	GitCommit   string   `json:"git_commit,omitempty"`
	BuildDate   string   `json:"build_date,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var (
		outFormat string
		showHash  bool
		showDate  bool
		showFull  bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show heapwalk build metadata and supported image formats",
		Args:  cobra.NoArgs,
		// version must work even next to a broken heapwalk.toml
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := buildPayload(showHash || showFull, showDate || showFull)
			switch strings.ToLower(outFormat) {
			case "pretty":
				return writeVersionPretty(cmd.OutOrStdout(), p)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", outFormat)
			}
		},
	}
	cmd.Flags().BoolVar(&showHash, "hash", false, "include git commit hash")
	cmd.Flags().BoolVar(&showDate, "date", false, "include build timestamp")
	cmd.Flags().BoolVar(&showFull, "full", false, "show all build metadata")
	cmd.Flags().StringVar(&outFormat, "format", "pretty", "output format (pretty|json)")
	return cmd
}

func buildPayload(withHash, withDate bool) versionPayload {
	p := versionPayload{
		Tool:        "heapwalk",
		Version:     orDefault(version.Version, "dev"),
		ImageSchema: snapshot.SchemaVersion,
		Codecs:      snapshot.CodecNames(),
		ObjectTags:  len(heap.Tags()),
		WordSize:    ptr.WordSize,
	}
	if withHash {
		p.GitCommit = orDefault(version.GitCommit, "unknown")
	}
	if withDate {
		p.BuildDate = orDefault(version.BuildDate, "unknown")
	}
	return p
}

func writeVersionPretty(out io.Writer, p versionPayload) error {
	v := p.Version
	if v == strings.TrimSpace(version.Version) {
		v = version.Colored()
	}
	rows := [][2]string{
		{"image schema", strconv.Itoa(int(p.ImageSchema))},
		{"codecs", strings.Join(p.Codecs, ", ") + " (default " + p.Codecs[0] + ")"},
		{"object tags", strconv.Itoa(p.ObjectTags)},
		{"word size", strconv.Itoa(p.WordSize) + " bytes"},
	}
	if p.GitCommit != "" {
		rows = append(rows, [2]string{"commit", p.GitCommit})
	}
	if p.BuildDate != "" {
		rows = append(rows, [2]string{"built", p.BuildDate})
	}
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	if _, err := fmt.Fprintf(out, "heapwalk %s\n", v); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(out, "  %s  %s\n", runewidth.FillRight(r[0], width), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
