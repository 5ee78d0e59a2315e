package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"heapwalk/internal/heap"
	"heapwalk/internal/scan"
)

type statsPayload struct {
	Image       string          `json:"image"`
	HeapBase    uint32          `json:"heap_base"`
	HeapPointer uint32          `json:"heap_pointer"`
	Objects     int             `json:"objects"`
	Bytes       uint64          `json:"bytes"`
	Tags        []statsTagEntry `json:"tags"`
}

type statsTagEntry struct {
	Tag   string `json:"tag"`
	Code  uint32 `json:"code"`
	Count int    `json:"count"`
	Bytes uint64 `json:"bytes"`
	Refs  int    `json:"refs"`
}

func newStatsCmd(s *session) *cobra.Command {
	var outFormat string
	cmd := &cobra.Command{
		Use:   "stats IMAGE",
		Short: "Summarize heap objects by tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat = strings.ToLower(outFormat)
			switch outFormat {
			case "table", "json":
			default:
				return fmt.Errorf("unsupported format %q (must be table or json)", outFormat)
			}
			c, err := s.openImage(cmd, args[0])
			if err != nil {
				return err
			}
			var st scan.Stats
			err = s.timer.Measure("stats", func() error {
				return heap.Guard(func() {
					st = scan.Collect(c.Arena(), c.HeapBase(), c.HeapPointer())
				})
			})
			if err != nil {
				return err
			}
			p := newStatsPayload(args[0], c.HeapBase(), c.HeapPointer(), st)
			if outFormat == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			return renderStats(cmd.OutOrStdout(), p, newStyles(s.noColor))
		},
	}
	cmd.Flags().StringVar(&outFormat, "format", "table", "output format (table|json)")
	return cmd
}

func newStatsPayload(ref string, base, hp uint32, st scan.Stats) statsPayload {
	p := statsPayload{
		Image:       ref,
		HeapBase:    base,
		HeapPointer: hp,
		Objects:     st.Objects,
		Bytes:       st.Bytes,
		Tags:        make([]statsTagEntry, 0, len(st.ByTag)),
	}
	for _, ts := range st.ByTag {
		p.Tags = append(p.Tags, statsTagEntry{
			Tag:   ts.Tag.String(),
			Code:  uint32(ts.Tag),
			Count: ts.Count,
			Bytes: ts.Bytes,
			Refs:  ts.Refs,
		})
	}
	return p
}

func renderStats(w io.Writer, p statsPayload, st styles) error {
	title := fmt.Sprintf("%s: heap %#x..%#x, %d objects, %d bytes", p.Image, p.HeapBase, p.HeapPointer, p.Objects, p.Bytes)
	if _, err := fmt.Fprintln(w, st.title.Render(title)); err != nil {
		return err
	}
	t := &table{
		header: []string{"TAG", "CODE", "COUNT", "BYTES", "REFS"},
		right:  map[int]bool{1: true, 2: true, 3: true, 4: true},
	}
	for _, e := range p.Tags {
		t.add(e.Tag,
			strconv.FormatUint(uint64(e.Code), 10),
			strconv.Itoa(e.Count),
			strconv.FormatUint(e.Bytes, 10),
			strconv.Itoa(e.Refs))
	}
	return t.write(w, st.header)
}
