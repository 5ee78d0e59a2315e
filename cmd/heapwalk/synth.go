package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"heapwalk/internal/snapshot"
)

func newSynthCmd(s *session) *cobra.Command {
	var (
		out    string
		elems  int
		format string
		store  string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a small synthetic heap image",
		Long: `synth lays out a closure table entry and a static root referring to an
array of boxed integers, and writes the image to a file or the archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" && store == "" {
				return errors.New("synth: one of --out or --store is required")
			}
			c, err := s.codec(format)
			if err != nil {
				return err
			}
			img, err := snapshot.Synth(elems)
			if err != nil {
				return err
			}
			size := img.HeapPointer - img.HeapBase
			if out != "" {
				if err := snapshot.WriteFile(out, img, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d heap bytes)\n", out, c.Name(), size)
			}
			if store != "" {
				ar, err := s.openArchive()
				if err != nil {
					return err
				}
				key := archiveKey(store)
				if err := ar.Put(key, img); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s%s (%d heap bytes)\n", archivePrefix, key, size)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "image file to write")
	cmd.Flags().StringVar(&store, "store", "", "archive name to store the image under")
	cmd.Flags().IntVar(&elems, "elems", 8, "number of array elements")
	cmd.Flags().StringVar(&format, "format", "", "image codec (msgpack|cbor), default from config")
	return cmd
}
