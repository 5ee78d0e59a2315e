package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"heapwalk/internal/snapshot"
)

func newArchiveCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage named images in the archive database",
		Long: `archive stores images in a single bbolt database. Archived images can be
passed to any command as db:NAME.`,
	}
	cmd.AddCommand(
		newArchivePutCmd(s),
		newArchiveGetCmd(s),
		newArchiveListCmd(s),
		newArchiveRmCmd(s),
	)
	return cmd
}

func newArchivePutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "put NAME IMAGE",
		Short: "Store an image file under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := s.readImage(args[1])
			if err != nil {
				return err
			}
			ar, err := s.openArchive()
			if err != nil {
				return err
			}
			key := archiveKey(args[0])
			if err := ar.Put(key, img); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s%s\n", archivePrefix, key)
			return nil
		},
	}
}

func newArchiveGetCmd(s *session) *cobra.Command {
	var (
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Extract an archived image to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.codec(format)
			if err != nil {
				return err
			}
			ar, err := s.openArchive()
			if err != nil {
				return err
			}
			img, err := ar.Get(archiveKey(args[0]))
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(out, img, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, c.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "image file to write")
	cmd.Flags().StringVar(&format, "format", "", "image codec (msgpack|cbor), default from config")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newArchiveListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ar, err := s.openArchive()
			if err != nil {
				return err
			}
			entries, err := ar.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "archive is empty")
				return nil
			}
			t := &table{header: []string{"NAME", "CODEC", "SIZE", "XXHASH"}, right: map[int]bool{2: true}}
			for _, e := range entries {
				t.add(e.Name, e.Codec, strconv.Itoa(e.Size), fmt.Sprintf("%016x", e.Digest))
			}
			return t.write(cmd.OutOrStdout(), newStyles(s.noColor).header)
		},
	}
}

func newArchiveRmCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME...",
		Aliases: []string{"delete"},
		Short:   "Remove archived images",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := s.openArchive()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := ar.Delete(archiveKey(name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
