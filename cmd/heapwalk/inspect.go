package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/roots"
	"heapwalk/internal/rt"
)

func newDumpCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "dump IMAGE",
		Short: "Print the closure table, static roots and every heap object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.openImage(cmd, args[0])
			if err != nil {
				return err
			}
			return s.timer.Measure("dump", func() error {
				return heap.Guard(c.Dump)
			})
		},
	}
}

func newPrintCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "print IMAGE VALUE...",
		Short: "Print values of an image",
		Long: `print renders each VALUE as the runtime debug printer would.

VALUE is "null", "int:N" for a scalar, "@ADDR" for the object at ADDR, or a
raw value word in decimal or 0x hex.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := make([]ptr.Value, 0, len(args)-1)
			for _, a := range args[1:] {
				v, err := parseValue(a)
				if err != nil {
					return err
				}
				vals = append(vals, v)
			}
			c, err := s.openImage(cmd, args[0])
			if err != nil {
				return err
			}
			for _, v := range vals {
				c.PrintValue(v)
			}
			return nil
		},
	}
}

func newTreeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "tree IMAGE [VALUE]",
		Short: "Print the object graph reachable from a value or from every root",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root *ptr.Value
			if len(args) == 2 {
				v, err := parseValue(args[1])
				if err != nil {
					return err
				}
				root = &v
			}
			c, err := s.openImage(cmd, args[0])
			if err != nil {
				return err
			}
			return s.timer.Measure("tree", func() error {
				if root != nil {
					c.Tree(*root)
					return nil
				}
				return treeRoots(cmd, c)
			})
		},
	}
}

// treeRoots prints one tree per closure table entry and static root.
func treeRoots(cmd *cobra.Command, c *rt.Context) error {
	out := cmd.OutOrStdout()
	if t := c.ClosureTable(); t != nil {
		for i, v := range t.All() {
			fmt.Fprintf(out, "closure %d:\n", i)
			c.Tree(v)
		}
	}
	if !c.StaticRootsValue().IsPointer() {
		return nil
	}
	sr, err := roots.LoadStaticRoots(c.Arena(), c.StaticRootsValue())
	if err != nil {
		return err
	}
	for i, v := range sr.All() {
		fmt.Fprintf(out, "static root %d:\n", i)
		c.Tree(v)
	}
	return nil
}
