package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
)

func newNodesCmd(opts *options) *cobra.Command {
	var capability string

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the hub's nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.oneShot(cmd, func(ctx context.Context, client *session.Client) error {
				nodes, err := client.Nodes(ctx)
				if err != nil {
					return err
				}
				printNodes(opts.out, filterNodes(nodes, capability))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&capability, "capability", "", "Only list nodes with this capability, e.g. SwitchBinary")
	return cmd
}

func newNodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id|name>",
		Short: "Show one node and its attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.oneShot(cmd, func(ctx context.Context, client *session.Client) error {
				d, err := findNode(ctx, client, args[0])
				if err != nil {
					return err
				}
				printNode(opts.out, d)
				return nil
			})
		},
	}
}

func newRefreshCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the full hub snapshot and print the node count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.oneShot(cmd, func(ctx context.Context, client *session.Client) error {
				if err := client.RefreshAll(ctx); err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "%d nodes\n", client.Stats().Devices)
				return nil
			})
		},
	}
}

// nodeLookup is the part of the client findNode needs.
type nodeLookup interface {
	Node(ctx context.Context, id int) (*homee.Device, error)
	NodeByName(ctx context.Context, name string) (*homee.Device, error)
}

// findNode resolves a node by numeric id, falling back to its name.
func findNode(ctx context.Context, client nodeLookup, ref string) (*homee.Device, error) {
	var (
		d   *homee.Device
		err error
	)
	if id, convErr := strconv.Atoi(ref); convErr == nil {
		d, err = client.Node(ctx, id)
	} else {
		d, err = client.NodeByName(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("node %q not found", ref)
	}
	return d, nil
}

func filterNodes(nodes []*homee.Device, capability string) []*homee.Device {
	if capability == "" {
		return nodes
	}
	out := make([]*homee.Device, 0, len(nodes))
	for _, d := range nodes {
		if d.Implements(capability) {
			out = append(out, d)
		}
	}
	return out
}

func printNodes(w io.Writer, nodes []*homee.Device) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tATTRIBUTES\tCAPABILITIES")
	for _, d := range nodes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID(), d.Name(), len(d.Properties()), strings.Join(d.Implemented(), ","))
	}
	tw.Flush()
}

func printNode(w io.Writer, d *homee.Device) {
	fmt.Fprintf(w, "Node %d: %s\n", d.ID(), d.Name())
	if caps := d.Capabilities().Names(); len(caps) > 0 {
		fmt.Fprintf(w, "Capabilities: %s\n", strings.Join(caps, ", "))
	}
	if brain, ok := d.HomeeBrain(); ok {
		if mode, ok := brain.Mode(); ok {
			fmt.Fprintf(w, "Mode: %s\n", mode)
		}
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTR\tTYPE\tINST\tVALUE\tTARGET\tUNIT\tRANGE\tRW")
	for _, p := range d.Properties() {
		lo, step, hi := p.Scale()
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			p.ID(), p.Name(), p.Instance(),
			formatValue(p.Value()), formatValue(p.TargetValue()),
			p.Unit(), formatRange(lo, step, hi), rwFlag(p.Editable()))
	}
	tw.Flush()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func formatRange(lo, step, hi float64) string {
	if lo == 0 && hi == 0 {
		return "-"
	}
	return fmt.Sprintf("%s..%s/%s", formatValue(lo), formatValue(hi), formatValue(step))
}

func rwFlag(editable bool) string {
	if editable {
		return "rw"
	}
	return "r"
}
