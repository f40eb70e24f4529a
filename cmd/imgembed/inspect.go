package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neurlang/imgembed/net/resnet"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the parameter table of an architecture",
		Long: `Print every parameter the chosen architecture expects, with its shape.
When --weights is given the file is loaded and checked against the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(cmd)
		},
	}
	f := cmd.Flags()
	f.String("arch", resnet.DefaultArch, fmt.Sprintf("network architecture %v", resnet.Archs()))
	f.String("weights", "", "weight file to validate")
	return cmd
}

func (a *app) inspect(cmd *cobra.Command) error {
	rc, err := resnet.ConfigFor(a.cfg.Arch)
	if err != nil {
		return err
	}
	net, err := resnet.New(rc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	total := 0
	for _, k := range net.Keys() {
		fmt.Fprintf(w, "%s\t%v\t%d\n", k.Name, k.Shape, k.Size())
		total += k.Size()
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d tensors, %d values, %d layers, %d blocks, %d dimensions\n",
		rc.Arch, len(net.Keys()), total, net.Len(), net.LenLayers(), net.OutDim())

	// validate only when a file was named
	if !cmd.Flags().Changed("weights") {
		return nil
	}
	if _, err := a.loadNet(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: ok\n", a.cfg.Weights)
	return nil
}
