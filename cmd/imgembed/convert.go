package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurlang/imgembed/net/resnet"
	"github.com/neurlang/imgembed/weights"
)

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <in> <out" + weights.CompressedExt + ">",
		Short: "Rewrite a weight file in the native compressed JSON format",
		Long: `Read a PyTorch state dict (.pt, .pth) or a native weight file and write it as
zlib compressed JSON. With --check the parameters are first loaded into the
chosen architecture, so only usable files are written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("arch", resnet.DefaultArch, fmt.Sprintf("network architecture %v", resnet.Archs()))
	f.Bool("check", false, "validate against the architecture before writing")
	return cmd
}

func (a *app) convert(cmd *cobra.Command, in, out string) error {
	if !strings.HasSuffix(out, weights.CompressedExt) {
		return fmt.Errorf("output %s must end in %s", out, weights.CompressedExt)
	}
	sd, err := weights.Load(in)
	if err != nil {
		return err
	}
	if check, _ := cmd.Flags().GetBool("check"); check {
		rc, err := resnet.ConfigFor(a.cfg.Arch)
		if err != nil {
			return err
		}
		net, err := resnet.New(rc)
		if err != nil {
			return err
		}
		if err := net.Load(sd, a.log); err != nil {
			return err
		}
	}
	if err := sd.WriteCompressedFile(out); err != nil {
		return err
	}
	a.log.Info("weights converted", "in", in, "out", out, "params", len(sd))
	return nil
}
