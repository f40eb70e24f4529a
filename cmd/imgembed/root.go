package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurlang/imgembed/config"
	"github.com/neurlang/imgembed/device"
	"github.com/neurlang/imgembed/net/resnet"
	"github.com/neurlang/imgembed/weights"
)

// keys bound from flags of the same name, with '_' spelled '-'.
var keys = []string{
	"input", "weights", "arch", "size", "batch", "workers", "normalize", "skip_hidden",
	"embeddings", "paths", "sqlite", "top_k", "verbose", "cpuprofile",
}

// app is the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
	profile *os.File
}

// execute runs the command tree with args. A CPU profile started for the
// invocation is stopped even when the command fails.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if perr := a.stopProfile(); err == nil {
		err = perr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "imgembed",
		Short: "Embed a directory of images with a ResNet backbone",
		Long: `imgembed runs a ResNet backbone without its classification head over every
image in a directory and stores one feature vector per image.

Example usage:
  imgembed extract                       # uploader/ -> image_features_embedding.npy, img_files.json
  imgembed extract --input photos --sqlite photos.db
  imgembed search query.jpg -k 10        # nearest stored images
  imgembed inspect --weights model.pt    # check a weight file against the network
  imgembed convert model.pt model.json.zlib`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .imgembed.yaml)")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.String("cpuprofile", "", "write a CPU profile to this file")

	root.AddCommand(
		newExtractCmd(a),
		newSearchCmd(a),
		newInspectCmd(a),
		newConvertCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, func(v *viper.Viper) error {
		for _, key := range keys {
			if f := cmd.Flags().Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.log.Debug("configuration loaded", "arch", cfg.Arch, "size", cfg.Size, "batch", cfg.Batch, "workers", cfg.Workers)
	a.log.Debug("cpu", "cpu", device.Detect())

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			return fmt.Errorf("cpuprofile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("cpuprofile: %w", err)
		}
		a.profile = f
	}
	return nil
}

func (a *app) stopProfile() error {
	if a.profile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := a.profile.Close()
	a.profile = nil
	return err
}

// loadNet builds the configured architecture and loads its weights.
func (a *app) loadNet() (*resnet.ResNet, error) {
	rc, err := resnet.ConfigFor(a.cfg.Arch)
	if err != nil {
		return nil, err
	}
	net, err := resnet.New(rc)
	if err != nil {
		return nil, err
	}
	sd, err := weights.Load(a.cfg.Weights)
	if err != nil {
		return nil, err
	}
	if err := net.Load(sd, a.log); err != nil {
		return nil, fmt.Errorf("loading %s: %w", a.cfg.Weights, err)
	}
	return net, nil
}
