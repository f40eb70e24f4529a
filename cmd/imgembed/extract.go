package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurlang/imgembed/datasets/imagedir"
	"github.com/neurlang/imgembed/embedding"
	"github.com/neurlang/imgembed/embedding/sqlite"
	"github.com/neurlang/imgembed/inference"
	"github.com/neurlang/imgembed/net/resnet"
)

// addNetFlags adds the flags shared by every command that runs the network.
func addNetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("weights", "no_fc_model_state_dict.pt", "weight file (.pt, .pth or .json.zlib)")
	f.String("arch", resnet.DefaultArch, fmt.Sprintf("network architecture %v", resnet.Archs()))
	f.Int("size", imagedir.DefaultSize, "side of the square images are resized to")
	f.Int("workers", 0, "concurrent image decoders (0 = one per physical core)")
	f.Bool("normalize", false, "apply ImageNet mean/std normalization")
}

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Embed every image of a directory",
		Long: `Embed every file of the input directory, in lexical order, and write the
embedding matrix (.npy, one row per image) and the aligned path list (JSON).
Any file that is not a decodable image aborts the run before anything is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.extract(cmd)
		},
	}
	addNetFlags(cmd)
	f := cmd.Flags()
	f.StringP("input", "i", "uploader", "directory of images")
	f.Int("batch", 0, "images per forward pass (0 = all at once)")
	f.Bool("skip-hidden", true, "ignore files whose name starts with a dot")
	f.String("embeddings", "image_features_embedding.npy", "output embedding matrix")
	f.String("paths", "img_files.json", "output path list")
	f.String("sqlite", "", "also store the embeddings in this SQLite database")
	return cmd
}

func (a *app) extract(cmd *cobra.Command) error {
	ctx := cmd.Context()
	start := time.Now()

	net, err := a.loadNet()
	if err != nil {
		return err
	}
	ex := &inference.Extractor{
		Net:       net,
		Images:    a.cfg.Images(),
		BatchSize: a.cfg.Batch,
		Log:       a.log,
	}
	set, err := ex.Run(ctx, a.cfg.Input)
	if err != nil {
		return err
	}
	if err := embedding.Save(set, a.cfg.Embeddings, a.cfg.Paths); err != nil {
		return err
	}
	a.log.Info("embeddings written",
		"images", set.Len(),
		"dim", set.Dim,
		"embeddings", a.cfg.Embeddings,
		"paths", a.cfg.Paths,
		"took", time.Since(start),
	)

	if a.cfg.SQLite != "" {
		st, err := sqlite.Open(a.cfg.SQLite)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Put(ctx, set); err != nil {
			return err
		}
		a.log.Info("embeddings stored", "db", a.cfg.SQLite, "images", set.Len())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d images, %d dimensions\n", set.Len(), set.Dim)
	return nil
}
