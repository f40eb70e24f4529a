package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neurlang/imgembed/embedding"
	"github.com/neurlang/imgembed/embedding/bruteforce"
	"github.com/neurlang/imgembed/embedding/sqlite"
	"github.com/neurlang/imgembed/inference"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find the stored images most similar to an image",
		Long: `Embed one image with the same network and settings used by extract and
print the nearest stored images by cosine similarity. The embeddings are read
from the SQLite database when --sqlite is set, otherwise from the .npy and
JSON outputs of extract.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.search(cmd, args[0])
		},
	}
	addNetFlags(cmd)
	f := cmd.Flags()
	f.IntP("top-k", "k", 5, "number of results (0 = all)")
	f.String("embeddings", "image_features_embedding.npy", "embedding matrix written by extract")
	f.String("paths", "img_files.json", "path list written by extract")
	f.String("sqlite", "", "read the embeddings from this SQLite database")
	return cmd
}

func (a *app) search(cmd *cobra.Command, image string) error {
	ctx := cmd.Context()
	net, err := a.loadNet()
	if err != nil {
		return err
	}
	ex := &inference.Extractor{Net: net, Images: a.cfg.Images(), Log: a.log}
	query, err := ex.EmbedFile(ctx, image)
	if err != nil {
		return err
	}

	var hits []embedding.Hit
	if a.cfg.SQLite != "" {
		st, err := sqlite.Open(a.cfg.SQLite)
		if err != nil {
			return err
		}
		defer st.Close()
		if hits, err = st.Search(ctx, query, a.cfg.TopK); err != nil {
			return err
		}
	} else {
		set, err := embedding.Load(a.cfg.Embeddings, a.cfg.Paths)
		if err != nil {
			return err
		}
		idx, err := bruteforce.Build(set)
		if err != nil {
			return err
		}
		if hits, err = idx.Query(query, a.cfg.TopK); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tPATH")
	for i, h := range hits {
		fmt.Fprintf(w, "%d\t%.6f\t%s\n", i+1, h.Score, h.Path)
	}
	return w.Flush()
}
