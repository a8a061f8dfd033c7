package main

import (
	"github.com/hupe1980/qvcompress"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/spf13/cobra"
)

type encodeFlags struct {
	overwrite bool
	rleTag    bool
	output    string
}

func newEncodeCmd(g *globalFlags) *cobra.Command {
	f := &encodeFlags{}

	cmd := &cobra.Command{
		Use:   "encode <store> <codebook>",
		Short: "Replace QVs by codebook indices",
		Long: `Assign every base of the store to its nearest codebook entry.

Group stores (.qvdb, .qvc, s3://, minio://) receive a VQ column in place.
SAM files are rewritten to --output, by default <input>.vq.sam with the
input's compression suffix; the codebook is embedded in the header.

The store's channels are those recorded in the codebook; --features is
ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			cb, err := codebook.Load(args[1])
			if err != nil {
				return err
			}

			opts := append(rc.opts,
				qvcompress.WithOverwriteQVs(f.overwrite),
				qvcompress.WithRunLengthTag(f.rleTag),
				qvcompress.WithOutput(f.output),
			)
			_, err = qvcompress.Encode(cmd.Context(), args[0], cb, opts...)
			return err
		},
	}

	cmd.Flags().BoolVar(&f.overwrite, "overwrite-qvs", false, "replace the stored QVs by their codebook reconstruction (destructive)")
	cmd.Flags().BoolVar(&f.rleTag, "rle-tag", false, "add the run-length encoded deletion tag to SAM records")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output of SAM input")
	return cmd
}
