package main

import (
	"fmt"

	"github.com/hupe1980/qvcompress"
	"github.com/spf13/cobra"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <sam> <store>",
		Short: "Copy the QV channels of a SAM file into a new group store",
		Long: `Copy the --features channels of every record of a SAM file into a new
.qvdb or columnar store, one group per record. Existing stores are never
overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			stats, err := qvcompress.Import(cmd.Context(), args[0], args[1], rc.opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records, %d bases into %s\n", stats.Groups, stats.Rows, args[1])
			return nil
		},
	}
}
