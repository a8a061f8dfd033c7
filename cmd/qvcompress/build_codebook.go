package main

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/qvcompress"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/spf13/cobra"
)

type buildCodebookFlags struct {
	seed          int64
	maxIterations int
	init          string
}

func newBuildCodebookCmd(g *globalFlags) *cobra.Command {
	f := &buildCodebookFlags{}

	cmd := &cobra.Command{
		Use:   "build-codebook <store> <num_codes> <num_observations> <output_codebook>",
		Short: "Train a codebook on a store",
		Long: `Train a codebook of num_codes entries on up to num_observations bases of
the store and write it as a text codebook file.

A store holding fewer bases trains on what it has and logs a
partial_training warning.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			numCodes, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("num_codes: %w", err)
			}
			numObs, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("num_observations: %w", err)
			}

			rc, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			opts, err := rc.trainingOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				opts = append(opts, qvcompress.WithSeed(f.seed))
			}
			if cmd.Flags().Changed("max-iterations") {
				opts = append(opts, qvcompress.WithMaxIterations(f.maxIterations))
			}
			if cmd.Flags().Changed("init") {
				seeding, err := codebook.ParseInit(f.init)
				if err != nil {
					return err
				}
				opts = append(opts, qvcompress.WithInit(seeding))
			}

			res, err := qvcompress.BuildCodebook(cmd.Context(), args[0], numCodes, numObs, opts...)
			if err != nil {
				return err
			}
			if err := res.Codebook.Save(args[3]); err != nil {
				return err
			}
			rc.logger.InfoContext(cmd.Context(), "codebook written", "path", args[3])
			return nil
		},
	}

	cmd.Flags().Int64Var(&f.seed, "seed", 1, "k-means seed")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 100, "Lloyd iteration cap")
	cmd.Flags().StringVar(&f.init, "init", codebook.InitPlusPlus.String(), "centroid seeding: kmeans++ or random")
	return cmd
}
