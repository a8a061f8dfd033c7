package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/hupe1980/qvcompress"
	"github.com/spf13/cobra"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <store>",
		Short: "Summarize a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			info, err := qvcompress.Inspect(cmd.Context(), args[0], rc.opts...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeInfoJSON(cmd.OutOrStdout(), info)
			}
			return writeInfo(cmd.OutOrStdout(), info)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type infoJSON struct {
	Path     string      `json:"path"`
	Format   string      `json:"format"`
	Kind     string      `json:"kind"`
	Columns  []string    `json:"columns"`
	Groups   int         `json:"groups"`
	Rows     int         `json:"rows"`
	Encoded  bool        `json:"encoded"`
	Features []string    `json:"features,omitempty"`
	Codes    [][]float64 `json:"codes,omitempty"`
}

func writeInfoJSON(w io.Writer, info *qvcompress.StoreInfo) error {
	out := infoJSON{
		Path:    info.Path,
		Format:  info.Format.String(),
		Kind:    info.Kind.String(),
		Columns: info.Columns,
		Groups:  info.Groups,
		Rows:    info.Rows,
		Encoded: info.Encoded,
	}
	if cb := info.Codebook; cb != nil {
		out.Features = cb.Schema()
		out.Codes = cb.Rows()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeInfo(w io.Writer, info *qvcompress.StoreInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "path:\t%s\n", info.Path)
	fmt.Fprintf(tw, "format:\t%s (%s oriented)\n", info.Format, info.Kind)
	fmt.Fprintf(tw, "columns:\t%s\n", strings.Join(info.Columns, ","))
	fmt.Fprintf(tw, "groups:\t%d\n", info.Groups)
	fmt.Fprintf(tw, "rows:\t%d\n", info.Rows)
	fmt.Fprintf(tw, "encoded:\t%t\n", info.Encoded)
	if cb := info.Codebook; cb != nil {
		fmt.Fprintf(tw, "codes:\t%d (%s)\n", cb.Len(), cb.Schema())
	}
	return tw.Flush()
}
