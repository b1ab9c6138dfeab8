package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clinrag/internal/evidence"
	"clinrag/internal/metadata"
)

var flagK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show ranked corpus chunks for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		ctx := cmd.Context()
		engine, corpus, err := newEngine(ctx)
		if err != nil {
			return err
		}
		if corpus != nil {
			defer corpus.Close()
		}

		results, err := engine.Search(ctx, query, flagK)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintf(out, "No results for %q (%s retrieval)\n", query, engine.Strategy())
			return nil
		}

		fmt.Fprintf(out, "%d results for %q (%s retrieval)\n\n", len(results), query, engine.Strategy())
		for i, r := range results {
			title := r.Chunk.Title
			if title == "" {
				title = metadata.Stem(r.Chunk.Filename)
			}
			fmt.Fprintf(out, "%2d. [%.3f] %s\n", i+1, r.Score, title)
			fmt.Fprintf(out, "    %s, chunk %d\n", r.Chunk.Filename, r.Chunk.Index)
			excerpt := strings.Join(strings.Fields(evidence.Excerpt(r.Chunk.Text, 200)), " ")
			fmt.Fprintf(out, "    %s\n\n", excerpt)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagK, "k", "k", 0, "number of results (default retrieval.top_k)")
	rootCmd.AddCommand(searchCmd)
}
