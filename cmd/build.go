package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clinrag/internal/embedder"
	"clinrag/internal/ingest"
	"clinrag/internal/metadata"
	"clinrag/internal/store"
	"clinrag/internal/tui"
)

var (
	flagNoEmbed bool
	flagBuildUI bool
)

var buildCmd = &cobra.Command{
	Use:   "build <source-dir>",
	Short: "Build the literature corpus from a directory of documents",
	Long: `Build extracts text from every PDF, text and markdown file under
source-dir, chunks and embeds it, and replaces the corpus database in one
step. Documents that cannot be read are skipped and counted.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("open source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("open source directory: %s is not a directory", root)
	}

	schema, err := store.ParseSchema(cfg.Corpus.Schema)
	if err != nil {
		return err
	}

	dbPath := cfg.Corpus.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	overrides, err := metadata.LoadOverrides(cfg.Corpus.MetadataOverrides)
	if err != nil {
		return err
	}

	var emb embedder.Embedder
	if cfg.Ingest.Embed && !flagNoEmbed {
		if emb, err = newEmbedder(); err != nil {
			return err
		}
	}

	ic := cfg.Ingest
	p := ingest.New(ingest.Config{
		DBPath:         dbPath,
		Schema:         schema,
		ChunkSize:      ic.ChunkSize,
		ChunkOverlap:   ic.ChunkOverlap,
		MinTextChars:   ic.MinTextChars,
		MinChunkChars:  ic.MinChunkChars,
		Workers:        ic.Workers,
		EmbedBatchSize: ic.EmbedBatchSize,
		EmbedInterval:  ic.EmbedInterval,
		Overrides:      overrides,
	}, emb)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if flagBuildUI {
		_, err := tui.RunBuild(ctx, p, root)
		return err
	}
	return buildPlain(ctx, p, root)
}

func buildPlain(ctx context.Context, p *ingest.Pipeline, root string) error {
	fmt.Printf("Building corpus from %s...\n", root)
	start := time.Now()

	stats, err := p.Build(ctx, root)
	elapsed := time.Since(start)

	if stats != nil {
		fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
		fmt.Printf("  Documents: %d total, %d processed, %d skipped\n",
			stats.DocumentsTotal, stats.DocumentsIndexed, stats.DocumentsSkipped)
		fmt.Printf("  Chunks:    %d written, %d embedded\n", stats.ChunksWritten, stats.ChunksEmbedded)
		if stats.EmbedFailures > 0 {
			fmt.Printf("  %d chunks stored without embeddings\n", stats.EmbedFailures)
		}
	}

	return err
}

func init() {
	buildCmd.Flags().String("schema", "", "corpus layout: vector or lightweight (default vector)")
	buildCmd.Flags().Int("workers", 0, "parallel extraction workers (default: number of CPUs)")
	buildCmd.Flags().BoolVar(&flagNoEmbed, "no-embed", false, "store chunks without embeddings")
	buildCmd.Flags().BoolVar(&flagBuildUI, "tui", false, "show an interactive progress display")

	_ = v.BindPFlag("corpus.schema", buildCmd.Flags().Lookup("schema"))
	_ = v.BindPFlag("ingest.workers", buildCmd.Flags().Lookup("workers"))
	rootCmd.AddCommand(buildCmd)
}
