package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clinrag/internal/config"
	"clinrag/internal/log"
)

var (
	flagConfig string

	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "clinrag",
	Short:        "Literature-grounded clinical assessments powered by RAG",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, flagConfig)
		if err != nil {
			return err
		}
		cfg = c
		if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to a YAML config file")
	pf.String("db", "", "corpus database path (default data/papers_rag.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("embedding-model", "", "embedding model (default nomic-embed-text)")
	pf.String("llm-model", "", "generative model for assessments (default qwen3:8b)")

	_ = v.BindPFlag("corpus.path", pf.Lookup("db"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("embedding.model", pf.Lookup("embedding-model"))
	_ = v.BindPFlag("llm.model", pf.Lookup("llm-model"))
}
