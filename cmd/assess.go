package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"clinrag/internal/clinical"
	"clinrag/internal/log"
	"clinrag/internal/tui"
)

var (
	flagPatient     string
	flagSet         map[string]string
	flagQuestion    string
	flagInteractive bool
	flagPlain       bool
	flagJSON        bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess a patient record against the literature corpus",
	Example: `  clinrag assess --patient record.yaml
  clinrag assess --set hematocrit=29 --set irondef=1 --question "expected length of stay?"
  cat record.json | clinrag assess --patient -`,
	Args: cobra.NoArgs,
	RunE: runAssess,
}

func runAssess(cmd *cobra.Command, args []string) error {
	rec, err := loadPatient(cmd.InOrStdin(), flagPatient, flagSet)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, corpus, err := newEngine(ctx)
	if err != nil {
		return err
	}
	if corpus != nil {
		defer corpus.Close()
	}

	if flagInteractive {
		return tui.RunSession(tui.SessionConfig{
			Engine:         engine,
			Corpus:         corpus,
			Patient:        rec,
			PatientName:    patientName(flagPatient),
			EmbeddingModel: cfg.Embedding.Model,
			LLMProvider:    cfg.LLM.Provider,
			LLMBaseURL:     cfg.LLM.BaseURL,
			LLMModel:       cfg.LLM.Model,
		})
	}

	res, err := engine.Assess(ctx, rec, flagQuestion)
	if res == nil {
		return err
	}
	if err != nil {
		log.Warnw("assessment degraded", "error", err)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprint(out, tui.RenderAssessment(res, terminalWidth(), flagPlain))
	return nil
}

// loadPatient reads the record at path ("-" for stdin) and overlays the
// --set values on top of it.
func loadPatient(stdin io.Reader, path string, sets map[string]string) (clinical.Record, error) {
	fields := map[string]any{}
	switch path {
	case "":
	case "-":
		m, err := clinical.DecodeFields(stdin)
		if err != nil {
			return clinical.Record{}, err
		}
		fields = m
	default:
		f, err := os.Open(path)
		if err != nil {
			return clinical.Record{}, fmt.Errorf("open patient record: %w", err)
		}
		defer f.Close()
		m, err := clinical.DecodeFields(f)
		if err != nil {
			return clinical.Record{}, fmt.Errorf("%s: %w", path, err)
		}
		fields = m
	}

	for k, val := range sets {
		fields[strings.ToLower(strings.TrimSpace(k))] = val
	}
	return clinical.RecordFromMap(fields)
}

func patientName(path string) string {
	if path == "" || path == "-" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func init() {
	assessCmd.Flags().StringVarP(&flagPatient, "patient", "p", "", "patient record file (YAML or JSON), or - for stdin")
	assessCmd.Flags().StringToStringVar(&flagSet, "set", nil, "set a record field, e.g. --set hematocrit=29 (repeatable)")
	assessCmd.Flags().StringVarP(&flagQuestion, "question", "q", "", "question to answer (default: general assessment)")
	assessCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "open an interactive assessment session")
	assessCmd.Flags().BoolVar(&flagPlain, "plain", false, "render without colors or markdown styling")
	assessCmd.Flags().BoolVar(&flagJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(assessCmd)
}
