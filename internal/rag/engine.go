package rag

import (
	"context"
	"fmt"

	"clinrag/internal/clinical"
	"clinrag/internal/evidence"
	"clinrag/internal/log"
	"clinrag/internal/retriever"
)

// Stage is where an assessment stopped.
type Stage int

const (
	// StageNoEvidence means nothing survived the evidence floor; no prompt
	// was sent.
	StageNoEvidence Stage = iota
	// StageSynthesisFailed means evidence was found but the completion
	// provider failed or is not configured. Citations are still returned.
	StageSynthesisFailed
	StageSynthesized
)

func (s Stage) String() string {
	switch s {
	case StageSynthesisFailed:
		return "synthesis_failed"
	case StageSynthesized:
		return "synthesized"
	default:
		return "no_evidence"
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is the outcome of one assessment.
type Result struct {
	Narrative    string              `json:"narrative,omitempty"`
	HasNarrative bool                `json:"has_narrative"`
	Citations    []evidence.Citation `json:"citations"`
	Diagnostics  []string            `json:"diagnostics"`
	Symptoms     []string            `json:"symptoms"`
	Query        string              `json:"query"`
	Stage        Stage               `json:"stage"`
	Strategy     retriever.Strategy  `json:"strategy"`
}

// Config holds the engine's retrieval settings.
type Config struct {
	TopK     int
	Evidence evidence.Options
}

// Engine runs infer, query, retrieve, assemble and synthesize for one
// patient at a time. It holds no per-call state and is safe for concurrent
// use when its Retriever is.
type Engine struct {
	retriever   retriever.Retriever
	synthesizer *Synthesizer
	config      Config
}

// NewEngine creates an Engine. A non-positive TopK defaults to 10.
func NewEngine(r retriever.Retriever, s *Synthesizer, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return &Engine{retriever: r, synthesizer: s, config: cfg}
}

// Strategy reports the retrieval strategy in use.
func (e *Engine) Strategy() retriever.Strategy { return e.retriever.Strategy() }

// Assess produces a narrative and citations for rec. Provider failures
// degrade the result rather than returning an error; only a corpus read
// failure is returned, together with the inferred symptoms and diagnostics.
func (e *Engine) Assess(ctx context.Context, rec clinical.Record, question string) (*Result, error) {
	a := clinical.Infer(rec)
	res := &Result{
		Symptoms:    a.Symptoms,
		Diagnostics: a.Diagnostics,
		Citations:   []evidence.Citation{},
		Query:       BuildQuery(a.Symptoms, question),
		Stage:       StageNoEvidence,
		Strategy:    e.retriever.Strategy(),
	}

	results, err := e.retriever.Retrieve(ctx, res.Query, e.config.TopK)
	if err != nil {
		return res, fmt.Errorf("retrieve: %w", err)
	}

	ev := evidence.Assemble(results, e.config.Evidence)
	if ev.Empty() {
		log.Infow("no evidence above floor", "query", res.Query, "retrieved", len(results))
		return res, nil
	}
	res.Citations = ev.Citations

	narrative, err := e.synthesizer.Synthesize(ctx, a.Symptoms, a.Diagnostics, question, ev.Context)
	if err != nil {
		log.Warnw("synthesis failed", "error", err, "citations", len(ev.Citations))
		res.Stage = StageSynthesisFailed
		return res, nil
	}

	res.Narrative = narrative
	res.HasNarrative = true
	res.Stage = StageSynthesized
	return res, nil
}

// Search runs retrieval alone.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]retriever.Result, error) {
	if k <= 0 {
		k = e.config.TopK
	}
	return e.retriever.Retrieve(ctx, query, k)
}
