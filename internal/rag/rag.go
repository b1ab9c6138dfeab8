// Package rag turns a patient record into a literature-grounded clinical
// summary.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinrag/internal/llm"
)

const systemPrompt = "You are a medical assistant that answers questions based on provided literature content."

// DefaultQuestion is asked when the caller supplies none.
const DefaultQuestion = "Please provide relevant medical information"

const userPrompt = `Based on the following medical literature content, provide a clinical analysis for the patient.

Patient symptom keywords: %s
Diagnostic basis: %s
User question: %s

Relevant literature content:
%s

Please provide ONLY the clinical conclusions and medical recommendations. Do NOT mention paper titles, authors, years, or reference citations in your response. Focus on:

1. Clinical findings and conclusions from the research
2. How these findings relate to the patient's condition
3. Evidence-based medical recommendations
4. Risk factors and prognosis
5. Treatment considerations

Write as a clinical summary that directly addresses the patient's condition without mentioning the source papers.`

// ErrNoCompleter is returned by Synthesize when no completion provider is
// configured.
var ErrNoCompleter = errors.New("no completion provider configured")

// BuildQuery joins the question and symptom tags into one retrieval query.
func BuildQuery(symptoms []string, question string) string {
	tags := strings.Join(symptoms, " ")
	question = strings.TrimSpace(question)
	if question == "" {
		return tags
	}
	if tags == "" {
		return question
	}
	return question + " " + tags
}

// BuildPrompt renders the user prompt sent to the completion provider.
func BuildPrompt(symptoms, diagnostics []string, question, evidence string) string {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}
	return fmt.Sprintf(userPrompt,
		strings.Join(symptoms, ", "),
		strings.Join(diagnostics, "; "),
		question,
		evidence,
	)
}

// Synthesizer asks a completion provider for a narrative grounded in the
// assembled context.
type Synthesizer struct {
	completer llm.Completer
	timeout   time.Duration
}

// NewSynthesizer creates a Synthesizer. c may be nil; every call then fails
// with ErrNoCompleter. A positive timeout bounds each call.
func NewSynthesizer(c llm.Completer, timeout time.Duration) *Synthesizer {
	return &Synthesizer{completer: c, timeout: timeout}
}

// Synthesize returns the narrative, with any trailing reference list the
// model adds despite instructions removed.
func (s *Synthesizer) Synthesize(ctx context.Context, symptoms, diagnostics []string, question, evidence string) (string, error) {
	if s == nil || s.completer == nil {
		return "", ErrNoCompleter
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.completer.Complete(ctx, systemPrompt, BuildPrompt(symptoms, diagnostics, question, evidence))
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	out = stripReferences(out)
	if out == "" {
		return "", errors.New("provider returned an empty narrative")
	}
	return out, nil
}

func stripReferences(s string) string {
	if i := strings.Index(s, "References:"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
