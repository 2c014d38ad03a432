// Package answer turns retrieved chunks into a cited answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localdocs/localdocs-cli/internal/llm"
	"github.com/localdocs/localdocs-cli/internal/search"
)

// ErrNoRelevantContext indicates retrieval produced nothing above the
// similarity floor, so no completion was attempted.
var ErrNoRelevantContext = errors.New("no relevant context found")

// previewLimit is the rune budget for source previews.
const previewLimit = 200

// Source describes one cited chunk, numbered to match the [Source N]
// citations in the answer text.
type Source struct {
	SourceNum int     `json:"source_num"`
	File      string  `json:"file"`
	Path      string  `json:"path"`
	Type      string  `json:"type"`
	Page      int     `json:"page,omitempty"`
	Section   string  `json:"section,omitempty"`
	ChunkID   int64   `json:"chunk_id"`
	Score     float64 `json:"score"`
	Preview   string  `json:"preview"`
}

// Location renders the in-document position for display, or "" when the
// source format has neither pages nor sections.
func (s Source) Location() string {
	switch {
	case s.Page > 0 && s.Section != "":
		return fmt.Sprintf("page %d, %s", s.Page, s.Section)
	case s.Page > 0:
		return fmt.Sprintf("page %d", s.Page)
	case s.Section != "":
		return s.Section
	}
	return ""
}

// Answer is the assembled response for one question.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Model    string   `json:"model"`
	Sources  []Source `json:"sources"`
}

// Assembler produces answers from retrieved chunks via a completion client.
type Assembler struct {
	Client llm.Client
}

// Assemble builds the grounding prompt from results, asks the completion
// model, and pairs the answer text with its numbered sources. With no
// results it fails fast with ErrNoRelevantContext and never spends a
// completion call.
func (a *Assembler) Assemble(ctx context.Context, question string, results []search.Result) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if len(results) == 0 {
		return nil, ErrNoRelevantContext
	}

	text, err := a.Client.Complete(ctx, systemPrompt, buildUserPrompt(question, results))
	if err != nil {
		return nil, err
	}

	out := &Answer{
		Question: question,
		Answer:   strings.TrimSpace(text),
		Model:    a.Client.ModelName(),
		Sources:  make([]Source, 0, len(results)),
	}
	for _, r := range results {
		out.Sources = append(out.Sources, Source{
			SourceNum: r.SourceNum,
			File:      r.Chunk.FileName(),
			Path:      r.Chunk.Path,
			Type:      r.Chunk.Type,
			Page:      r.Chunk.Page,
			Section:   r.Chunk.Section,
			ChunkID:   r.Chunk.ID,
			Score:     r.Score,
			Preview:   preview(r.Chunk.Text),
		})
	}
	return out, nil
}

// preview truncates text to previewLimit runes, marking the cut with an
// ellipsis.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
