// Package answer implements retrieval-augmented question answering over a
// loaded vector index.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/warraq/warraq/internal/embedding"
	"github.com/warraq/warraq/internal/vector"
	"go.uber.org/zap"
)

// Generator is the external answer-generation capability: given a question
// and a context block, it returns generated text. It may fail or time out;
// any retry policy belongs to the implementation, not to the Answerer.
type Generator interface {
	Generate(ctx context.Context, query, context string) (string, error)
}

// Answerer answers a query against a loaded index: embed the query, take
// the top-k nearest chunks in ranked order, join them into a context block,
// and delegate to the Generator. No re-ranking, deduplication, or relevance
// threshold is applied; weak matches are included up to k.
type Answerer struct {
	embedder  embedding.Embedder
	generator Generator
	topK      int
	logger    *zap.Logger // optional
}

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) AnswererOption {
	return func(a *Answerer) { a.logger = l }
}

// NewAnswerer creates an answerer retrieving up to topK chunks per query.
func NewAnswerer(embedder embedding.Embedder, generator Generator, topK int, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		embedder:  embedder,
		generator: generator,
		topK:      topK,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer retrieves context for query from idx and returns the generated
// answer verbatim. If the index holds fewer than topK chunks, all of them
// are used; an empty index yields an empty context block.
func (a *Answerer) Answer(ctx context.Context, query string, idx *vector.Index) (string, error) {
	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("answer: embed query: %w", err)
	}
	results, err := idx.Search(queryVec, a.topK)
	if err != nil {
		return "", fmt.Errorf("answer: search index: %w", err)
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	contextBlock := strings.Join(texts, "\n\n")
	if a.logger != nil {
		a.logger.Debug("context assembled",
			zap.Int("chunks", len(results)),
			zap.Int("context_bytes", len(contextBlock)))
	}
	response, err := a.generator.Generate(ctx, query, contextBlock)
	if err != nil {
		return "", fmt.Errorf("answer: generate: %w", err)
	}
	return response, nil
}
