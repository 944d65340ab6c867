package indexer

import (
	"context"
	"fmt"

	"github.com/warraq/warraq/internal/embedding"
	"github.com/warraq/warraq/internal/vector"
	"go.uber.org/zap"
)

// Builder chunks a normalized corpus, embeds each chunk, and persists the
// resulting vector index. Each build is a full replace of the prior index:
// the new index is written atomically, so on failure the prior persisted
// index stays authoritative.
type Builder struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	indexPath string
	logger    *zap.Logger // optional; when set, logs debug events
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder that persists to indexPath.
func NewBuilder(embedder embedding.Embedder, chunkSize, chunkOverlap int, indexPath string, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		chunker:   NewChunker(chunkSize, chunkOverlap),
		indexPath: indexPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildAndPersist chunks corpus, embeds the chunks, and writes the index to
// the configured path, replacing any prior index wholesale. An empty corpus
// produces a valid empty index so queries report "no context" instead of
// failing. Embedding and persistence failures are returned to the caller;
// nothing is retried here.
func (b *Builder) BuildAndPersist(ctx context.Context, corpus string) error {
	chunks := b.chunker.Chunk(corpus)

	idx, err := vector.New(b.embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		embeddings, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("build index: embed chunks: %w", err)
		}
		if err := idx.Add(chunks, embeddings); err != nil {
			return fmt.Errorf("build index: %w", err)
		}
	}

	if err := idx.Save(b.indexPath); err != nil {
		return fmt.Errorf("build index: persist: %w", err)
	}
	if b.logger != nil {
		b.logger.Debug("index built",
			zap.Int("chunks", len(chunks)),
			zap.String("path", b.indexPath))
	}
	return nil
}

// IndexPath returns the fixed location the builder persists to.
func (b *Builder) IndexPath() string {
	return b.indexPath
}
