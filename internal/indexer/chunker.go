// Package indexer builds and persists the vector index from a normalized corpus.
package indexer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warraq/warraq/internal/vector"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into vector.Chunks with overlapping windows. Whitespace
// runs collapse to single spaces inside each chunk. Returns nil for text
// with no words.
func (c *Chunker) Chunk(text string) []vector.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []vector.Chunk
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, vector.Chunk{
			ID:   fmt.Sprintf("chunk_%d_%s", len(chunks), uuid.New().String()[:8]),
			Text: strings.Join(words[i:end], " "),
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
