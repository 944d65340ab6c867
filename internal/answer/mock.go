package answer

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator is a deterministic generator for tests and keyless
// development. It echoes the first line of the context block so callers can
// verify what retrieval produced.
type MockGenerator struct{}

// NewMockGenerator returns a MockGenerator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned answer derived from the context block.
func (g *MockGenerator) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	if strings.TrimSpace(contextBlock) == "" {
		return "No relevant context was found for this question.", nil
	}
	first := contextBlock
	if i := strings.Index(contextBlock, "\n\n"); i >= 0 {
		first = contextBlock[:i]
	}
	return fmt.Sprintf("Based on the documents: %s", first), nil
}
