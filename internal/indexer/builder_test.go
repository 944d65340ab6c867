package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/warraq/warraq/internal/embedding"
	"github.com/warraq/warraq/internal/vector"
)

type failingEmbedder struct {
	embedding.Embedder
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding capability down")
}

func (f *failingEmbedder) Dimensions() int { return 4 }

func TestBuildAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")
	b := NewBuilder(embedding.NewMockEmbedder(8), 4, 1, path)

	if err := b.BuildAndPersist(context.Background(), "the quick brown fox jumps over the lazy dog"); err != nil {
		t.Fatalf("BuildAndPersist: %v", err)
	}
	idx, err := vector.Load(path)
	if err != nil {
		t.Fatalf("Load after build: %v", err)
	}
	if idx.Size() == 0 {
		t.Error("index should contain chunks")
	}
}

func TestBuildAndPersist_emptyCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")
	b := NewBuilder(embedding.NewMockEmbedder(8), 4, 1, path)

	if err := b.BuildAndPersist(context.Background(), ""); err != nil {
		t.Fatalf("empty corpus must still build: %v", err)
	}
	idx, err := vector.Load(path)
	if err != nil {
		t.Fatalf("Load after empty build: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("empty corpus index size: got %d", idx.Size())
	}
}

func TestBuildAndPersist_fullReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")
	embedder := embedding.NewMockEmbedder(8)
	b := NewBuilder(embedder, 4, 0, path)
	ctx := context.Background()

	if err := b.BuildAndPersist(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatal(err)
	}
	if err := b.BuildAndPersist(ctx, "omega"); err != nil {
		t.Fatal(err)
	}

	idx, err := vector.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("size after rebuild: got %d, want 1", idx.Size())
	}
	q, _ := embedder.Embed(ctx, "omega")
	results, err := idx.Search(q, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Chunk.Text != "omega" {
			t.Errorf("stale chunk retrievable after rebuild: %q", r.Chunk.Text)
		}
	}
}

func TestBuildAndPersist_embedFailureKeepsPriorIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")
	ctx := context.Background()

	good := NewBuilder(embedding.NewMockEmbedder(4), 4, 0, path)
	if err := good.BuildAndPersist(ctx, "first corpus content"); err != nil {
		t.Fatal(err)
	}

	bad := NewBuilder(&failingEmbedder{}, 4, 0, path)
	if err := bad.BuildAndPersist(ctx, "replacement corpus"); err == nil {
		t.Fatal("expected error from failing embedder")
	}

	idx, err := vector.Load(path)
	if err != nil {
		t.Fatalf("prior index should still load: %v", err)
	}
	if idx.Size() == 0 {
		t.Error("prior index content lost after failed rebuild")
	}
}
