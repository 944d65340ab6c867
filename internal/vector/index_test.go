package vector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testChunks() ([]Chunk, [][]float32) {
	chunks := []Chunk{
		{ID: "c1", Text: "first chunk"},
		{ID: "c2", Text: "second chunk"},
		{ID: "c3", Text: "third chunk"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.7, 0.7, 0},
	}
	return chunks, vectors
}

func TestSearch_ranking(t *testing.T) {
	idx, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	chunks, vectors := testChunks()
	if err := idx.Add(chunks, vectors); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("closest: got %s, want c1", results[0].Chunk.ID)
	}
	if results[1].Chunk.ID != "c3" {
		t.Errorf("second: got %s, want c3", results[1].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered closest first")
	}
}

func TestSearch_fewerThanK(t *testing.T) {
	idx, _ := New(3)
	chunks, vectors := testChunks()
	if err := idx.Add(chunks, vectors); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want all 3", len(results))
	}
}

func TestSearch_emptyIndex(t *testing.T) {
	idx, _ := New(3)
	results, err := idx.Search([]float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index", len(results))
	}
}

func TestSearch_dimensionMismatch(t *testing.T) {
	idx, _ := New(3)
	if _, err := idx.Search([]float32{1, 0}, 4); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestAdd_dimensionMismatch(t *testing.T) {
	idx, _ := New(3)
	err := idx.Add([]Chunk{{ID: "a", Text: "t"}}, [][]float32{{1, 0}})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSaveLoad_roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "vector.idx")
	idx, _ := New(3)
	chunks, vectors := testChunks()
	if err := idx.Add(chunks, vectors); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 3 || loaded.Dimensions() != 3 {
		t.Fatalf("loaded size=%d dims=%d", loaded.Size(), loaded.Dimensions())
	}
	results, err := loaded.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.ID != "c2" || results[0].Chunk.Text != "second chunk" {
		t.Errorf("loaded search: got %+v", results[0].Chunk)
	}
}

func TestSaveLoad_emptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")
	idx, _ := New(4)
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if loaded.Size() != 0 {
		t.Errorf("empty index loaded with size %d", loaded.Size())
	}
}

func TestSave_fullReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector.idx")

	a, _ := New(3)
	_ = a.Add([]Chunk{{ID: "a1", Text: "corpus A"}}, [][]float32{{1, 0, 0}})
	if err := a.Save(path); err != nil {
		t.Fatal(err)
	}

	b, _ := New(3)
	_ = b.Add([]Chunk{{ID: "b1", Text: "corpus B"}}, [][]float32{{0, 1, 0}})
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	results, err := loaded.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Chunk.ID == "a1" {
			t.Error("chunk from corpus A survived full replace")
		}
	}
	if loaded.Size() != 1 {
		t.Errorf("size after replace: got %d, want 1", loaded.Size())
	}
}

func TestLoad_absent(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "never-written.idx"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_corrupt(t *testing.T) {
	dir := t.TempDir()

	t.Run("garbage bytes", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.idx")
		if err := os.WriteFile(path, []byte("this is not an index"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "full.idx")
		idx, _ := New(3)
		chunks, vectors := testChunks()
		_ = idx.Add(chunks, vectors)
		if err := idx.Save(path); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		truncated := filepath.Join(dir, "truncated.idx")
		if err := os.WriteFile(truncated, data[:len(data)/2], 0644); err != nil {
			t.Fatal(err)
		}
		_, err = Load(truncated)
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt for truncated file, got %v", err)
		}
	})
}
