// Package vector provides the persisted vector index and similarity search.
package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"
)

// ErrNotFound is returned by Load when no index has ever been persisted at
// the given path. This is an expected first-run state, not a failure.
var ErrNotFound = errors.New("vector index not found")

// ErrCorrupt is returned by Load when a persisted index exists but cannot
// be deserialized.
var ErrCorrupt = errors.New("vector index corrupt")

// indexMagic identifies the on-disk format; a version byte follows it.
var indexMagic = []byte{'W', 'R', 'Q', 'V'}

const indexVersion = 1

// Chunk is one indexed slice of normalized text.
type Chunk struct {
	ID   string
	Text string
}

// Result is a single similarity-search hit.
type Result struct {
	Chunk Chunk
	Score float64
}

// Index holds chunks with their embeddings and supports brute-force
// inner-product top-k search. Vectors are assumed unit-normalized, so the
// inner product is the cosine similarity.
type Index struct {
	dimensions int
	chunks     []Chunk
	vectors    [][]float32
	mu         sync.RWMutex
}

// New creates an empty index for vectors of the given dimension.
func New(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Index{dimensions: dimensions}, nil
}

// Add appends chunks with their embedding vectors.
func (x *Index) Add(chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, c := range chunks {
		if len(vectors[i]) != x.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), x.dimensions)
		}
		vec := make([]float32, x.dimensions)
		copy(vec, vectors[i])
		x.chunks = append(x.chunks, c)
		x.vectors = append(x.vectors, vec)
	}
	return nil
}

// Search returns up to k chunks ranked by inner product, closest first.
// An empty index yields no results and no error.
func (x *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || len(x.chunks) == 0 {
		return nil, nil
	}
	results := make([]Result, len(x.chunks))
	for i, vec := range x.vectors {
		var dot float64
		for j := 0; j < x.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		results[i] = Result{Chunk: x.chunks[i], Score: dot}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of chunks in the index.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Dimensions returns the vector dimension of the index.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// Save persists the index to path atomically (write to temp, then rename),
// replacing any prior index wholesale. A failed save leaves the prior file
// untouched. Parent directories are created if needed.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(indexMagic)
	buf.WriteByte(indexVersion)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(x.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(x.chunks))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, c := range x.chunks {
		if err := writeString(&buf, c.ID); err != nil {
			return fmt.Errorf("write chunk id: %w", err)
		}
		if err := writeString(&buf, c.Text); err != nil {
			return fmt.Errorf("write chunk text: %w", err)
		}
		buf.Write(float32SliceToBytes(x.vectors[i]))
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	return nil
}

// Load reads a persisted index from path. Returns ErrNotFound when the file
// does not exist (or is empty), and an error wrapping ErrCorrupt when the
// file exists but cannot be deserialized.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	r := bytes.NewReader(data)
	header := make([]byte, len(indexMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if !bytes.Equal(header[:len(indexMagic)], indexMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if header[len(indexMagic)] != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header[len(indexMagic)])
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("%w: read dimensions: %v", ErrCorrupt, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrCorrupt, err)
	}
	idx, err := New(int(dim))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid dimensions %d", ErrCorrupt, dim)
	}
	idx.chunks = make([]Chunk, 0, n)
	idx.vectors = make([][]float32, 0, n)
	vecBuf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: read chunk id: %v", ErrCorrupt, err)
		}
		text, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: read chunk text: %v", ErrCorrupt, err)
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return nil, fmt.Errorf("%w: read vector: %v", ErrCorrupt, err)
		}
		idx.chunks = append(idx.chunks, Chunk{ID: id, Text: text})
		idx.vectors = append(idx.vectors, bytesToFloat32Slice(vecBuf))
	}
	return idx, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", fmt.Errorf("string length %d exceeds remaining data", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	out := make([]byte, len(s)*4)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
