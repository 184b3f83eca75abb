package rag

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Index type names recorded in manifests.
const (
	IndexTypeFlat    = "Flat"
	IndexTypeIVF     = "IVF"
	IndexTypeChromem = "Chromem"
)

// ANNIndex is the pluggable nearest-neighbour structure behind the vector
// store. Vectors are L2-normalised by the builder, so the inner-product
// scores returned by Search are cosine similarities in [-1, 1].
type ANNIndex interface {
	// Add appends vectors; row order defines vector ids.
	Add(vectors [][]float64) error
	// Search returns up to k vector ids with their similarity scores,
	// ordered by descending similarity.
	Search(query []float64, k int) ([]int, []float64, error)
	// Save persists the index at path.
	Save(path string) error
	// Len returns the number of stored vectors.
	Len() int
	// Dim returns the vector dimension.
	Dim() int
	// Type returns the index type name for the manifest.
	Type() string
}

// NewANNIndex creates an empty index of the named type.
func NewANNIndex(indexType string, dim int) (ANNIndex, error) {
	switch indexType {
	case IndexTypeFlat:
		return newFlatIndex(dim), nil
	case IndexTypeIVF:
		return newIVFIndex(dim), nil
	case IndexTypeChromem:
		return newChromemIndex(dim)
	default:
		return nil, fmt.Errorf("unknown index type: %s", indexType)
	}
}

// LoadANNIndex reads a persisted index of the named type from path.
func LoadANNIndex(path, indexType string) (ANNIndex, error) {
	switch indexType {
	case IndexTypeFlat:
		return loadFlatIndex(path)
	case IndexTypeIVF:
		return loadIVFIndex(path)
	case IndexTypeChromem:
		return loadChromemIndex(path)
	default:
		return nil, fmt.Errorf("unknown index type: %s", indexType)
	}
}

// NormalizeL2 scales v to unit L2 length in place. The zero vector is left
// untouched; placeholder rows for unencodable chunks stay unreachable.
func NormalizeL2(v []float64) {
	n := floats.Norm(v, 2)
	if n > 0 {
		floats.Scale(1/n, v)
	}
}

// flatIndex is the exact backend: brute-force inner product over all rows.
type flatIndex struct {
	dim     int
	vectors [][]float64
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (f *flatIndex) Add(vectors [][]float64) error {
	for _, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector dimension %d, index dimension %d", len(v), f.dim)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *flatIndex) Search(query []float64, k int) ([]int, []float64, error) {
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), f.dim)
	}
	ids, scores := splitRanked(rankCandidates(query, f.vectors, allIDs(len(f.vectors)), k))
	return ids, scores, nil
}

func (f *flatIndex) Len() int     { return len(f.vectors) }
func (f *flatIndex) Dim() int     { return f.dim }
func (f *flatIndex) Type() string { return IndexTypeFlat }

func (f *flatIndex) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)

	if err := writeHeader(w, indexKindFlat, f.dim, len(f.vectors)); err != nil {
		return err
	}
	if err := writeMatrix(w, f.vectors); err != nil {
		return err
	}
	return w.Flush()
}

func loadFlatIndex(path string) (*flatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	r := bufio.NewReader(file)

	dim, count, err := readHeader(r, indexKindFlat)
	if err != nil {
		return nil, err
	}
	vectors, err := readMatrix(r, count, dim)
	if err != nil {
		return nil, err
	}
	return &flatIndex{dim: dim, vectors: vectors}, nil
}

// scoredID pairs a vector id with its similarity for ranking.
type scoredID struct {
	id    int
	score float64
}

func splitRanked(ranked []scoredID) ([]int, []float64) {
	ids := make([]int, len(ranked))
	scores := make([]float64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
		scores[i] = r.score
	}
	return ids, scores
}

// rankCandidates scores the candidate rows against query and returns the
// best k ordered by descending similarity.
func rankCandidates(query []float64, vectors [][]float64, ids []int, k int) []scoredID {
	scored := make([]scoredID, 0, len(ids))
	for _, id := range ids {
		scored = append(scored, scoredID{id: id, score: floats.Dot(query, vectors[id])})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func allIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Binary index format: magic, kind byte, dimension, row count, then
// float32 rows. The IVF variant appends its coarse structure after the
// rows.
const indexMagic = "LKIX"

const (
	indexKindFlat byte = 1
	indexKindIVF  byte = 2
)

func writeHeader(w io.Writer, kind byte, dim, count int) error {
	if _, err := w.Write([]byte(indexMagic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{kind}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(dim)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int32(count))
}

func readHeader(r io.Reader, wantKind byte) (dim, count int, err error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, 0, fmt.Errorf("read index header: %w", err)
	}
	if string(magic) != indexMagic {
		return 0, 0, fmt.Errorf("not an index file")
	}
	kind := make([]byte, 1)
	if _, err := io.ReadFull(r, kind); err != nil {
		return 0, 0, fmt.Errorf("read index kind: %w", err)
	}
	if kind[0] != wantKind {
		return 0, 0, fmt.Errorf("index kind %d, expected %d", kind[0], wantKind)
	}
	var d, c int32
	if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
		return 0, 0, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
		return 0, 0, err
	}
	return int(d), int(c), nil
}

func writeMatrix(w io.Writer, rows [][]float64) error {
	for _, row := range rows {
		buf := make([]float32, len(row))
		for i, v := range row {
			buf[i] = float32(v)
		}
		if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
			return err
		}
	}
	return nil
}

func readMatrix(r io.Reader, count, dim int) ([][]float64, error) {
	rows := make([][]float64, count)
	buf := make([]float32, dim)
	for i := 0; i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		row := make([]float64, dim)
		for j, v := range buf {
			row[j] = float64(v)
		}
		rows[i] = row
	}
	return rows, nil
}
