package rag

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

// chromemCollection is the single collection a chromem-backed index keeps
// its rows in.
const chromemCollection = "chunks"

// chromemIndex adapts an embedded chromem-go database to the ANNIndex
// interface. Embeddings are always precomputed by the builder; chromem only
// stores and searches them, and the whole database serialises into the
// standard index artifact.
type chromemIndex struct {
	db    *chromem.DB
	col   *chromem.Collection
	dim   int
	count int
}

// noEmbedding guards against chromem ever being asked to embed on its own.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings are precomputed; chromem must not embed")
}

func newChromemIndex(dim int) (*chromemIndex, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(chromemCollection, map[string]string{}, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create chromem collection: %w", err)
	}
	return &chromemIndex{db: db, col: col, dim: dim}, nil
}

func (c *chromemIndex) Add(vectors [][]float64) error {
	ctx := context.Background()
	for _, v := range vectors {
		if len(v) != c.dim {
			return fmt.Errorf("vector dimension %d, index dimension %d", len(v), c.dim)
		}
		emb := make([]float32, len(v))
		for i, x := range v {
			emb[i] = float32(x)
		}
		doc := chromem.Document{
			ID:        strconv.Itoa(c.count),
			Content:   strconv.Itoa(c.count), // chromem requires content; the chunk sidecar owns the text
			Embedding: emb,
		}
		if err := c.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add vector %d: %w", c.count, err)
		}
		c.count++
	}
	return nil
}

func (c *chromemIndex) Search(query []float64, k int) ([]int, []float64, error) {
	if len(query) != c.dim {
		return nil, nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), c.dim)
	}
	if c.count == 0 {
		return nil, nil, nil
	}
	if k > c.count {
		k = c.count
	}
	q := make([]float32, len(query))
	for i, x := range query {
		q[i] = float32(x)
	}
	results, err := c.col.QueryEmbedding(context.Background(), q, k, make(map[string]string), make(map[string]string))
	if err != nil {
		return nil, nil, fmt.Errorf("chromem query: %w", err)
	}
	ids := make([]int, 0, len(results))
	scores := make([]float64, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("chromem id %q: %w", r.ID, err)
		}
		ids = append(ids, id)
		scores = append(scores, float64(r.Similarity))
	}
	return ids, scores, nil
}

// setDim backfills the dimension after an import; the manifest is the
// source of truth for chromem-backed indexes.
func (c *chromemIndex) setDim(d int) { c.dim = d }

func (c *chromemIndex) Len() int     { return c.count }
func (c *chromemIndex) Dim() int     { return c.dim }
func (c *chromemIndex) Type() string { return IndexTypeChromem }

func (c *chromemIndex) Save(path string) error {
	if err := c.db.Export(path, false, ""); err != nil {
		return fmt.Errorf("export chromem index: %w", err)
	}
	return nil
}

func loadChromemIndex(path string) (*chromemIndex, error) {
	db := chromem.NewDB()
	if err := db.Import(path, ""); err != nil {
		return nil, fmt.Errorf("import chromem index: %w", err)
	}
	col := db.GetCollection(chromemCollection, noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("chromem collection %q missing", chromemCollection)
	}
	return &chromemIndex{db: db, col: col, count: col.Count()}, nil
}
