package rag

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
)

// IVF tuning. nlist follows the usual rule of thumb for corpus size and is
// capped so tiny corpora still train.
const (
	ivfMaxLists  = 4096
	ivfNProbe    = 64
	ivfKMeansMax = 25
)

// ivfIndex partitions vectors into nlist coarse cells trained by k-means
// and searches only the nprobe cells nearest the query.
type ivfIndex struct {
	dim       int
	nlist     int
	nprobe    int
	centroids [][]float64
	lists     [][]int
	vectors   [][]float64
	trained   bool
}

func newIVFIndex(dim int) *ivfIndex {
	return &ivfIndex{dim: dim, nprobe: ivfNProbe}
}

// ivfNList derives the cell count from the corpus size.
func ivfNList(n int) int {
	nlist := 8 * int(float64(n)/10+0.5)
	if nlist > ivfMaxLists {
		nlist = ivfMaxLists
	}
	if nlist < 1 {
		nlist = 1
	}
	return nlist
}

// Add trains the coarse quantizer on the first batch seen, then assigns
// every vector to its nearest cell. The builder adds the full corpus in a
// single call, so training sees all rows.
func (ix *ivfIndex) Add(vectors [][]float64) error {
	for _, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector dimension %d, index dimension %d", len(v), ix.dim)
		}
	}
	base := len(ix.vectors)
	ix.vectors = append(ix.vectors, vectors...)

	if !ix.trained {
		ix.nlist = ivfNList(len(ix.vectors))
		ix.centroids = kmeans(ix.vectors, ix.nlist, ivfKMeansMax)
		ix.lists = make([][]int, ix.nlist)
		ix.trained = true
		base = 0 // assign everything, including rows seen before training
	}
	for i := base; i < len(ix.vectors); i++ {
		cell := nearestCentroid(ix.vectors[i], ix.centroids)
		ix.lists[cell] = append(ix.lists[cell], i)
	}
	return nil
}

func (ix *ivfIndex) Search(query []float64, k int) ([]int, []float64, error) {
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if !ix.trained || len(ix.vectors) == 0 {
		return nil, nil, nil
	}

	nprobe := ix.nprobe
	if nprobe > ix.nlist {
		nprobe = ix.nlist
	}
	cells := rankCandidates(query, ix.centroids, allIDs(ix.nlist), nprobe)

	var candidates []int
	for _, c := range cells {
		candidates = append(candidates, ix.lists[c.id]...)
	}
	ids, scores := splitRanked(rankCandidates(query, ix.vectors, candidates, k))
	return ids, scores, nil
}

func (ix *ivfIndex) Len() int     { return len(ix.vectors) }
func (ix *ivfIndex) Dim() int     { return ix.dim }
func (ix *ivfIndex) Type() string { return IndexTypeIVF }

func (ix *ivfIndex) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)

	if err := writeHeader(w, indexKindIVF, ix.dim, len(ix.vectors)); err != nil {
		return err
	}
	if err := writeMatrix(w, ix.vectors); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(ix.nlist)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(ix.nprobe)); err != nil {
		return err
	}
	if err := writeMatrix(w, ix.centroids); err != nil {
		return err
	}
	for _, list := range ix.lists {
		if err := binary.Write(w, binary.LittleEndian, int32(len(list))); err != nil {
			return err
		}
		ids := make([]int32, len(list))
		for i, id := range list {
			ids[i] = int32(id)
		}
		if err := binary.Write(w, binary.LittleEndian, ids); err != nil {
			return err
		}
	}
	return w.Flush()
}

func loadIVFIndex(path string) (*ivfIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	r := bufio.NewReader(file)

	dim, count, err := readHeader(r, indexKindIVF)
	if err != nil {
		return nil, err
	}
	vectors, err := readMatrix(r, count, dim)
	if err != nil {
		return nil, err
	}
	var nlist, nprobe int32
	if err := binary.Read(r, binary.LittleEndian, &nlist); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &nprobe); err != nil {
		return nil, err
	}
	centroids, err := readMatrix(r, int(nlist), dim)
	if err != nil {
		return nil, err
	}
	lists := make([][]int, nlist)
	for i := range lists {
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		ids := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
			return nil, err
		}
		list := make([]int, n)
		for j, id := range ids {
			list[j] = int(id)
		}
		lists[i] = list
	}
	return &ivfIndex{
		dim:       dim,
		nlist:     int(nlist),
		nprobe:    int(nprobe),
		centroids: centroids,
		lists:     lists,
		vectors:   vectors,
		trained:   true,
	}, nil
}

// kmeans trains k centroids with Lloyd iterations. Seeding picks evenly
// spaced rows, which keeps training deterministic across builds of the
// same corpus.
func kmeans(vectors [][]float64, k, maxIter int) [][]float64 {
	n := len(vectors)
	if k > n {
		k = n
	}
	dim := len(vectors[0])

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		seed := vectors[i*n/k]
		centroids[i] = append([]float64(nil), seed...)
	}

	assign := make([]int, n)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			cell := nearestCentroid(v, centroids)
			if cell != assign[i] {
				assign[i] = cell
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vectors {
			floats.Add(sums[assign[i]], v)
			counts[assign[i]]++
		}
		for i := range centroids {
			if counts[i] == 0 {
				continue // empty cell keeps its previous centroid
			}
			floats.Scale(1/float64(counts[i]), sums[i])
			centroids[i] = sums[i]
		}
	}
	return centroids
}

// nearestCentroid returns the index of the centroid with the highest inner
// product against v. Vectors are unit length, so this matches the nearest
// cell in cosine space.
func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestScore := floats.Dot(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if s := floats.Dot(v, centroids[i]); s > bestScore {
			best = i
			bestScore = s
		}
	}
	return best
}
