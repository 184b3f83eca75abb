package rag

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitVectors builds n normalised test vectors spread over dim axes.
func unitVectors(n, dim int) [][]float64 {
	vecs := make([][]float64, n)
	for i := range vecs {
		v := make([]float64, dim)
		v[i%dim] = 1
		v[(i+1)%dim] = 0.25 * float64(i%3)
		NormalizeL2(v)
		vecs[i] = v
	}
	return vecs
}

func TestNormalizeL2(t *testing.T) {
	v := []float64{3, 4}
	NormalizeL2(v)
	assert.InDelta(t, 1.0, math.Hypot(v[0], v[1]), 1e-9)

	zero := []float64{0, 0}
	NormalizeL2(zero)
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestFlatIndexSelfRetrieval(t *testing.T) {
	dim := 8
	vecs := unitVectors(20, dim)
	idx := newFlatIndex(dim)
	require.NoError(t, idx.Add(vecs))
	require.Equal(t, 20, idx.Len())

	for probe := 0; probe < 20; probe += 7 {
		ids, scores, err := idx.Search(vecs[probe], 3)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		assert.InDelta(t, 1.0, scores[0], 1e-9, "self-similarity must be 1")
		// Ordered by descending similarity.
		for i := 1; i < len(scores); i++ {
			assert.GreaterOrEqual(t, scores[i-1], scores[i])
		}
	}
}

func TestFlatIndexFewerThanK(t *testing.T) {
	idx := newFlatIndex(4)
	require.NoError(t, idx.Add(unitVectors(2, 4)))
	ids, _, err := idx.Search([]float64{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	idx := newFlatIndex(4)
	assert.Error(t, idx.Add([][]float64{{1, 0}}))
	_, _, err := idx.Search([]float64{1, 0}, 1)
	assert.Error(t, err)
}

func TestFlatIndexSaveLoadRoundTrip(t *testing.T) {
	dim := 6
	vecs := unitVectors(15, dim)
	idx := newFlatIndex(dim)
	require.NoError(t, idx.Add(vecs))

	path := filepath.Join(t.TempDir(), ANNIndexFile)
	require.NoError(t, idx.Save(path))

	loaded, err := loadFlatIndex(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), loaded.Len())
	assert.Equal(t, idx.Dim(), loaded.Dim())

	wantIDs, _, err := idx.Search(vecs[4], 5)
	require.NoError(t, err)
	gotIDs, gotScores, err := loaded.Search(vecs[4], 5)
	require.NoError(t, err)
	assert.Equal(t, wantIDs, gotIDs, "ordering must survive the round trip")
	for i := 1; i < len(gotScores); i++ {
		assert.GreaterOrEqual(t, gotScores[i-1], gotScores[i])
	}
}

func TestLoadRejectsWrongKind(t *testing.T) {
	idx := newFlatIndex(4)
	require.NoError(t, idx.Add(unitVectors(4, 4)))
	path := filepath.Join(t.TempDir(), ANNIndexFile)
	require.NoError(t, idx.Save(path))

	_, err := loadIVFIndex(path)
	assert.Error(t, err)
}

func TestIVFMatchesFlatOnExactQuery(t *testing.T) {
	dim := 8
	vecs := unitVectors(120, dim)

	flat := newFlatIndex(dim)
	require.NoError(t, flat.Add(vecs))
	ivf := newIVFIndex(dim)
	require.NoError(t, ivf.Add(vecs))

	for probe := 0; probe < 120; probe += 17 {
		wantIDs, _, err := flat.Search(vecs[probe], 1)
		require.NoError(t, err)
		gotIDs, gotScores, err := ivf.Search(vecs[probe], 1)
		require.NoError(t, err)
		require.NotEmpty(t, gotIDs)
		assert.InDelta(t, 1.0, gotScores[0], 1e-9)
		// The top hit must score identically; with duplicates either id
		// is acceptable.
		assert.InDelta(t, 1.0, dotOf(vecs[wantIDs[0]], vecs[gotIDs[0]]), 1e-9)
	}
}

func dotOf(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestIVFSaveLoadRoundTrip(t *testing.T) {
	dim := 8
	vecs := unitVectors(60, dim)
	ivf := newIVFIndex(dim)
	require.NoError(t, ivf.Add(vecs))

	path := filepath.Join(t.TempDir(), ANNIndexFile)
	require.NoError(t, ivf.Save(path))

	loaded, err := loadIVFIndex(path)
	require.NoError(t, err)
	assert.Equal(t, ivf.Len(), loaded.Len())

	wantIDs, _, err := ivf.Search(vecs[10], 3)
	require.NoError(t, err)
	gotIDs, _, err := loaded.Search(vecs[10], 3)
	require.NoError(t, err)
	assert.Equal(t, wantIDs, gotIDs)
}

func TestIVFNList(t *testing.T) {
	assert.Equal(t, 1, ivfNList(1))
	assert.Equal(t, 8, ivfNList(10))
	assert.Equal(t, 80, ivfNList(100))
	assert.Equal(t, 4096, ivfNList(1_000_000))
}
