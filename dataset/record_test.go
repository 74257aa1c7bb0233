package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSizesAndReproducibility(t *testing.T) {
	ds := NewGenerator(1, 101).Generate()

	train, test, err := ds.Split(0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 21, test.Len())
	assert.Equal(t, 80, train.Len())

	train2, test2, err := ds.Split(0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train.Samples, train2.Samples)
	assert.Equal(t, test.Samples, test2.Samples)

	seen := make(map[Sample]int)
	for _, s := range append(append([]Sample{}, train.Samples...), test.Samples...) {
		seen[s]++
	}
	for _, s := range ds.Samples {
		assert.Positive(t, seen[s])
	}
}

func TestSplitRejectsBadRatio(t *testing.T) {
	ds := NewGenerator(1, 10).Generate()
	for _, ratio := range []float64{0, 1, -0.5} {
		_, _, err := ds.Split(ratio, 1)
		assert.Error(t, err, "ratio %v", ratio)
	}
}

func TestFeaturesFollowVectorOrder(t *testing.T) {
	ds := &Dataset{Samples: []Sample{{Record: Record{1, 2, 3, 4, 5, 0}, Label: 2}}}
	assert.Equal(t, [][]float64{{1, 2, 3, 4, 5, 0}}, ds.Features())
	assert.Equal(t, []int{2}, ds.Labels())
	assert.Equal(t, "2=1", ds.Distribution())
}
