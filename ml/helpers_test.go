package ml

import "math/rand"

// blobs returns three well separated clusters in two dimensions with the given class sizes.
func blobs(seed int64, sizes ...int) ([][]float64, []int) {
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	rng := rand.New(rand.NewSource(seed))
	var x [][]float64
	var y []int
	for class, n := range sizes {
		c := centers[class%len(centers)]
		for i := 0; i < n; i++ {
			x = append(x, []float64{c[0] + rng.NormFloat64(), c[1] + rng.NormFloat64()})
			y = append(y, class)
		}
	}
	return x, y
}
