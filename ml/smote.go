package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SMOTE raises every minority class to the majority count by interpolating between a sample
// and one of its K nearest same-class neighbours.
type SMOTE struct {
	K    int
	Seed int64
}

// NewSMOTE returns an oversampler; k <= 0 means 5 neighbours.
func NewSMOTE(k int, seed int64) *SMOTE {
	return &SMOTE{K: k, Seed: seed}
}

// FitResample returns the input rows, unchanged and in order, followed by the synthetic rows
// for each minority class in ascending class order. The input slices are not modified.
func (s *SMOTE) FitResample(features [][]float64, labels []int) ([][]float64, []int, error) {
	_, nClasses, err := checkTrainingSet(features, labels)
	if err != nil {
		return nil, nil, err
	}
	k := s.K
	if k <= 0 {
		k = 5
	}

	byClass := make([][]int, nClasses)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	majority := 0
	for _, rows := range byClass {
		if len(rows) > majority {
			majority = len(rows)
		}
	}

	outX := make([][]float64, len(features), len(features)+nClasses*majority)
	outY := make([]int, len(labels), cap(outX))
	copy(outX, features)
	copy(outY, labels)

	rng := rand.New(rand.NewSource(s.Seed))
	for class, rows := range byClass {
		need := majority - len(rows)
		if need <= 0 || len(rows) == 0 {
			continue
		}
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("class %d has a single sample, cannot interpolate", class)
		}
		neighbours := nearestNeighbours(features, rows, minInt(k, len(rows)-1))
		for n := 0; n < need; n++ {
			pos := rng.Intn(len(rows))
			nn := neighbours[pos][rng.Intn(len(neighbours[pos]))]
			gap := rng.Float64()

			base := features[rows[pos]]
			other := features[nn]
			synthetic := make([]float64, len(base))
			for j := range base {
				synthetic[j] = base[j] + gap*(other[j]-base[j])
			}
			outX = append(outX, synthetic)
			outY = append(outY, class)
		}
	}
	return outX, outY, nil
}

// nearestNeighbours returns, for each row in rows, the k closest other rows (by Euclidean
// distance) as indexes into features. Equal distances keep the lower index first.
func nearestNeighbours(features [][]float64, rows []int, k int) [][]int {
	out := make([][]int, len(rows))
	type candidate struct {
		row  int
		dist float64
	}
	candidates := make([]candidate, 0, len(rows)-1)
	for i, row := range rows {
		candidates = candidates[:0]
		for _, other := range rows {
			if other == row {
				continue
			}
			candidates = append(candidates, candidate{
				row:  other,
				dist: floats.Distance(features[row], features[other], 2),
			})
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].dist < candidates[b].dist
		})
		nearest := make([]int, k)
		for j := 0; j < k; j++ {
			nearest[j] = candidates[j].row
		}
		out[i] = nearest
	}
	return out
}

// ClassCounts counts labels per class.
func ClassCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
