package ml

import (
	"context"
	"math"
	"testing"
)

func TestStratifiedKFoldPartitions(t *testing.T) {
	labels := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 2, 2, 2}
	folds, err := StratifiedKFold(labels, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[int]int)
	for f, fold := range folds {
		if len(fold.Train)+len(fold.Test) != len(labels) {
			t.Fatalf("fold %d does not cover every row", f)
		}
		counts := make(map[int]int)
		for _, i := range fold.Test {
			seen[i]++
			counts[labels[i]]++
		}
		if counts[0] != 2 || counts[1] != 1 || counts[2] != 1 {
			t.Fatalf("fold %d is not stratified: %v", f, counts)
		}
	}
	for i := range labels {
		if seen[i] != 1 {
			t.Fatalf("row %d tested %d times", i, seen[i])
		}
	}
}

func TestStratifiedKFoldErrors(t *testing.T) {
	if _, err := StratifiedKFold([]int{0, 1}, 1); err == nil {
		t.Fatal("expected error for k < 2")
	}
	if _, err := StratifiedKFold([]int{0, 1}, 3); err == nil {
		t.Fatal("expected error for too few samples")
	}
}

func TestCrossValidatorScore(t *testing.T) {
	x, y := blobs(30, 30, 30, 30)
	cv := CrossValidator{Folds: 5}
	scores, err := cv.Score(context.Background(), func() Estimator {
		p := DefaultForestParams()
		p.NEstimators = 10
		p.Jobs = 1
		return NewRandomForest(p)
	}, x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(scores))
	}
	mean, std := MeanStd(scores)
	if mean < 0.9 {
		t.Fatalf("expected separable blobs to score well, got %v", mean)
	}
	if std < 0 {
		t.Fatalf("negative std %v", std)
	}
}

func TestMeanStdUsesPopulationDeviation(t *testing.T) {
	tests := []struct {
		scores    []float64
		mean, std float64
	}{
		{nil, 0, 0},
		{[]float64{0.8}, 0.8, 0},
		{[]float64{0.9, 0.9, 0.9}, 0.9, 0},
		{[]float64{0.8, 1.0}, 0.9, 0.1},
		{[]float64{1, 2, 3, 4}, 2.5, math.Sqrt(1.25)},
	}
	for _, tt := range tests {
		mean, std := MeanStd(tt.scores)
		if math.Abs(mean-tt.mean) > 1e-12 || math.Abs(std-tt.std) > 1e-12 {
			t.Errorf("MeanStd(%v) = (%v, %v), want (%v, %v)", tt.scores, mean, std, tt.mean, tt.std)
		}
	}
}
