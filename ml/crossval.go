package ml

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Fold holds the train and test row indexes of one split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits row indexes into k folds without shuffling. Each class's rows, in
// their original order, are cut into k contiguous chunks whose sizes differ by at most one,
// and fold i tests on chunk i of every class.
func StratifiedKFold(labels []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k must be at least 2, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(labels), k)
	}

	byClass := make(map[int][]int)
	classes := make([]int, 0)
	for i, label := range labels {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Ints(classes)

	testSets := make([][]int, k)
	for _, class := range classes {
		rows := byClass[class]
		start := 0
		for f := 0; f < k; f++ {
			size := len(rows) / k
			if f < len(rows)%k {
				size++
			}
			testSets[f] = append(testSets[f], rows[start:start+size]...)
			start += size
		}
	}

	folds := make([]Fold, k)
	for f := range folds {
		test := testSets[f]
		sort.Ints(test)
		inTest := make(map[int]bool, len(test))
		for _, i := range test {
			inTest[i] = true
		}
		train := make([]int, 0, len(labels)-len(test))
		for i := range labels {
			if !inTest[i] {
				train = append(train, i)
			}
		}
		if len(train) == 0 || len(test) == 0 {
			return nil, fmt.Errorf("fold %d is empty", f)
		}
		folds[f] = Fold{Train: train, Test: test}
	}
	return folds, nil
}

// Scorer turns true and predicted labels into a single number, higher is better.
type Scorer func(yTrue, yPred []int) float64

// CrossValidator scores a fresh estimator on each stratified fold.
type CrossValidator struct {
	Folds  int
	Jobs   int
	Scorer Scorer
}

// Score returns one score per fold, in fold order.
func (cv CrossValidator) Score(ctx context.Context, newEstimator func() Estimator, features [][]float64, labels []int) ([]float64, error) {
	folds, err := StratifiedKFold(labels, cv.Folds)
	if err != nil {
		return nil, err
	}
	scorer := cv.Scorer
	if scorer == nil {
		scorer = Accuracy
	}

	scores := make([]float64, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobLimit(cv.Jobs))
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			score, err := scoreFold(ctx, newEstimator(), scorer, features, labels, fold)
			if err != nil {
				return fmt.Errorf("fold %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func scoreFold(ctx context.Context, est Estimator, scorer Scorer, features [][]float64, labels []int, fold Fold) (float64, error) {
	trainX, trainY := subset(features, labels, fold.Train)
	testX, testY := subset(features, labels, fold.Test)
	if err := est.Fit(ctx, trainX, trainY); err != nil {
		return 0, err
	}
	preds, err := Evaluate(est, testX)
	if err != nil {
		return 0, err
	}
	return scorer(testY, preds), nil
}

func subset(features [][]float64, labels []int, idx []int) ([][]float64, []int) {
	x := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for j, i := range idx {
		x[j] = features[i]
		y[j] = labels[i]
	}
	return x, y
}

// MeanStd summarises fold scores with the population standard deviation.
func MeanStd(scores []float64) (mean, std float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(scores, nil)
}
