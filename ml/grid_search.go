package ml

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ParamGrid is the hyperparameter space. A MaxDepth of 0 stands for unlimited depth.
type ParamGrid struct {
	NEstimators     []int `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        []int `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit []int `json:"min_samples_split" yaml:"min_samples_split"`
}

// DefaultParamGrid is the 3x4x3 grid searched by the training pipeline.
func DefaultParamGrid() ParamGrid {
	return ParamGrid{
		NEstimators:     []int{50, 100, 200},
		MaxDepth:        []int{0, 10, 20, 30},
		MinSamplesSplit: []int{2, 5, 10},
	}
}

func (g ParamGrid) Size() int {
	return len(g.NEstimators) * len(g.MaxDepth) * len(g.MinSamplesSplit)
}

// Combinations enumerates the full cross-product with parameter names in alphabetical
// order (max_depth, min_samples_split, n_estimators) and the last one varying fastest.
// This order decides ties.
func (g ParamGrid) Combinations(base ForestParams) []ForestParams {
	combos := make([]ForestParams, 0, g.Size())
	for _, depth := range g.MaxDepth {
		for _, split := range g.MinSamplesSplit {
			for _, n := range g.NEstimators {
				p := base
				p.MaxDepth = depth
				p.MinSamplesSplit = split
				p.NEstimators = n
				combos = append(combos, p)
			}
		}
	}
	return combos
}

// SearchIteration is the cross-validation outcome for one configuration.
type SearchIteration struct {
	ID       int           `json:"id"`
	Params   ForestParams  `json:"params"`
	Scores   []float64     `json:"scores"`
	Mean     float64       `json:"mean"`
	Std      float64       `json:"std"`
	Rank     int           `json:"rank"`
	Duration time.Duration `json:"duration"`
}

// SearchResult holds every iteration in enumeration order plus the winner.
type SearchResult struct {
	Best       SearchIteration   `json:"best"`
	Iterations []SearchIteration `json:"iterations"`
	Duration   time.Duration     `json:"duration"`
}

// GridSearch evaluates every configuration of Grid with stratified k-fold cross-validation.
type GridSearch struct {
	Grid   ParamGrid
	Base   ForestParams
	Folds  int
	Jobs   int
	Scorer Scorer
	// OnProgress is called after each fold evaluation from worker goroutines, so it must
	// be safe for concurrent use.
	OnProgress func(done, total int)
}

// NewGridSearch scores with accuracy on every CPU unless Scorer or Jobs are set.
func NewGridSearch(grid ParamGrid, base ForestParams, folds int) *GridSearch {
	return &GridSearch{Grid: grid, Base: base, Folds: folds}
}

// Fit runs every (configuration, fold) pair as an independent task. Each task fits its own
// forest and writes one slot of the score table; nothing else is shared between workers.
// The best configuration has the highest mean score, ties going to the earliest one.
func (gs *GridSearch) Fit(ctx context.Context, features [][]float64, labels []int) (*SearchResult, error) {
	start := time.Now()
	combos := gs.Grid.Combinations(gs.Base)
	if len(combos) == 0 {
		return nil, fmt.Errorf("parameter grid is empty")
	}
	folds, err := StratifiedKFold(labels, gs.Folds)
	if err != nil {
		return nil, err
	}
	scorer := gs.Scorer
	if scorer == nil {
		scorer = Accuracy
	}

	scores := make([][]float64, len(combos))
	durations := make([]time.Duration, len(combos))
	foldDurations := make([][]time.Duration, len(combos))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
		foldDurations[i] = make([]time.Duration, len(folds))
	}

	total := len(combos) * len(folds)
	var done int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobLimit(gs.Jobs))
	for c := range combos {
		for f := range folds {
			c, f := c, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				params := combos[c]
				params.Jobs = 1
				taskStart := time.Now()
				score, err := scoreFold(gctx, NewRandomForest(params), scorer, features, labels, folds[f])
				if err != nil {
					return fmt.Errorf("%s fold %d: %w", combos[c], f, err)
				}
				scores[c][f] = score
				foldDurations[c][f] = time.Since(taskStart)
				if gs.OnProgress != nil {
					gs.OnProgress(int(atomic.AddInt64(&done, 1)), total)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	iterations := make([]SearchIteration, len(combos))
	bestIdx := -1
	for c := range combos {
		for _, d := range foldDurations[c] {
			durations[c] += d
		}
		mean, std := MeanStd(scores[c])
		iterations[c] = SearchIteration{
			ID:       c + 1,
			Params:   combos[c],
			Scores:   scores[c],
			Mean:     mean,
			Std:      std,
			Duration: durations[c],
		}
		if bestIdx == -1 || mean > iterations[bestIdx].Mean {
			bestIdx = c
		}
	}
	rankIterations(iterations)

	return &SearchResult{
		Best:       iterations[bestIdx],
		Iterations: iterations,
		Duration:   time.Since(start),
	}, nil
}

// rankIterations assigns rank 1 to the best mean; equal means share a rank.
func rankIterations(iterations []SearchIteration) {
	order := make([]int, len(iterations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return iterations[order[a]].Mean > iterations[order[b]].Mean
	})
	for pos, i := range order {
		if pos > 0 && iterations[i].Mean == iterations[order[pos-1]].Mean {
			iterations[i].Rank = iterations[order[pos-1]].Rank
			continue
		}
		iterations[i].Rank = pos + 1
	}
}
