package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams are the random forest hyperparameters. MaxDepth 0 grows trees until leaves
// are pure or smaller than MinSamplesSplit. MaxFeatures 0 means sqrt(n_features).
type ForestParams struct {
	NEstimators     int   `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     int   `json:"max_features" yaml:"max_features"`
	Bootstrap       bool  `json:"bootstrap" yaml:"bootstrap"`
	Seed            int64 `json:"seed" yaml:"seed"`
	// Jobs bounds the goroutines used by Fit. 0 uses every CPU.
	Jobs int `json:"-" yaml:"-"`
}

// DefaultForestParams: 100 bootstrapped trees, unlimited depth, sqrt features per split.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		Seed:            42,
	}
}

func (p ForestParams) String() string {
	depth := "none"
	if p.MaxDepth > 0 {
		depth = fmt.Sprint(p.MaxDepth)
	}
	return fmt.Sprintf("n_estimators=%d max_depth=%s min_samples_split=%d", p.NEstimators, depth, p.MinSamplesSplit)
}

// RandomForest is a bagged ensemble of CART trees. Safe for concurrent prediction once fitted.
type RandomForest struct {
	Params    ForestParams    `json:"params"`
	Trees     []*DecisionTree `json:"trees"`
	NClasses  int             `json:"n_classes"`
	NFeatures int             `json:"n_features"`
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit grows every tree on its own bootstrap sample. Tree seeds are drawn up front from the
// forest seed so the fitted forest does not depend on goroutine scheduling.
func (rf *RandomForest) Fit(ctx context.Context, features [][]float64, labels []int) error {
	nFeatures, nClasses, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if rf.Params.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", rf.Params.NEstimators)
	}

	maxFeatures := rf.Params.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	treeParams := TreeParams{
		MaxDepth:        rf.Params.MaxDepth,
		MinSamplesSplit: rf.Params.MinSamplesSplit,
		MaxFeatures:     maxFeatures,
	}

	master := rand.New(rand.NewSource(rf.Params.Seed))
	seeds := make([]int64, rf.Params.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*DecisionTree, rf.Params.NEstimators)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobLimit(rf.Params.Jobs))
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := sampleRows(len(features), rf.Params.Bootstrap, rng)
			tree := &DecisionTree{Params: treeParams, Seed: seeds[i]}
			if err := tree.fit(features, labels, idx, nFeatures, nClasses, rng); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.NClasses = nClasses
	rf.NFeatures = nFeatures
	return nil
}

// PredictProba averages the leaf distributions of every tree.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != rf.NFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), rf.NFeatures)
	}
	proba := make([]float64, rf.NClasses)
	for _, tree := range rf.Trees {
		leaf, err := tree.leaf(features)
		if err != nil {
			return nil, err
		}
		for class, v := range leaf.Value {
			proba[class] += v
		}
	}
	n := float64(len(rf.Trees))
	for class := range proba {
		proba[class] /= n
	}
	return proba, nil
}

// Predict returns the most probable class and its probability. Ties go to the lower class.
func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label, confidence := argmax(proba)
	return label, confidence, nil
}

// Save writes the forest as JSON, replacing path atomically.
func (rf *RandomForest) Save(path string) error {
	if len(rf.Trees) == 0 {
		return ErrNotTrained
	}
	return writeJSON(path, rf)
}

// Load replaces rf with a validated forest read from path.
func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded RandomForest
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return fmt.Errorf("decode random forest: %w", err)
	}
	if len(loaded.Trees) == 0 {
		return ErrNotTrained
	}
	for i, tree := range loaded.Trees {
		if tree == nil {
			return fmt.Errorf("%w: tree %d is null", ErrCorruptModel, i)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		if tree.NClasses != loaded.NClasses || tree.NFeatures != loaded.NFeatures {
			return fmt.Errorf("%w: tree %d shape differs from forest", ErrCorruptModel, i)
		}
	}
	*rf = loaded
	return nil
}

func sampleRows(n int, bootstrap bool, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.Intn(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

func jobLimit(jobs int) int {
	if jobs <= 0 {
		return runtime.NumCPU()
	}
	return jobs
}
