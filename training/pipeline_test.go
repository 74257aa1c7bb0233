package training

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"medrisk/dataset"
	"medrisk/ml"
)

type recorderFunc func(ctx context.Context, r *Report) error

func (f recorderFunc) RecordRun(ctx context.Context, r *Report) error { return f(ctx, r) }

func smallConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DatasetPath = filepath.Join(dir, "medical_data.csv")
	cfg.ArtifactPath = filepath.Join(dir, "models", "model.json")
	cfg.Grid = ml.ParamGrid{
		NEstimators:     []int{5, 10},
		MaxDepth:        []int{0, 6},
		MinSamplesSplit: []int{2},
	}
	cfg.Base.NEstimators = 10
	cfg.LatencyRuns = 10
	return cfg
}

func TestPipelineRun(t *testing.T) {
	cfg := smallConfig(t)
	require.NoError(t, dataset.WriteCSV(cfg.DatasetPath, dataset.NewGenerator(42, 400).Generate()))

	var recorded *Report
	var progress atomic.Int64
	var out bytes.Buffer
	p := NewPipeline(cfg, zaptest.NewLogger(t),
		WithOutput(&out),
		WithProgress(func(done, total int) { progress.Add(1) }),
		WithRecorder(recorderFunc(func(_ context.Context, r *Report) error {
			_, err := os.Stat(cfg.ArtifactPath)
			require.NoError(t, err, "artifact must exist before the run is recorded")
			recorded = r
			return nil
		})),
	)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, recorded)

	assert.Equal(t, 400, report.Samples)
	assert.Equal(t, 80, report.TestSize)
	assert.Equal(t, 320, report.TrainSize)
	assert.Len(t, report.Search.Iterations, 4)
	assert.Equal(t, int64(4*3), progress.Load())
	assert.Len(t, report.CVScores, 5)
	assert.NotEmpty(t, report.RunID)

	for class, n := range report.OriginalCounts {
		assert.GreaterOrEqual(t, report.ResampledCounts[class], n)
	}
	majority := 0
	for _, n := range report.OriginalCounts {
		if n > majority {
			majority = n
		}
	}
	for _, n := range report.ResampledCounts {
		assert.Equal(t, majority, n)
	}
	assert.Equal(t, majority*len(report.OriginalCounts), report.ResampledSize)

	for _, it := range report.Search.Iterations {
		assert.LessOrEqual(t, it.Mean, report.Search.Best.Mean)
	}
	assert.Greater(t, report.TestAccuracy, 0.4)
	assert.GreaterOrEqual(t, report.LatencyMS, 0.0)
	assert.Contains(t, out.String(), "Best Parameters:")
	assert.Contains(t, out.String(), "Heart Disease Risk")

	model, err := ml.LoadModel(ml.ModelTypeRandomForest, cfg.ArtifactPath)
	require.NoError(t, err)
	forest := model.(*ml.RandomForest)
	assert.Equal(t, report.Best.NEstimators, len(forest.Trees))

	assertTestSplitUntouched(t, cfg, report)
}

// assertTestSplitUntouched checks that the rows scored after SMOTE are exactly the held-out
// split: same size and class counts as an independent split, and no synthetic rows.
func assertTestSplitUntouched(t *testing.T, cfg Config, report *Report) {
	t.Helper()
	ds, err := dataset.ReadCSV(cfg.DatasetPath)
	require.NoError(t, err)
	train, test, err := ds.Split(cfg.TestRatio, cfg.Seed)
	require.NoError(t, err)

	want := test.ClassCounts()
	require.NotNil(t, report.Final)
	require.NotNil(t, report.Baseline)
	assert.Equal(t, test.Len(), report.TestSize)
	assert.Equal(t, test.Len(), report.Final.MacroAvg.Support)
	assert.Equal(t, report.Baseline.MacroAvg.Support, report.Final.MacroAvg.Support)
	for _, m := range report.Final.Classes {
		assert.Equal(t, want[m.Class], m.Support, "class %d", m.Class)
	}
	for i, m := range report.Baseline.Classes {
		assert.Equal(t, m.Support, report.Final.Classes[i].Support)
	}

	assert.Equal(t, train.Len(), report.TrainSize)
	assert.Equal(t, report.Samples, report.TrainSize+report.TestSize)
	assert.Greater(t, report.ResampledSize, report.TrainSize, "synthetic rows belong to the train split")
}

func TestPipelineDatasetNotFound(t *testing.T) {
	cfg := smallConfig(t)
	called := false
	p := NewPipeline(cfg, nil, WithRecorder(recorderFunc(func(context.Context, *Report) error {
		called = true
		return nil
	})))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetNotFound))
	assert.False(t, called)
	_, statErr := os.Stat(cfg.ArtifactPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineRecorderFailureKeepsArtifact(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Grid = ml.ParamGrid{NEstimators: []int{5}, MaxDepth: []int{6}, MinSamplesSplit: []int{2}}
	require.NoError(t, dataset.WriteCSV(cfg.DatasetPath, dataset.NewGenerator(1, 200).Generate()))

	p := NewPipeline(cfg, zaptest.NewLogger(t), WithRecorder(recorderFunc(func(context.Context, *Report) error {
		return errors.New("disk full")
	})))
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, statErr := os.Stat(cfg.ArtifactPath)
	assert.NoError(t, statErr)
}

func TestMeasureLatency(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}}
	y := []int{0, 0, 1, 1}
	tree := ml.NewDecisionTree(ml.TreeParams{})
	require.NoError(t, tree.Fit(context.Background(), x, y))

	d, err := MeasureLatency(tree, []float64{2.5}, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int64(d), int64(0))

	_, err = MeasureLatency(tree, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ml.ErrFeatureCount)
}
