// Package training turns a dataset CSV into a tuned random forest artifact.
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medrisk/dataset"
	"medrisk/logging"
	"medrisk/ml"
)

// ErrDatasetNotFound is returned before any output is written when the dataset file is absent.
var ErrDatasetNotFound = errors.New("dataset not found")

// Config holds the pipeline inputs. Zero Workers uses every CPU.
type Config struct {
	DatasetPath  string
	ArtifactPath string
	Seed         int64
	TestRatio    float64
	SearchFolds  int
	FinalFolds   int
	SMOTEK       int
	// Workers bounds every parallel stage. 0 uses every CPU.
	Workers     int
	Grid        ml.ParamGrid
	Base        ml.ForestParams
	LatencyRuns int
}

// DefaultConfig mirrors the default config.yaml training section.
func DefaultConfig() Config {
	return Config{
		DatasetPath:  "data/medical_data.csv",
		ArtifactPath: "models/model.json",
		Seed:         42,
		TestRatio:    0.2,
		SearchFolds:  3,
		FinalFolds:   5,
		SMOTEK:       5,
		Grid:         ml.DefaultParamGrid(),
		Base:         ml.DefaultForestParams(),
		LatencyRuns:  100,
	}
}

// Report summarises one training run.
type Report struct {
	RunID           string                   `json:"run_id"`
	DatasetPath     string                   `json:"dataset_path"`
	ArtifactPath    string                   `json:"artifact_path"`
	Samples         int                      `json:"samples"`
	TrainSize       int                      `json:"train_size"`
	TestSize        int                      `json:"test_size"`
	ResampledSize   int                      `json:"resampled_size"`
	OriginalCounts  map[int]int              `json:"original_counts"`
	ResampledCounts map[int]int              `json:"resampled_counts"`
	Baseline        *ml.ClassificationReport `json:"baseline"`
	Search          *ml.SearchResult         `json:"search"`
	Best            ml.ForestParams          `json:"best"`
	CVScores        []float64                `json:"cv_scores"`
	CVMean          float64                  `json:"cv_mean"`
	CVStd           float64                  `json:"cv_std"`
	TestAccuracy    float64                  `json:"test_accuracy"`
	Final           *ml.ClassificationReport `json:"final"`
	LatencyMS       float64                  `json:"latency_ms"`
	TrainedAt       time.Time                `json:"trained_at"`
	Duration        time.Duration            `json:"duration"`
}

// RunRecorder persists a finished run. It is only called after the artifact is saved.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *Report) error
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithRecorder stores each successful run after the artifact is saved.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithProgress reports grid search fold evaluations. fn is called concurrently.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithOutput receives the human readable classification reports.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// Pipeline runs one training job per Run call.
type Pipeline struct {
	cfg      Config
	logger   *zap.Logger
	recorder RunRecorder
	progress func(done, total int)
	out      io.Writer
}

// NewPipeline builds a pipeline; a nil logger discards logs.
func NewPipeline(cfg Config, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.Component(logger, "training"),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes split, baseline, SMOTE, grid search, final validation, latency check and save,
// in that order. Any failure aborts the run before the artifact is written.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := p.cfg
	report := &Report{
		RunID:        uuid.NewString(),
		DatasetPath:  cfg.DatasetPath,
		ArtifactPath: cfg.ArtifactPath,
	}
	log := p.logger.With(zap.String("run_id", report.RunID))

	if _, err := os.Stat(cfg.DatasetPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, cfg.DatasetPath)
		}
		return nil, err
	}
	log.Info("loading dataset", zap.String("path", cfg.DatasetPath))
	ds, err := dataset.ReadCSV(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	report.Samples = ds.Len()

	train, test, err := ds.Split(cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, err
	}
	report.TrainSize, report.TestSize = train.Len(), test.Len()
	log.Info("dataset split",
		zap.Int("samples", ds.Len()),
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
		zap.String("classes", ds.Distribution()))

	trainX, trainY := train.Features(), train.Labels()
	testX, testY := test.Features(), test.Labels()

	baseline, err := p.baseline(ctx, trainX, trainY, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	report.Baseline = baseline
	log.Info("baseline model", zap.Float64("accuracy", baseline.Accuracy))
	fmt.Fprintf(p.out, "\n--- Baseline Model (Before Tuning) ---\n%s", baseline)

	resX, resY, err := ml.NewSMOTE(cfg.SMOTEK, cfg.Seed).FitResample(trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("smote: %w", err)
	}
	report.OriginalCounts = ml.ClassCounts(trainY)
	report.ResampledCounts = ml.ClassCounts(resY)
	report.ResampledSize = len(resY)
	log.Info("smote resampling",
		zap.Int("original", len(trainY)),
		zap.Int("resampled", len(resY)),
		zap.Any("counts", report.ResampledCounts))
	fmt.Fprintf(p.out, "\nOriginal training size: %d, Resampled size: %d\n", len(trainY), len(resY))

	search := ml.NewGridSearch(cfg.Grid, cfg.Base, cfg.SearchFolds)
	search.Jobs = cfg.Workers
	search.OnProgress = p.progress
	log.Info("grid search started",
		zap.Int("configurations", cfg.Grid.Size()),
		zap.Int("folds", cfg.SearchFolds))
	result, err := search.Fit(ctx, resX, resY)
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}
	report.Search = result
	report.Best = result.Best.Params
	log.Info("grid search finished",
		zap.Duration("elapsed", result.Duration),
		zap.Stringer("best", result.Best.Params),
		zap.Float64("mean_score", result.Best.Mean))
	fmt.Fprintf(p.out, "\nGrid search completed in %.2f seconds\nBest Parameters: %s\n",
		result.Duration.Seconds(), result.Best.Params)

	best := result.Best.Params
	best.Jobs = cfg.Workers
	cv := ml.CrossValidator{Folds: cfg.FinalFolds, Jobs: cfg.Workers}
	scores, err := cv.Score(ctx, func() ml.Estimator {
		params := best
		params.Jobs = 1
		return ml.NewRandomForest(params)
	}, resX, resY)
	if err != nil {
		return nil, fmt.Errorf("final cross-validation: %w", err)
	}
	report.CVScores = scores
	report.CVMean, report.CVStd = ml.MeanStd(scores)

	model := ml.NewRandomForest(best)
	if err := model.Fit(ctx, resX, resY); err != nil {
		return nil, fmt.Errorf("final fit: %w", err)
	}
	final, err := evaluate(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("final evaluation: %w", err)
	}
	report.Final = final
	report.TestAccuracy = final.Accuracy
	log.Info("final model validated",
		zap.Float64("cv_mean", report.CVMean),
		zap.Float64("cv_std", report.CVStd),
		zap.Float64("test_accuracy", report.TestAccuracy))
	fmt.Fprintf(p.out, "\n%d-Fold Cross-Validation Score: %.2f\nTest Accuracy: %.1f%%\n\nClassification Report (Final):\n%s",
		cfg.FinalFolds, report.CVMean, report.TestAccuracy*100, final)

	latency, err := MeasureLatency(model, testX[0], cfg.LatencyRuns)
	if err != nil {
		return nil, fmt.Errorf("latency check: %w", err)
	}
	report.LatencyMS = float64(latency) / float64(time.Millisecond)
	log.Info("prediction latency", zap.Float64("mean_ms", report.LatencyMS))
	fmt.Fprintf(p.out, "\nAverage Prediction Latency: %.2f ms\n", report.LatencyMS)

	if err := model.Save(cfg.ArtifactPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	report.TrainedAt = time.Now().UTC()
	report.Duration = time.Since(start)
	log.Info("model saved", zap.String("path", cfg.ArtifactPath), zap.Duration("elapsed", report.Duration))

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, report); err != nil {
			log.Warn("failed to record training run", zap.Error(err))
		}
	}
	return report, nil
}

func (p *Pipeline) baseline(ctx context.Context, trainX [][]float64, trainY []int, testX [][]float64, testY []int) (*ml.ClassificationReport, error) {
	params := p.cfg.Base
	params.Jobs = p.cfg.Workers
	model := ml.NewRandomForest(params)
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		return nil, err
	}
	return evaluate(model, testX, testY)
}

func evaluate(model ml.Predictor, testX [][]float64, testY []int) (*ml.ClassificationReport, error) {
	preds, err := ml.Evaluate(model, testX)
	if err != nil {
		return nil, err
	}
	report, err := ml.NewClassificationReport(testY, preds, dataset.NumClasses)
	if err != nil {
		return nil, err
	}
	report.ClassNames = dataset.ClassNames
	return report, nil
}

// MeasureLatency returns the mean wall time of runs single-record predictions.
func MeasureLatency(model ml.Predictor, record []float64, runs int) (time.Duration, error) {
	if runs <= 0 {
		runs = 1
	}
	start := time.Now()
	for i := 0; i < runs; i++ {
		if _, _, err := model.Predict(record); err != nil {
			return 0, err
		}
	}
	return time.Since(start) / time.Duration(runs), nil
}
