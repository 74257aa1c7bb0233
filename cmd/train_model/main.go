package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"medrisk/config"
	"medrisk/db"
	"medrisk/logging"
	"medrisk/training"
)

type args struct {
	Config   string `arg:"-c,--config" default:"config.yaml" help:"path to the YAML config"`
	Dataset  string `arg:"-d,--dataset" help:"dataset CSV (overrides training.dataset)"`
	Output   string `arg:"-o,--output" help:"model artifact path (overrides model.artifact)"`
	Workers  *int   `arg:"-w,--workers" help:"parallel workers, 0 for every CPU (overrides training.workers)"`
	NoRunLog bool   `arg:"--no-run-log" help:"do not record the run in the sqlite run log"`
	Debug    bool   `arg:"--debug" help:"console logging at debug level"`
}

func (args) Description() string {
	return "train_model tunes a random forest on the dataset and saves the best model"
}

func main() {
	var a args
	arg.MustParse(&a)

	cfg, err := config.Load(a.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log, a.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	tc := training.DefaultConfig()
	tc.DatasetPath = cfg.Training.Dataset
	tc.ArtifactPath = cfg.Model.Artifact
	tc.Seed = cfg.Training.Seed
	tc.TestRatio = cfg.Training.TestRatio
	tc.SearchFolds = cfg.Training.SearchCV
	tc.FinalFolds = cfg.Training.FinalCV
	tc.SMOTEK = cfg.Training.SMOTEK
	tc.Workers = cfg.Training.Workers
	tc.Base.Seed = cfg.Training.Seed
	if a.Dataset != "" {
		tc.DatasetPath = a.Dataset
	}
	if a.Output != "" {
		tc.ArtifactPath = a.Output
	}
	if a.Workers != nil {
		tc.Workers = *a.Workers
	}

	// the bar starts with the first finished fold so it does not interleave with the baseline report
	bar := pb.New(tc.Grid.Size() * tc.SearchFolds)
	var startBar sync.Once
	opts := []training.Option{
		training.WithOutput(os.Stdout),
		training.WithProgress(func(done, total int) {
			startBar.Do(func() {
				bar.SetTotal(int64(total))
				bar.Start()
			})
			bar.Increment()
			if done == total {
				bar.Finish()
			}
		}),
	}
	if cfg.Training.RunLog != "" && !a.NoRunLog {
		store, err := db.Open(cfg.Training.RunLog)
		if err != nil {
			logger.Fatal("failed to open run log", zap.String("path", cfg.Training.RunLog), zap.Error(err))
		}
		defer store.Close()
		opts = append(opts, training.WithRecorder(store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := training.NewPipeline(tc, logger, opts...).Run(ctx)
	if bar.IsStarted() {
		bar.Finish()
	}
	if errors.Is(err, training.ErrDatasetNotFound) {
		fmt.Fprintf(os.Stderr, "dataset not found at %s, run generate_data first\n", tc.DatasetPath)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}
	fmt.Printf("\nSaved model to %s (run %s)\n", report.ArtifactPath, report.RunID)
}
