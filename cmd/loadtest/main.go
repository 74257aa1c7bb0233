package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"medrisk/loadtest"
	"medrisk/logging"
)

type args struct {
	URL         string        `arg:"-u,--url" default:"http://127.0.0.1:5000/predict" help:"prediction endpoint"`
	Requests    int           `arg:"-n,--requests" default:"100" help:"total requests"`
	Concurrency int           `arg:"-c,--concurrency" default:"10" help:"requests in flight"`
	RPS         float64       `arg:"--rps" help:"rate cap across workers, 0 for none"`
	Seed        int64         `arg:"--seed" help:"payload seed, 0 picks one from the clock"`
	Timeout     time.Duration `arg:"--timeout" default:"10s" help:"per-request timeout"`
	Quiet       bool          `arg:"-q,--quiet" help:"only print the summary"`
}

func (args) Description() string {
	return "loadtest posts random patients to a running medrisk server"
}

func main() {
	var a args
	arg.MustParse(&a)

	logger, err := logging.New(logging.DefaultConfig(), false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := loadtest.DefaultConfig()
	cfg.URL = a.URL
	cfg.Requests = a.Requests
	cfg.Concurrency = a.Concurrency
	cfg.RPS = a.RPS
	cfg.Timeout = a.Timeout
	if a.Seed != 0 {
		cfg.Seed = a.Seed
	}

	runner := loadtest.NewRunner(cfg, nil, logger)
	if !a.Quiet {
		runner.OnResult = func(res loadtest.Result) {
			switch {
			case res.Err != nil:
				fmt.Printf("User %d: Error - %v\n", res.ID, res.Err)
			case res.OK():
				fmt.Printf("User %d: OK | Client latency: %.1fms | API latency: %s\n",
					res.ID, float64(res.ClientLatency)/float64(time.Millisecond), res.ServerLatency)
			default:
				fmt.Printf("User %d: Request failed (%d)\n", res.ID, res.Status)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, _, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal("load test aborted", zap.Error(err))
	}
	fmt.Printf("\nTest completed.\nTotal Time: %.2fs\nRequests per second: %.2f\n", summary.Total.Seconds(), summary.RPS)
	fmt.Println(summary)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}
