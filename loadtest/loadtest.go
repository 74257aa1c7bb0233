// Package loadtest fires concurrent prediction requests at a running server and summarises
// the latencies it observes.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"
)

// Config describes one load test.
type Config struct {
	URL         string
	Requests    int
	Concurrency int
	// RPS caps the request rate across all workers. 0 means unlimited.
	RPS     float64
	Seed    int64
	Timeout time.Duration
}

// DefaultConfig matches the classic 100 requests from 10 concurrent users.
func DefaultConfig() Config {
	return Config{
		URL:         "http://127.0.0.1:5000/predict",
		Requests:    100,
		Concurrency: 10,
		Seed:        time.Now().UnixNano(),
		Timeout:     10 * time.Second,
	}
}

// Result is one request's outcome. Err is set for transport failures; Status is 0 then.
type Result struct {
	ID            int
	Status        int
	ClientLatency time.Duration
	ServerLatency string
	Prediction    string
	Err           error
}

func (r Result) OK() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

// Summary aggregates latencies of successful requests.
type Summary struct {
	Requests  int           `json:"requests"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Mean      time.Duration `json:"mean"`
	P50       time.Duration `json:"p50"`
	P95       time.Duration `json:"p95"`
	Total     time.Duration `json:"total"`
	RPS       float64       `json:"rps"`
}

func (s Summary) String() string {
	return fmt.Sprintf("requests=%d ok=%d failed=%d mean=%s p50=%s p95=%s total=%s rps=%.2f",
		s.Requests, s.Succeeded, s.Failed, s.Mean, s.P50, s.P95, s.Total.Round(time.Millisecond), s.RPS)
}

// Runner posts random patients to a prediction endpoint.
type Runner struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	// OnResult, when set, is called from worker goroutines after each request.
	OnResult func(Result)
}

// NewRunner uses a client with cfg.Timeout when client is nil.
func NewRunner(cfg Config, client *http.Client, logger *zap.Logger) *Runner {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, client: client, logger: logger}
}

// Run sends every request once; failures are counted, never retried. Only cancellation of
// ctx aborts the run early.
func (r *Runner) Run(ctx context.Context) (*Summary, []Result, error) {
	if r.cfg.Requests <= 0 {
		return nil, nil, fmt.Errorf("requests must be positive, got %d", r.cfg.Requests)
	}
	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	rng := rand.New(rand.NewSource(r.cfg.Seed))
	payloads := make([][]byte, r.cfg.Requests)
	for i := range payloads {
		body, err := json.Marshal(RandomPayload(rng))
		if err != nil {
			return nil, nil, err
		}
		payloads[i] = body
	}

	var limiter *rate.Limiter
	if r.cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RPS), 1)
	}

	r.logger.Info("load test started",
		zap.String("url", r.cfg.URL),
		zap.Int("requests", r.cfg.Requests),
		zap.Int("concurrency", concurrency))

	results := make([]Result, r.cfg.Requests)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range payloads {
		i := i
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			res := r.send(gctx, i, payloads[i])
			results[i] = res
			if r.OnResult != nil {
				r.OnResult(res)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	total := time.Since(start)

	summary := Summarize(results, total)
	r.logger.Info("load test finished",
		zap.Int("ok", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("p95", summary.P95),
		zap.Float64("rps", summary.RPS))
	return &summary, results, nil
}

func (r *Runner) send(ctx context.Context, id int, body []byte) Result {
	res := Result{ID: id}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		res.Err = err
		res.ClientLatency = time.Since(start)
		return res
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	res.ClientLatency = time.Since(start)
	res.Status = resp.StatusCode
	if err != nil {
		res.Err = err
		return res
	}

	var decoded struct {
		Prediction string `json:"prediction"`
		LatencyMS  string `json:"latency_ms"`
	}
	if json.Unmarshal(payload, &decoded) == nil {
		res.Prediction = decoded.Prediction
		res.ServerLatency = decoded.LatencyMS
	}
	return res
}

// RandomPayload draws a plausible patient.
func RandomPayload(rng *rand.Rand) map[string]any {
	return map[string]any{
		"age":         20 + rng.Intn(61),
		"bmi":         math.Round((18.5+rng.Float64()*(35.0-18.5))*10) / 10,
		"bp":          100 + rng.Intn(61),
		"cholesterol": 150 + rng.Intn(131),
		"glucose":     70 + rng.Intn(111),
		"gender":      rng.Intn(2),
	}
}

// Summarize computes latency statistics over successful requests only.
func Summarize(results []Result, total time.Duration) Summary {
	s := Summary{Requests: len(results), Total: total}
	latencies := make([]float64, 0, len(results))
	for _, res := range results {
		if !res.OK() {
			s.Failed++
			continue
		}
		s.Succeeded++
		latencies = append(latencies, float64(res.ClientLatency))
	}
	if total > 0 {
		s.RPS = float64(len(results)) / total.Seconds()
	}
	if len(latencies) == 0 {
		return s
	}
	sort.Float64s(latencies)
	s.Mean = time.Duration(stat.Mean(latencies, nil))
	s.P50 = time.Duration(stat.Quantile(0.5, stat.Empirical, latencies, nil))
	s.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, latencies, nil))
	return s
}
