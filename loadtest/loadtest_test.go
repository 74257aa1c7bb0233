package loadtest

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRandomPayloadRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		p := RandomPayload(rng)
		age := p["age"].(int)
		assert.True(t, age >= 20 && age <= 80)
		bmi := p["bmi"].(float64)
		assert.True(t, bmi >= 18.5 && bmi <= 35.0, "bmi %v", bmi)
		bp := p["bp"].(int)
		assert.True(t, bp >= 100 && bp <= 160)
		chol := p["cholesterol"].(int)
		assert.True(t, chol >= 150 && chol <= 280)
		glucose := p["glucose"].(int)
		assert.True(t, glucose >= 70 && glucose <= 180)
		assert.Contains(t, []int{0, 1}, p["gender"])
	}
}

func TestRunCountsSuccessAndFailure(t *testing.T) {
	var calls, inFlight, maxInFlight atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if calls.Add(1)%5 == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"prediction": "Healthy", "probability": "90.00%", "latency_ms": "0.10 ms"})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.Requests = 50
	cfg.Concurrency = 4
	cfg.Seed = 7

	var seen atomic.Int64
	runner := NewRunner(cfg, srv.Client(), zaptest.NewLogger(t))
	runner.OnResult = func(Result) { seen.Add(1) }

	summary, results, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, summary.Requests)
	assert.Equal(t, 40, summary.Succeeded)
	assert.Equal(t, 10, summary.Failed)
	assert.Equal(t, int64(50), seen.Load())
	assert.Equal(t, int64(50), calls.Load())
	assert.LessOrEqual(t, maxInFlight.Load(), int64(4))
	assert.LessOrEqual(t, summary.P50, summary.P95)
	assert.Positive(t, summary.RPS)

	for _, res := range results {
		if res.OK() {
			assert.Equal(t, "Healthy", res.Prediction)
			assert.Equal(t, "0.10 ms", res.ServerLatency)
		}
	}
}

func TestRunTransportErrorsAreCounted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Requests = 5
	cfg.Concurrency = 2
	summary, results, err := NewRunner(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Failed)
	for _, res := range results {
		assert.Error(t, res.Err)
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Status: 200, ClientLatency: 10 * time.Millisecond},
		{Status: 200, ClientLatency: 30 * time.Millisecond},
		{Status: 200, ClientLatency: 20 * time.Millisecond},
		{Status: 500, ClientLatency: time.Second},
	}
	s := Summarize(results, 2*time.Second)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
	assert.Equal(t, 20*time.Millisecond, s.P50)
	assert.Equal(t, 30*time.Millisecond, s.P95)
	assert.Equal(t, 2.0, s.RPS)
}

func TestRunRejectsZeroRequests(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Requests = 0
	_, _, err := NewRunner(cfg, nil, nil).Run(context.Background())
	assert.Error(t, err)
}
