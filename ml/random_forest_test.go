package ml

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

func fitForest(t *testing.T, params ForestParams, x [][]float64, y []int) *RandomForest {
	t.Helper()
	rf := NewRandomForest(params)
	if err := rf.Fit(context.Background(), x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	return rf
}

func TestRandomForestSeparatesBlobs(t *testing.T) {
	x, y := blobs(10, 40, 40, 40)
	params := DefaultForestParams()
	params.NEstimators = 25
	rf := fitForest(t, params, x, y)

	probes := map[int][]float64{0: {0, 0}, 1: {10, 10}, 2: {-10, 10}}
	for want, probe := range probes {
		label, confidence, err := rf.Predict(probe)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if label != want {
			t.Errorf("probe %v: got class %d, want %d", probe, label, want)
		}
		if confidence < 0.5 || confidence > 1 {
			t.Errorf("probe %v: confidence %v out of expected range", probe, confidence)
		}
	}
}

func TestRandomForestProbabilitiesSumToOne(t *testing.T) {
	x, y := blobs(11, 30, 20, 10)
	params := DefaultForestParams()
	params.NEstimators = 15
	rf := fitForest(t, params, x, y)

	for _, row := range x {
		proba, err := rf.PredictProba(row)
		if err != nil {
			t.Fatalf("predict proba: %v", err)
		}
		sum := 0.0
		for _, p := range proba {
			if p < 0 || p > 1 {
				t.Fatalf("probability %v out of range", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("probabilities sum to %v", sum)
		}
	}
}

func TestRandomForestDeterministicAcrossJobs(t *testing.T) {
	x, y := blobs(12, 30, 30, 30)
	params := DefaultForestParams()
	params.NEstimators = 20

	params.Jobs = 1
	serial := fitForest(t, params, x, y)
	params.Jobs = 8
	parallel := fitForest(t, params, x, y)

	for _, row := range x {
		a, _ := serial.PredictProba(row)
		b, _ := parallel.PredictProba(row)
		for c := range a {
			if a[c] != b[c] {
				t.Fatalf("forests differ on %v: %v vs %v", row, a, b)
			}
		}
	}
}

func TestRandomForestSaveLoadRoundTrip(t *testing.T) {
	x, y := blobs(13, 25, 25, 25)
	params := DefaultForestParams()
	params.NEstimators = 10
	params.MaxDepth = 5
	rf := fitForest(t, params, x, y)

	path := filepath.Join(t.TempDir(), "models", "model.json")
	if err := rf.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(ModelTypeRandomForest, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, row := range x {
		wantLabel, wantConf, _ := rf.Predict(row)
		gotLabel, gotConf, err := loaded.Predict(row)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if gotLabel != wantLabel || gotConf != wantConf {
			t.Fatalf("round trip changed prediction: %d/%v vs %d/%v", gotLabel, gotConf, wantLabel, wantConf)
		}
	}
}

func TestRandomForestConcurrentPredict(t *testing.T) {
	x, y := blobs(14, 20, 20, 20)
	params := DefaultForestParams()
	params.NEstimators = 10
	rf := fitForest(t, params, x, y)

	want := make([]int, len(x))
	for i, row := range x {
		want[i], _, _ = rf.Predict(row)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, row := range x {
				got, _, err := rf.Predict(row)
				if err != nil || got != want[i] {
					errs <- "concurrent prediction diverged"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestRandomForestRejectsBadParams(t *testing.T) {
	x, y := blobs(15, 5, 5)
	rf := NewRandomForest(ForestParams{NEstimators: 0})
	if err := rf.Fit(context.Background(), x, y); err == nil {
		t.Fatal("expected error for zero estimators")
	}
	if _, err := LoadModel("svm", "unused"); err == nil {
		t.Fatal("expected unsupported model type error")
	}
}
