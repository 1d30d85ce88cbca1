package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// separable builds n samples of width dim where class 1 has value 5 at
// feature bit and class 0 is all zeros.
func separable(n, dim, bit int) (X [][]float64, y []int) {
	X = make([][]float64, n)
	y = make([]int, n)
	for i := range X {
		row := make([]float64, dim)
		if i%2 == 0 {
			row[bit] = 5
			y[i] = 1
		}
		X[i] = row
	}
	return X, y
}

func TestForest_PerfectSeparation(t *testing.T) {
	X, y := separable(100, 16, 3)
	f := NewForest(WithNumTrees(25), WithMaxFeatures(16), WithSeed(7))
	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	probs, err := f.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range probs {
		if s := p[0] + p[1]; s < 0.999 || s > 1.001 {
			t.Fatalf("row %d: probabilities do not sum to 1: %v", i, p)
		}
		want := y[i]
		got := 0
		if p[1] >= 0.5 {
			got = 1
		}
		if got != want {
			t.Errorf("row %d: want class %d, got probs %v", i, want, p)
		}
	}
}

func TestForest_ReproducibleWithSeed(t *testing.T) {
	X, y := separable(60, 8, 2)
	run := func() [][2]float64 {
		f := NewForest(WithNumTrees(10), WithSeed(32), WithParallelism(4))
		if err := f.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		probs, err := f.PredictProba(X)
		if err != nil {
			t.Fatal(err)
		}
		return probs
	}
	a := run()
	b := run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs across identically seeded runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestForest_DimensionMismatch(t *testing.T) {
	X, y := separable(20, 8, 1)
	f := NewForest(WithNumTrees(5))

	// inconsistent rows within one call
	bad := [][]float64{make([]float64, 8), make([]float64, 9)}
	if err := f.Fit(bad, []int{0, 1}); err == nil {
		t.Fatal("expected dimension error for ragged X")
	}

	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	// width drift between fit and predict
	_, err := f.PredictProba([][]float64{make([]float64, 9)})
	var de *DimensionError
	if !errors.As(err, &de) {
		t.Fatalf("want DimensionError, got %v", err)
	}
	if de.Want != 8 || de.Got != 9 {
		t.Errorf("error context wrong: %+v", de)
	}
}

func TestForest_NotFitted(t *testing.T) {
	f := NewForest()
	if _, err := f.PredictProba([][]float64{{1}}); err == nil {
		t.Error("predict before fit should fail")
	}
}

func TestForest_BalancedWeighting(t *testing.T) {
	// 90/10 imbalance; the minority class still gets its own leaf mass
	X := make([][]float64, 100)
	y := make([]int, 100)
	for i := range X {
		row := make([]float64, 4)
		if i < 10 {
			row[0] = 3
			y[i] = 1
		}
		X[i] = row
	}
	f := NewForest(WithNumTrees(15), WithMaxFeatures(4), WithBalanced(true), WithSeed(1))
	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	probs, err := f.PredictProba([][]float64{{3, 0, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if probs[0][1] < 0.9 {
		t.Errorf("minority class should be confidently recovered, got %v", probs[0])
	}
}

func TestForest_JSONRoundtrip(t *testing.T) {
	X, y := separable(40, 8, 5)
	f := NewForest(WithNumTrees(8), WithMaxFeatures(8), WithSeed(3))
	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	before, err := f.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	restored := &Forest{}
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	after, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("row %d: predictions changed across serialization: %v vs %v", i, before[i], after[i])
		}
	}
}

func TestForest_FeatureImportances(t *testing.T) {
	X, y := separable(50, 8, 6)
	f := NewForest(WithNumTrees(10), WithMaxFeatures(8), WithSeed(5))
	if _, _, err := f.FeatureImportances(); err == nil {
		t.Error("importances before fit should fail")
	}
	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	mean, std, err := f.FeatureImportances()
	if err != nil {
		t.Fatal(err)
	}
	if len(mean) != 8 || len(std) != 8 {
		t.Fatalf("importance lengths wrong: %d %d", len(mean), len(std))
	}
	best := 0
	for j := range mean {
		if mean[j] > mean[best] {
			best = j
		}
	}
	if best != 6 {
		t.Errorf("distinguishing feature should dominate importances, got feature %d", best)
	}
}
