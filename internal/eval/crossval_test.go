package eval

import (
	"errors"
	"testing"

	"mpscore/internal/dataset"
	"mpscore/internal/model"
)

// oneBitDataset builds n samples where class 1 carries value 5 at feature 0.
func oneBitDataset(n int) *dataset.Dataset {
	ds := &dataset.Dataset{
		X: make([][]float64, n),
		Y: make([]int, n),
	}
	for i := range ds.X {
		row := make([]float64, 4)
		if i%2 == 0 {
			row[0] = 5
			ds.Y[i] = 1
		}
		ds.X[i] = row
	}
	return ds
}

func logisticFactory() model.Estimator { return model.NewLogistic() }

func TestCrossValidate_PerfectSeparation(t *testing.T) {
	ds := oneBitDataset(100)
	report, err := CrossValidate(ds, logisticFactory, 5, 32)
	if err != nil {
		t.Fatal(err)
	}
	if report.Folds != 5 {
		t.Fatalf("fold count: %d", report.Folds)
	}
	for _, name := range MetricNames() {
		values, ok := report.PerFold[name]
		if !ok {
			t.Fatalf("metric %q missing from per-fold table", name)
		}
		if len(values) != 5 {
			t.Fatalf("metric %q has %d fold values", name, len(values))
		}
		agg := report.Summary[name]
		if agg.Mean < 0.999 || agg.Mean > 1.001 {
			t.Errorf("%s: separable data should score 1.0, got mean %v", name, agg.Mean)
		}
		if agg.Std > 1e-9 {
			t.Errorf("%s: expected zero spread, got std %v", name, agg.Std)
		}
	}
	// pooled held-out counts with the easy class positive
	if report.Totals.TP != 50 || report.Totals.TN != 50 || report.Totals.FP != 0 || report.Totals.FN != 0 {
		t.Errorf("pooled confusion wrong: %+v", report.Totals)
	}
	if report.Totals.Total() != ds.Len() {
		t.Errorf("pooled counts do not cover the dataset: %d vs %d", report.Totals.Total(), ds.Len())
	}
}

func TestCrossValidate_FreshEstimatorPerFold(t *testing.T) {
	ds := oneBitDataset(50)
	built := 0
	factory := func() model.Estimator {
		built++
		return model.NewLogistic()
	}
	if _, err := CrossValidate(ds, factory, 5, 32); err != nil {
		t.Fatal(err)
	}
	if built != 5 {
		t.Errorf("expected one estimator per fold, factory called %d times", built)
	}
}

func TestCrossValidate_Reproducible(t *testing.T) {
	ds := oneBitDataset(60)
	a, err := CrossValidate(ds, logisticFactory, 5, 32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CrossValidate(ds, logisticFactory, 5, 32)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range MetricNames() {
		for f := range a.PerFold[name] {
			if a.PerFold[name][f] != b.PerFold[name][f] {
				t.Fatalf("%s fold %d differs across identically seeded runs", name, f)
			}
		}
	}
}

func TestCrossValidate_Errors(t *testing.T) {
	var ce *ConfigurationError
	if _, err := CrossValidate(nil, logisticFactory, 5, 32); !errors.As(err, &ce) {
		t.Errorf("nil dataset: want ConfigurationError, got %v", err)
	}
	empty := &dataset.Dataset{}
	if _, err := CrossValidate(empty, logisticFactory, 5, 32); !errors.As(err, &ce) {
		t.Errorf("empty dataset: want ConfigurationError, got %v", err)
	}
	small := oneBitDataset(3)
	if _, err := CrossValidate(small, logisticFactory, 5, 32); !errors.As(err, &ce) {
		t.Errorf("k > n: want ConfigurationError, got %v", err)
	}
}
