package eval

import (
	"math"
	"math/rand"
	"time"

	"mpscore/internal/dataset"
	"mpscore/internal/metrics"
	"mpscore/internal/model"

	"github.com/rs/zerolog/log"
)

// Engine runs cross-validated evaluations. Tracker is optional
// instrumentation; the zero value records nothing.
type Engine struct {
	Tracker metrics.Tracker
}

func (e *Engine) tracker() metrics.Tracker {
	if e == nil || e.Tracker == nil {
		return metrics.Nop{}
	}
	return e.Tracker
}

// Metric names reported by CrossValidate. The difficult/easy suffixes refer
// to the class treated as positive when counting.
const (
	MetricAccuracy           = "accuracy"
	MetricPrecisionDifficult = "precision_difficult"
	MetricRecallDifficult    = "recall_difficult"
	MetricPrecisionEasy      = "precision_easy"
	MetricRecallEasy         = "recall_easy"
	MetricF1                 = "f1"
)

// fBetaValues are the extra F-beta operating points reported alongside F1,
// all with the easy class as positive.
var fBetaValues = []float64{0.4, 0.3, 0.2, 0.1}

// Aggregate is the across-fold summary of one metric.
type Aggregate struct {
	Mean float64
	Std  float64
}

// CVReport is the cross-validation output: the raw per-fold metric values,
// their mean/std summaries, and the confusion totals pooled over every
// fold's held-out predictions.
type CVReport struct {
	Folds   int
	PerFold map[string][]float64
	Summary map[string]Aggregate
	// Totals pools held-out predictions across all folds (label 1 positive),
	// not an average of per-fold rates.
	Totals Confusion
}

// MetricNames returns the reported metric keys in a fixed order.
func MetricNames() []string {
	names := []string{
		MetricAccuracy,
		MetricPrecisionDifficult,
		MetricRecallDifficult,
		MetricPrecisionEasy,
		MetricRecallEasy,
		MetricF1,
	}
	for _, b := range fBetaValues {
		names = append(names, fBetaName(b))
	}
	return names
}

func fBetaName(beta float64) string {
	switch beta {
	case 0.4:
		return "fbeta_0.4"
	case 0.3:
		return "fbeta_0.3"
	case 0.2:
		return "fbeta_0.2"
	default:
		return "fbeta_0.1"
	}
}

// CrossValidate runs seeded k-fold evaluation with the default engine.
func CrossValidate(ds *dataset.Dataset, factory model.Factory, k int, seed int64) (*CVReport, error) {
	return (&Engine{}).CrossValidate(ds, factory, k, seed)
}

// CrossValidate runs seeded k-fold evaluation. A fresh estimator is built
// per fold from the factory so no fitted state leaks between rounds.
// Predictions on the held-out fold use the default 0.5 decision probability.
func (e *Engine) CrossValidate(ds *dataset.Dataset, factory model.Factory, k int, seed int64) (*CVReport, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, &ConfigurationError{Reason: "empty dataset"}
	}
	rng := rand.New(rand.NewSource(seed))
	folds, err := KFold(ds.Len(), k, rng)
	if err != nil {
		return nil, err
	}

	report := &CVReport{
		Folds:   k,
		PerFold: make(map[string][]float64),
		Summary: make(map[string]Aggregate),
	}

	for fi, fold := range folds {
		start := time.Now()
		est := factory()
		XTrain, yTrain := ds.Subset(fold.Train)
		XTest, yTest := ds.Subset(fold.Test)
		if err := est.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
		probs, err := est.PredictProba(XTest)
		if err != nil {
			return nil, err
		}
		yPred := make([]int, len(probs))
		for i, p := range probs {
			if p[1] >= 0.5 {
				yPred[i] = 1
			}
		}

		easy := confusionCounts(yTest, yPred, model.LabelEasy)
		difficult := confusionCounts(yTest, yPred, model.LabelDifficult)
		report.Totals.Add(easy)

		foldMetrics := map[string]float64{
			MetricAccuracy:           accuracy(yTest, yPred),
			MetricPrecisionDifficult: precision(difficult),
			MetricRecallDifficult:    recall(difficult),
			MetricPrecisionEasy:      precision(easy),
			MetricRecallEasy:         recall(easy),
			MetricF1:                 fbeta(easy, 1),
		}
		for _, b := range fBetaValues {
			foldMetrics[fBetaName(b)] = fbeta(easy, b)
		}
		for name, v := range foldMetrics {
			report.PerFold[name] = append(report.PerFold[name], v)
		}
		e.tracker().FoldObserve(time.Since(start))
		log.Debug().
			Int("fold", fi).
			Int("train", len(fold.Train)).
			Int("test", len(fold.Test)).
			Dur("elapsed", time.Since(start)).
			Float64("accuracy", foldMetrics[MetricAccuracy]).
			Msg("fold evaluated")
	}

	for name, values := range report.PerFold {
		report.Summary[name] = aggregate(values)
	}
	return report, nil
}

// aggregate computes the mean and population standard deviation.
func aggregate(values []float64) Aggregate {
	if len(values) == 0 {
		return Aggregate{}
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return Aggregate{Mean: mean, Std: math.Sqrt(variance)}
}
