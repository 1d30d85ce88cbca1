package eval

import (
	"math"
	"math/rand"
	"time"

	"mpscore/internal/dataset"
	"mpscore/internal/model"

	"github.com/rs/zerolog/log"
)

// DefaultThresholdSteps is the grid resolution of the sweep.
const DefaultThresholdSteps = 100

// ThresholdMetrics is the aggregated result at one decision threshold:
// confusion counts pooled over the held-out folds, the derived precision and
// recall, and their relative-error bands propagated from the cross-fold
// spread of the counts. Defined is false when the corresponding denominator
// pooled to zero; such points carry no value and must be skipped downstream.
type ThresholdMetrics struct {
	Threshold float64
	Counts    Confusion

	Precision        float64
	PrecisionDefined bool
	PrecisionErr     float64

	Recall        float64
	RecallDefined bool
	RecallErr     float64
}

// SweepResult is the full threshold table plus the fold count it was pooled
// over.
type SweepResult struct {
	Folds  int
	Points []ThresholdMetrics
}

// ThresholdSweep runs the sweep with the default engine.
func ThresholdSweep(ds *dataset.Dataset, factory model.Factory, k, steps int, seed int64) (*SweepResult, error) {
	return (&Engine{}).ThresholdSweep(ds, factory, k, steps, seed)
}

// ThresholdSweep evaluates the estimator across an inclusive [0,1] grid of
// steps thresholds under k-fold cross-validation. A sample is classified
// positive iff its predicted class-1 probability strictly exceeds the
// threshold. Counts are kept per threshold per fold so the cross-fold
// variance survives into the error bands.
func (e *Engine) ThresholdSweep(ds *dataset.Dataset, factory model.Factory, k, steps int, seed int64) (*SweepResult, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, &ConfigurationError{Reason: "empty dataset"}
	}
	if steps < 2 {
		steps = DefaultThresholdSteps
	}
	rng := rand.New(rand.NewSource(seed))
	folds, err := KFold(ds.Len(), k, rng)
	if err != nil {
		return nil, err
	}

	thresholds := make([]float64, steps)
	for i := range thresholds {
		thresholds[i] = float64(i) / float64(steps-1)
	}

	// perFold[t][f] keeps fold f's counts at threshold t, separate until all
	// folds are done so the coefficient of variation can be computed.
	perFold := make([][]Confusion, steps)
	for t := range perFold {
		perFold[t] = make([]Confusion, len(folds))
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
		for t, thr := range thresholds {
			var c Confusion
			for i, p := range probs {
				pred := 0
				if p[1] > thr {
					pred = 1
				}
				switch {
				case yTest[i] == 1 && pred == 1:
					c.TP++
				case yTest[i] == 1 && pred == 0:
					c.FN++
				case yTest[i] == 0 && pred == 1:
					c.FP++
				default:
					c.TN++
				}
			}
			perFold[t][fi] = c
		}
		e.tracker().FoldObserve(time.Since(start))
		log.Debug().Int("fold", fi).Int("test", len(fold.Test)).Dur("elapsed", time.Since(start)).Msg("sweep fold evaluated")
	}

	result := &SweepResult{Folds: len(folds), Points: make([]ThresholdMetrics, steps)}
	for t, thr := range thresholds {
		var pooled Confusion
		tps := make([]float64, len(folds))
		fps := make([]float64, len(folds))
		fns := make([]float64, len(folds))
		for f, c := range perFold[t] {
			pooled.Add(c)
			tps[f] = float64(c.TP)
			fps[f] = float64(c.FP)
			fns[f] = float64(c.FN)
		}
		pt := ThresholdMetrics{Threshold: thr, Counts: pooled}
		cvTP := coefVar(tps)
		if pooled.TP+pooled.FP > 0 {
			pt.PrecisionDefined = true
			pt.Precision = float64(pooled.TP) / float64(pooled.TP+pooled.FP)
			pt.PrecisionErr = zeroNaN((2*cvTP + coefVar(fps)) * pt.Precision)
		}
		if pooled.TP+pooled.FN > 0 {
			pt.RecallDefined = true
			pt.Recall = float64(pooled.TP) / float64(pooled.TP+pooled.FN)
			pt.RecallErr = zeroNaN((2*cvTP + coefVar(fns)) * pt.Recall)
		}
		result.Points[t] = pt
	}
	return result, nil
}

// coefVar is the coefficient of variation across folds. A zero-count fold
// set yields NaN which the caller coerces to zero.
func coefVar(values []float64) float64 {
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
	return math.Sqrt(variance) / mean
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
