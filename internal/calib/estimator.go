package calib

import (
	"mpscore/internal/model"
)

// CalibratedEstimator wraps a fitted Estimator with a calibration layer.
// It satisfies model.Estimator itself so the evaluation engine can consume
// calibrated and uncalibrated models interchangeably.
type CalibratedEstimator struct {
	Base model.Estimator
	Cal  *Calibrator
}

// FitEstimator fits a calibration layer of the given method on top of an
// already fitted base estimator, using a calibration split that must be
// disjoint from the data the base was trained on.
func FitEstimator(base model.Estimator, method Method, Xcal [][]float64, yCal []int) (*CalibratedEstimator, error) {
	if len(Xcal) == 0 {
		return nil, &ConfigurationError{Reason: "empty calibration split"}
	}
	probs, err := base.PredictProba(Xcal)
	if err != nil {
		return nil, err
	}
	raw := make([]float64, len(probs))
	for i, p := range probs {
		raw[i] = p[1]
	}
	cal, err := Fit(method, raw, yCal)
	if err != nil {
		return nil, err
	}
	return &CalibratedEstimator{Base: base, Cal: cal}, nil
}

// Fit refits the base estimator. The calibration layer is left untouched;
// refitting the calibration requires a fresh disjoint split via FitEstimator.
func (ce *CalibratedEstimator) Fit(X [][]float64, y []int) error {
	return ce.Base.Fit(X, y)
}

// PredictProba returns calibrated probability pairs.
func (ce *CalibratedEstimator) PredictProba(X [][]float64) ([][2]float64, error) {
	probs, err := ce.Base.PredictProba(X)
	if err != nil {
		return nil, err
	}
	for i := range probs {
		p1 := ce.Cal.Transform(probs[i][1])
		probs[i] = [2]float64{1 - p1, p1}
	}
	return probs, nil
}

// InvertProbability maps a calibrated probability back to the raw base
// probability. Fails with NotCalibratedError when no calibration is fitted.
func (ce *CalibratedEstimator) InvertProbability(calibrated float64) (float64, error) {
	if ce == nil || ce.Cal == nil {
		return 0, &NotCalibratedError{}
	}
	return ce.Cal.Invert(calibrated)
}
