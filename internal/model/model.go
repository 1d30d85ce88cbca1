// Package model implements the binary classifiers used by the
// synthesizability scorer: a bagged decision-tree ensemble, a logistic
// regression baseline and a random null model. All of them satisfy the
// Estimator interface consumed by the evaluation engine.
package model

import (
	"fmt"
)

// Class label convention used across the repository: 0 marks a
// difficult-to-synthesize molecule, 1 an easy one.
const (
	LabelDifficult = 0
	LabelEasy      = 1
)

// Estimator is the capability set the evaluator is generic over. PredictProba
// returns one [pClass0, pClass1] pair per input row, summing to 1 within
// floating tolerance.
type Estimator interface {
	Fit(X [][]float64, y []int) error
	PredictProba(X [][]float64) ([][2]float64, error)
}

// Factory builds a fresh, unfitted Estimator. Cross-validation uses it to
// guarantee no fitted state leaks between folds.
type Factory func() Estimator

// DimensionError reports a feature-vector length that disagrees with the
// dimension the model was configured or fitted with.
type DimensionError struct {
	Want, Got int
	Row       int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("feature dimension mismatch at row %d: want %d, got %d", e.Row, e.Want, e.Got)
}

// checkDims verifies all rows of X against the expected width. want <= 0
// adopts the first row's width.
func checkDims(X [][]float64, want int) (int, error) {
	for i, row := range X {
		if want <= 0 {
			want = len(row)
		}
		if len(row) != want {
			return 0, &DimensionError{Want: want, Got: len(row), Row: i}
		}
	}
	return want, nil
}
