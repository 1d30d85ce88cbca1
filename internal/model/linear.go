package model

import (
	"errors"
	"math"
)

// Logistic is a plain logistic-regression baseline over the same count
// fingerprints as the forest. It exists as a reference point for the
// evaluation curves, not as the production scorer.
type Logistic struct {
	LearningRate float64
	Epochs       int
	L2           float64

	w []float64
	b float64
}

// NewLogistic returns a baseline with defaults that converge on the sparse
// fingerprint vectors used here.
func NewLogistic() *Logistic {
	return &Logistic{LearningRate: 0.01, Epochs: 200, L2: 1e-4}
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// Fit trains with full-batch gradient descent. Weights start at zero so the
// fit is deterministic without any RNG involvement.
func (m *Logistic) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("logistic: empty training set")
	}
	if len(y) != len(X) {
		return errors.New("logistic: X and y length mismatch")
	}
	p, err := checkDims(X, len(m.w))
	if err != nil {
		return err
	}
	if m.w == nil {
		m.w = make([]float64, p)
	}
	n := float64(len(X))
	grad := make([]float64, p)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, row := range X {
			z := m.b
			for j, v := range row {
				z += m.w[j] * v
			}
			d := sigmoid(z) - float64(y[i])
			for j, v := range row {
				grad[j] += d * v
			}
			gb += d
		}
		for j := range m.w {
			m.w[j] -= m.LearningRate * (grad[j]/n + m.L2*m.w[j])
		}
		m.b -= m.LearningRate * gb / n
	}
	return nil
}

// PredictProba returns [p0, p1] per row from the fitted weights.
func (m *Logistic) PredictProba(X [][]float64) ([][2]float64, error) {
	if m.w == nil {
		return nil, errors.New("logistic: not fitted")
	}
	if _, err := checkDims(X, len(m.w)); err != nil {
		return nil, err
	}
	out := make([][2]float64, len(X))
	for i, row := range X {
		z := m.b
		for j, v := range row {
			z += m.w[j] * v
		}
		p1 := sigmoid(z)
		out[i] = [2]float64{1 - p1, p1}
	}
	return out, nil
}
