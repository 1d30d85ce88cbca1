package model

import (
	"errors"
	"math/rand"
)

// RandomBaseline is the null model: Fit is a no-op and PredictProba draws an
// independent uniform class-1 probability per sample from a caller-supplied
// RNG. Keeping the generator caller-owned makes runs reproducible and keeps
// process-global random state out of the pipeline.
type RandomBaseline struct {
	rng *rand.Rand
}

// NewRandomBaseline wraps the given generator. The caller seeds it.
func NewRandomBaseline(rng *rand.Rand) *RandomBaseline {
	return &RandomBaseline{rng: rng}
}

// Fit is a no-op; the baseline has nothing to learn.
func (m *RandomBaseline) Fit(X [][]float64, y []int) error { return nil }

// PredictProba returns [0, u] per sample for a fresh uniform draw u.
func (m *RandomBaseline) PredictProba(X [][]float64) ([][2]float64, error) {
	if m.rng == nil {
		return nil, errors.New("random baseline: nil RNG")
	}
	out := make([][2]float64, len(X))
	for i := range X {
		out[i] = [2]float64{0, m.rng.Float64()}
	}
	return out, nil
}
