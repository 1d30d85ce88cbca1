// Package calib implements post-hoc probability calibration for the binary
// classifiers: Platt sigmoid scaling and isotonic regression, both fitted on
// a split disjoint from the training data, plus the inverse mapping from a
// calibrated probability back to the underlying raw classifier probability.
package calib

import (
	"fmt"
	"math"
	"sort"
)

// Method selects the calibration algorithm.
type Method string

const (
	Sigmoid  Method = "sigmoid"
	Isotonic Method = "isotonic"
)

// ConfigurationError reports a degenerate calibration setup, e.g. an empty
// or single-class calibration split.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("calibration configuration error: %s", e.Reason)
}

// NotCalibratedError is returned when inversion is requested from a model
// that has no fitted calibration parameters.
type NotCalibratedError struct{}

func (e *NotCalibratedError) Error() string {
	return "model has no fitted calibration parameters"
}

// SigmoidParams are the fitted Platt parameters. The forward map is
//
//	calibrated = 1 / (1 + exp(A*raw + B))
//
// which is Platt's original parameterisation; A is negative for any
// classifier positively correlated with the label.
type SigmoidParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// IsotonicMap is a fitted monotone step mapping from raw to calibrated
// probability. Thresholds are strictly increasing; Values are
// non-decreasing.
type IsotonicMap struct {
	Thresholds []float64 `json:"thresholds"`
	Values     []float64 `json:"values"`
}

// Calibrator holds the fitted parameters of one calibration layer.
type Calibrator struct {
	Method  Method         `json:"method"`
	Sigmoid *SigmoidParams `json:"sigmoid,omitempty"`
	Iso     *IsotonicMap   `json:"isotonic,omitempty"`
}

// Fit fits a calibration mapping of the given method against raw class-1
// probabilities and true labels from a held-out split. The split must be
// non-empty and contain both classes, otherwise there is no variance to fit
// against.
func Fit(method Method, raw []float64, y []int) (*Calibrator, error) {
	if len(raw) == 0 {
		return nil, &ConfigurationError{Reason: "empty calibration split"}
	}
	if len(raw) != len(y) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("probability/label length mismatch: %d vs %d", len(raw), len(y))}
	}
	pos, neg := 0, 0
	for _, label := range y {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, &ConfigurationError{Reason: "calibration split contains a single class"}
	}
	switch method {
	case Sigmoid:
		a, b := fitPlatt(raw, y, pos, neg)
		return &Calibrator{Method: Sigmoid, Sigmoid: &SigmoidParams{A: a, B: b}}, nil
	case Isotonic:
		return &Calibrator{Method: Isotonic, Iso: fitIsotonic(raw, y)}, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown calibration method %q", method)}
	}
}

// Transform maps a raw class-1 probability to its calibrated value.
func (c *Calibrator) Transform(raw float64) float64 {
	switch c.Method {
	case Sigmoid:
		return 1 / (1 + math.Exp(c.Sigmoid.A*raw+c.Sigmoid.B))
	case Isotonic:
		return c.Iso.interpolate(raw)
	}
	return raw
}

// Invert maps a calibrated probability back to the raw classifier
// probability. For sigmoid calibration this is the closed form
//
//	raw = (ln((1-c)/c) - B) / A
//
// For isotonic calibration there is no closed form; the nearest stored
// mapping value is looked up instead.
func (c *Calibrator) Invert(calibrated float64) (float64, error) {
	if c == nil {
		return 0, &NotCalibratedError{}
	}
	switch c.Method {
	case Sigmoid:
		if c.Sigmoid == nil || c.Sigmoid.A == 0 {
			return 0, &NotCalibratedError{}
		}
		p := clampProb(calibrated)
		return (math.Log((1-p)/p) - c.Sigmoid.B) / c.Sigmoid.A, nil
	case Isotonic:
		if c.Iso == nil || len(c.Iso.Values) == 0 {
			return 0, &NotCalibratedError{}
		}
		return c.Iso.nearestRaw(calibrated), nil
	}
	return 0, &NotCalibratedError{}
}

func clampProb(p float64) float64 {
	const eps = 1e-12
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// fitPlatt runs Newton's method with backtracking on the regularized
// maximum-likelihood problem from Platt 1999, using the numerically stable
// formulation of Lin, Weng and Keerthi 2007. Targets are smoothed with the
// usual (N+1)/(N+2) correction.
func fitPlatt(f []float64, y []int, pos, neg int) (a, b float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		ridge   = 1e-12
	)
	hiTarget := (float64(pos) + 1) / (float64(pos) + 2)
	loTarget := 1 / (float64(neg) + 2)
	t := make([]float64, len(y))
	for i, label := range y {
		if label == 1 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a = 0
	b = math.Log((float64(neg) + 1) / (float64(pos) + 1))

	objective := func(a, b float64) float64 {
		v := 0.0
		for i, fi := range f {
			fApB := a*fi + b
			if fApB >= 0 {
				v += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				v += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return v
	}
	fval := objective(a, b)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22 := ridge, ridge
		h21, g1, g2 := 0.0, 0.0, 0.0
		for i, fi := range f {
			fApB := a*fi + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += fi * fi * d2
			h22 += d2
			h21 += fi * d2
			d1 := t[i] - p
			g1 += fi * d1
			g2 += d1
		}
		if math.Abs(g1) < 1e-5 && math.Abs(g2) < 1e-5 {
			break
		}
		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB
		step := 1.0
		for step >= minStep {
			newA := a + step*dA
			newB := b + step*dB
			newF := objective(newA, newB)
			if newF < fval+1e-4*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return a, b
}

// fitIsotonic runs the pool-adjacent-violators algorithm over the samples
// sorted by raw probability, producing a non-decreasing step function.
func fitIsotonic(raw []float64, y []int) *IsotonicMap {
	type point struct {
		x float64
		y float64
	}
	pts := make([]point, len(raw))
	for i := range raw {
		pts[i] = point{raw[i], float64(y[i])}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	type block struct {
		sum    float64
		weight float64
		minX   float64
		maxX   float64
	}
	blocks := make([]block, 0, len(pts))
	for _, p := range pts {
		blocks = append(blocks, block{sum: p.y, weight: 1, minX: p.x, maxX: p.x})
		for len(blocks) > 1 {
			last := len(blocks) - 1
			if blocks[last-1].sum/blocks[last-1].weight <= blocks[last].sum/blocks[last].weight {
				break
			}
			blocks[last-1].sum += blocks[last].sum
			blocks[last-1].weight += blocks[last].weight
			blocks[last-1].maxX = blocks[last].maxX
			blocks = blocks[:last]
		}
	}

	m := &IsotonicMap{
		Thresholds: make([]float64, len(blocks)),
		Values:     make([]float64, len(blocks)),
	}
	for i, bl := range blocks {
		m.Thresholds[i] = (bl.minX + bl.maxX) / 2
		m.Values[i] = bl.sum / bl.weight
	}
	return m
}

// interpolate evaluates the monotone map with linear interpolation between
// block centers and clamping outside the fitted range.
func (m *IsotonicMap) interpolate(x float64) float64 {
	n := len(m.Thresholds)
	if n == 0 {
		return x
	}
	if x <= m.Thresholds[0] {
		return m.Values[0]
	}
	if x >= m.Thresholds[n-1] {
		return m.Values[n-1]
	}
	i := sort.SearchFloat64s(m.Thresholds, x)
	x0, x1 := m.Thresholds[i-1], m.Thresholds[i]
	y0, y1 := m.Values[i-1], m.Values[i]
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// nearestRaw returns the threshold of the stored mapping whose calibrated
// value is closest to the query.
func (m *IsotonicMap) nearestRaw(calibrated float64) float64 {
	best := 0
	bestDist := math.Abs(m.Values[0] - calibrated)
	for i := 1; i < len(m.Values); i++ {
		d := math.Abs(m.Values[i] - calibrated)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return m.Thresholds[best]
}
