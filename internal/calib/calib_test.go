package calib

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestSigmoid_InvertRoundtrip(t *testing.T) {
	c := &Calibrator{Method: Sigmoid, Sigmoid: &SigmoidParams{A: -2.0, B: 1.0}}
	for _, raw := range []float64{0.05, 0.3, 0.5, 0.7, 0.95} {
		calibrated := c.Transform(raw)
		back, err := c.Invert(calibrated)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(back-raw) > 1e-9 {
			t.Errorf("invert(forward(%v)) = %v", raw, back)
		}
	}
}

func TestSigmoid_KnownValues(t *testing.T) {
	// a = -2, b = 1, raw = 0.3: calibrated = 1/(1+exp(-2*0.3+1))
	c := &Calibrator{Method: Sigmoid, Sigmoid: &SigmoidParams{A: -2.0, B: 1.0}}
	calibrated := c.Transform(0.3)
	want := 1 / (1 + math.Exp(0.4))
	if math.Abs(calibrated-want) > 1e-12 {
		t.Fatalf("forward map: want %v, got %v", want, calibrated)
	}
	raw, err := c.Invert(calibrated)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(raw-0.3) > 1e-9 {
		t.Errorf("inverse map: want 0.3, got %v", raw)
	}
}

func TestFit_DegenerateSplits(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
		y    []int
	}{
		{"empty", nil, nil},
		{"single class positive", []float64{0.2, 0.8, 0.5}, []int{1, 1, 1}},
		{"single class negative", []float64{0.2, 0.8, 0.5}, []int{0, 0, 0}},
		{"length mismatch", []float64{0.2, 0.8}, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range []Method{Sigmoid, Isotonic} {
				_, err := Fit(method, tt.raw, tt.y)
				var ce *ConfigurationError
				if !errors.As(err, &ce) {
					t.Errorf("%s: want ConfigurationError, got %v", method, err)
				}
			}
		})
	}
}

func TestFit_UnknownMethod(t *testing.T) {
	_, err := Fit(Method("spline"), []float64{0.1, 0.9}, []int{0, 1})
	if err == nil {
		t.Error("unknown method should fail")
	}
}

// correlated fabricates raw probabilities where high values go with label 1.
func correlated(n int, rng *rand.Rand) (raw []float64, y []int) {
	raw = make([]float64, n)
	y = make([]int, n)
	for i := range raw {
		if i%2 == 0 {
			raw[i] = 0.5 + 0.5*rng.Float64()*0.9
			y[i] = 1
		} else {
			raw[i] = 0.5 * rng.Float64() * 0.9
		}
	}
	return raw, y
}

func TestFitPlatt_SignConvention(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	raw, y := correlated(200, rng)
	c, err := Fit(Sigmoid, raw, y)
	if err != nil {
		t.Fatal(err)
	}
	// positively correlated classifier => negative slope in the Platt
	// parameterisation, and the transform must preserve ordering
	if c.Sigmoid.A >= 0 {
		t.Errorf("expected negative A, got %v", c.Sigmoid.A)
	}
	if lo, hi := c.Transform(0.1), c.Transform(0.9); lo >= hi {
		t.Errorf("calibrated map must be increasing: f(0.1)=%v f(0.9)=%v", lo, hi)
	}
}

func TestFitIsotonic_Monotone(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	raw, y := correlated(300, rng)
	c, err := Fit(Isotonic, raw, y)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(c.Iso.Values); i++ {
		if c.Iso.Values[i] < c.Iso.Values[i-1] {
			t.Fatalf("fitted values not monotone at %d: %v < %v", i, c.Iso.Values[i], c.Iso.Values[i-1])
		}
		if c.Iso.Thresholds[i] < c.Iso.Thresholds[i-1] {
			t.Fatalf("thresholds not sorted at %d", i)
		}
	}
	// transform stays monotone between and beyond the fitted range
	prev := c.Transform(-0.1)
	for x := 0.0; x <= 1.1; x += 0.01 {
		cur := c.Transform(x)
		if cur < prev-1e-12 {
			t.Fatalf("transform decreased at %v", x)
		}
		prev = cur
	}
}

func TestIsotonic_InvertNearest(t *testing.T) {
	c := &Calibrator{Method: Isotonic, Iso: &IsotonicMap{
		Thresholds: []float64{0.1, 0.4, 0.8},
		Values:     []float64{0.0, 0.5, 1.0},
	}}
	raw, err := c.Invert(0.45)
	if err != nil {
		t.Fatal(err)
	}
	if raw != 0.4 {
		t.Errorf("nearest lookup: want 0.4, got %v", raw)
	}
}

func TestInvert_NotCalibrated(t *testing.T) {
	var c *Calibrator
	_, err := c.Invert(0.5)
	var nce *NotCalibratedError
	if !errors.As(err, &nce) {
		t.Errorf("want NotCalibratedError, got %v", err)
	}
	empty := &Calibrator{Method: Sigmoid}
	if _, err := empty.Invert(0.5); err == nil {
		t.Error("missing parameters should fail")
	}
}

func TestInvert_ExtremeInputsClamped(t *testing.T) {
	c := &Calibrator{Method: Sigmoid, Sigmoid: &SigmoidParams{A: -2.0, B: 1.0}}
	for _, p := range []float64{0, 1} {
		v, err := c.Invert(p)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("invert(%v) not finite: %v", p, v)
		}
	}
}

func TestReliabilityCurve(t *testing.T) {
	probs := []float64{0.05, 0.05, 0.95, 0.95, 0.55, 0.45}
	y := []int{0, 0, 1, 1, 1, 0}
	bins, err := ReliabilityCurve(probs, y, 10)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, b := range bins {
		total += b.Count
		if b.Count == 0 {
			t.Error("empty bins must be skipped")
		}
		if b.FractionPositive < 0 || b.FractionPositive > 1 {
			t.Errorf("fraction out of range: %v", b.FractionPositive)
		}
	}
	if total != len(probs) {
		t.Errorf("bins should cover every sample: %d vs %d", total, len(probs))
	}
	if _, err := ReliabilityCurve(nil, nil, 10); err == nil {
		t.Error("empty input should fail")
	}
}
