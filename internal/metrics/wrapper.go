package metrics

import "time"

// Tracker is the small interface other packages consume, so they do not
// depend on prometheus directly and tests can pass a mock.
type Tracker interface {
	FingerprintsInc()
	FingerprintErrorsInc()
	FitObserve(time.Duration)
	PredictionsInc()
	ScoreObserve(float64)
	FoldObserve(time.Duration)
	CalibrationsInc()
}

// Wrapper adapts Metrics to the Tracker interface.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) FingerprintsInc()      { w.m.FingerprintsTotal.Inc() }
func (w *Wrapper) FingerprintErrorsInc() { w.m.FingerprintErrors.Inc() }

func (w *Wrapper) FitObserve(d time.Duration) {
	w.m.FitsTotal.Inc()
	w.m.FitDuration.Observe(d.Seconds())
}

func (w *Wrapper) PredictionsInc()        { w.m.PredictionsTotal.Inc() }
func (w *Wrapper) ScoreObserve(s float64) { w.m.PredictionScores.Observe(s) }
func (w *Wrapper) FoldObserve(d time.Duration) {
	w.m.FoldsTotal.Inc()
	w.m.FoldDuration.Observe(d.Seconds())
}

func (w *Wrapper) CalibrationsInc() { w.m.CalibrationsTotal.Inc() }

// Nop is a Tracker that records nothing, for callers running without a
// metrics endpoint.
type Nop struct{}

func (Nop) FingerprintsInc()          {}
func (Nop) FingerprintErrorsInc()     {}
func (Nop) FitObserve(time.Duration)  {}
func (Nop) PredictionsInc()           {}
func (Nop) ScoreObserve(float64)      {}
func (Nop) FoldObserve(time.Duration) {}
func (Nop) CalibrationsInc()          {}
