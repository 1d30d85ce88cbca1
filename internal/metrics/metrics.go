// Package metrics provides Prometheus metrics for the scoring pipeline.
// Training and evaluation jobs can run for a long time on large datasets;
// the metrics endpoint makes their progress observable while they run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scoring pipeline.
type Metrics struct {
	// Fingerprinting
	FingerprintsTotal prometheus.Counter // molecules fingerprinted
	FingerprintErrors prometheus.Counter // unparseable structures

	// Model training and prediction
	FitsTotal        prometheus.Counter   // estimator fits performed
	FitDuration      prometheus.Histogram // seconds per fit
	PredictionsTotal prometheus.Counter   // batch predictions served
	PredictionScores prometheus.Histogram // distribution of emitted scores

	// Evaluation
	FoldsTotal   prometheus.Counter   // cross-validation folds completed
	FoldDuration prometheus.Histogram // seconds per fold

	// Calibration
	CalibrationsTotal prometheus.Counter // calibration layers fitted
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps tests
// isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		FingerprintsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_fingerprints_total",
			Help: "Total number of molecules fingerprinted",
		}),
		FingerprintErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_fingerprint_errors_total",
			Help: "Total number of structures that failed to parse",
		}),
		FitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_fits_total",
			Help: "Total number of estimator fits performed",
		}),
		FitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpscore_fit_duration_seconds",
			Help:    "Wall time of estimator fits",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_predictions_total",
			Help: "Total number of prediction batches served",
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpscore_prediction_scores",
			Help:    "Distribution of emitted synthesizability scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		FoldsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_cv_folds_total",
			Help: "Total number of cross-validation folds completed",
		}),
		FoldDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpscore_cv_fold_duration_seconds",
			Help:    "Wall time of cross-validation folds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		CalibrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpscore_calibrations_total",
			Help: "Total number of calibration layers fitted",
		}),
	}
}
