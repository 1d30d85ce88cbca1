// Package scorer ties the pipeline together: it owns the fingerprint
// extractor, builds estimators from the configuration, trains and calibrates
// the production model, and exposes the operations consumed by the CLI —
// scoring single molecules, cross-validation, the threshold sweep and
// probability inversion.
package scorer

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"mpscore/internal/calib"
	"mpscore/internal/cfg"
	"mpscore/internal/chem"
	"mpscore/internal/dataset"
	"mpscore/internal/eval"
	"mpscore/internal/metrics"
	"mpscore/internal/model"
	"mpscore/internal/storage"

	"github.com/rs/zerolog/log"
)

// Persistence is the injected storage port. The scorer treats the stored
// artifacts as opaque blobs keyed by handle.
type Persistence interface {
	SaveModel(handle string, snap *storage.ModelSnapshot) error
	LoadModel(handle string) (*storage.ModelSnapshot, error)
}

// Scorer is the trained synthesizability scorer.
//
// Score convention: the returned value is the calibrated probability that
// the molecule belongs to the difficult-to-synthesize class (label 0), so
// higher scores mean harder to make. The calibration and inversion logic
// below operate on class-1 probabilities internally and convert at the edge.
type Scorer struct {
	settings  cfg.Settings
	extractor *chem.Extractor
	tracker   metrics.Tracker

	forest     *model.Forest
	calibrated *calib.CalibratedEstimator
}

// New builds an untrained scorer from validated settings. tracker may be nil.
func New(settings cfg.Settings, tracker metrics.Tracker) (*Scorer, error) {
	ex, err := chem.NewExtractor(settings.FPRadius, settings.FPBitLength)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = metrics.Nop{}
	}
	return &Scorer{settings: settings, extractor: ex, tracker: tracker}, nil
}

// Extractor exposes the fingerprint extractor for dataset loading.
func (s *Scorer) Extractor() *chem.Extractor { return s.extractor }

// ForestFactory builds fresh ensemble estimators from the configuration.
// Recognized options come from Settings; unrecognized extra options are
// passed through to the forest unmodified.
func (s *Scorer) ForestFactory() model.Factory {
	settings := s.settings
	return func() model.Estimator {
		f := model.NewForest(
			model.WithNumTrees(settings.NumTrees),
			model.WithCriterion(settings.Criterion),
			model.WithBalanced(settings.ClassBalance == "balanced"),
			model.WithSeed(settings.Seed),
			model.WithParallelism(settings.Processes),
		)
		applyExtra(f, settings.Extra)
		return f
	}
}

// BaselineFactory builds one of the reference estimators: "logistic" or
// "random". The random baseline owns a generator seeded from the
// configuration, never process-global state.
func (s *Scorer) BaselineFactory(kind string) (model.Factory, error) {
	switch kind {
	case "logistic":
		return func() model.Estimator { return model.NewLogistic() }, nil
	case "random":
		seed := s.settings.Seed
		return func() model.Estimator {
			return model.NewRandomBaseline(rand.New(rand.NewSource(seed)))
		}, nil
	default:
		return nil, fmt.Errorf("unknown baseline estimator %q", kind)
	}
}

// applyExtra maps pass-through options onto the forest. Unknown keys are
// kept as-is and simply have no effect here, preserving them for inspection.
func applyExtra(f *model.Forest, extra map[string]string) {
	for k, v := range extra {
		switch k {
		case "max_depth":
			if n, err := strconv.Atoi(v); err == nil {
				f.MaxDepth = n
			}
		case "max_features":
			if n, err := strconv.Atoi(v); err == nil {
				f.MaxFeatures = n
			}
		case "min_samples_split":
			if n, err := strconv.Atoi(v); err == nil {
				f.MinSamplesSplit = n
			}
		}
	}
}

// Train fits the production model on the entire dataset. When calibration is
// configured, a calibration split is carved out first, the forest is fitted
// on the remainder and the calibration layer on the held-out part; training
// never sees the calibration samples.
func (s *Scorer) Train(ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return &eval.ConfigurationError{Reason: "empty dataset"}
	}
	pos := 0
	for _, y := range ds.Y {
		pos += y
	}
	log.Info().
		Int("easy", pos).
		Int("difficult", ds.Len()-pos).
		Int("bits", s.extractor.BitLength()).
		Msg("training on full dataset")

	forest := s.ForestFactory()().(*model.Forest)
	start := time.Now()

	if s.settings.Calibration == "none" {
		if err := forest.Fit(ds.X, ds.Y); err != nil {
			return err
		}
		s.forest = forest
		s.calibrated = nil
		s.tracker.FitObserve(time.Since(start))
		return nil
	}

	rng := rand.New(rand.NewSource(s.settings.Seed))
	trainIdx, calibIdx, err := eval.TrainTestSplit(ds.Len(), s.settings.CalibRatio, rng)
	if err != nil {
		return err
	}
	XTrain, yTrain := ds.Subset(trainIdx)
	XCal, yCal := ds.Subset(calibIdx)
	if err := forest.Fit(XTrain, yTrain); err != nil {
		return err
	}
	s.tracker.FitObserve(time.Since(start))

	ce, err := calib.FitEstimator(forest, calib.Method(s.settings.Calibration), XCal, yCal)
	if err != nil {
		return err
	}
	s.tracker.CalibrationsInc()
	s.forest = forest
	s.calibrated = ce
	log.Info().
		Str("method", s.settings.Calibration).
		Int("calibration_samples", len(calibIdx)).
		Dur("elapsed", time.Since(start)).
		Msg("trained calibrated model")
	return nil
}

// Score returns the calibrated probability that the molecule is difficult
// to synthesize. Falls back to the raw forest probability when the model was
// trained without calibration.
func (s *Scorer) Score(smiles string) (float64, error) {
	if s.forest == nil {
		return 0, fmt.Errorf("model not trained")
	}
	fp, err := s.extractor.ExtractSMILES(smiles)
	if err != nil {
		s.tracker.FingerprintErrorsInc()
		return 0, err
	}
	s.tracker.FingerprintsInc()

	var est model.Estimator = s.forest
	if s.calibrated != nil {
		est = s.calibrated
	}
	probs, err := est.PredictProba([][]float64{fp})
	if err != nil {
		return 0, err
	}
	s.tracker.PredictionsInc()
	score := probs[0][model.LabelDifficult]
	s.tracker.ScoreObserve(score)
	return score, nil
}

// CrossValidate evaluates the configured forest with k-fold
// cross-validation on the dataset.
func (s *Scorer) CrossValidate(ds *dataset.Dataset) (*eval.CVReport, error) {
	engine := &eval.Engine{Tracker: s.tracker}
	return engine.CrossValidate(ds, s.ForestFactory(), s.settings.Folds, s.settings.Seed)
}

// ThresholdSweep produces the precision/recall threshold table for the
// configured forest.
func (s *Scorer) ThresholdSweep(ds *dataset.Dataset) (*eval.SweepResult, error) {
	engine := &eval.Engine{Tracker: s.tracker}
	return engine.ThresholdSweep(ds, s.ForestFactory(), s.settings.Folds, s.settings.ThresholdSteps, s.settings.Seed)
}

// InvertProbability maps a calibrated probability back to the raw forest
// probability. Only valid on a calibrated model.
func (s *Scorer) InvertProbability(calibrated float64) (float64, error) {
	if s.calibrated == nil {
		return 0, &calib.NotCalibratedError{}
	}
	return s.calibrated.InvertProbability(calibrated)
}

// FeatureImportances exposes the fitted forest's importance summary.
func (s *Scorer) FeatureImportances() (mean, std []float64, err error) {
	if s.forest == nil {
		return nil, nil, fmt.Errorf("model not trained")
	}
	return s.forest.FeatureImportances()
}

// Save persists the trained model through the injected port.
func (s *Scorer) Save(p Persistence, handle string) error {
	if s.forest == nil {
		return fmt.Errorf("model not trained")
	}
	snap := &storage.ModelSnapshot{
		FPRadius:    s.extractor.Radius(),
		FPBitLength: s.extractor.BitLength(),
		Forest:      s.forest,
	}
	if s.calibrated != nil {
		snap.Calibration = s.calibrated.Cal
	}
	if err := p.SaveModel(handle, snap); err != nil {
		return err
	}
	log.Info().Str("handle", handle).Msg("model saved")
	return nil
}

// Restore loads a persisted model. The snapshot's fingerprint parameters
// take precedence over the configured ones so scores stay consistent with
// the model's training-time features.
func Restore(settings cfg.Settings, tracker metrics.Tracker, p Persistence, handle string) (*Scorer, error) {
	snap, err := p.LoadModel(handle)
	if err != nil {
		return nil, err
	}
	settings.FPRadius = snap.FPRadius
	settings.FPBitLength = snap.FPBitLength
	s, err := New(settings, tracker)
	if err != nil {
		return nil, err
	}
	s.forest = snap.Forest
	if snap.Calibration != nil {
		s.calibrated = &calib.CalibratedEstimator{Base: snap.Forest, Cal: snap.Calibration}
	}
	log.Info().Str("handle", handle).Time("saved_at", snap.SavedAt).Msg("model restored")
	return s, nil
}
