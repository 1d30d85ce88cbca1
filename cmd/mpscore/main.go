package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"mpscore/internal/cfg"
	"mpscore/internal/dataset"
	"mpscore/internal/eval"
	"mpscore/internal/metrics"
	"mpscore/internal/scorer"
	"mpscore/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const modelHandle = "mpscore"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	m := metrics.New()
	tracker := metrics.NewWrapper(m)
	stopMetrics := startMetricsServer(c)
	defer stopMetrics()

	switch command {
	case "train":
		err = runTrain(c, tracker, args)
	case "crossval":
		err = runCrossval(c, tracker, args)
	case "sweep":
		err = runSweep(c, tracker, args)
	case "score":
		err = runScore(c, tracker, args)
	case "invert":
		err = runInvert(c, tracker, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mpscore <command> [flags]

commands:
  train     fit and calibrate the model on a labeled dataset, then persist it
  crossval  k-fold cross-validation with the fixed metric set
  sweep     precision/recall threshold sweep with error bands
  score     score molecules given as SMILES arguments
  invert    map a calibrated probability back to the raw model probability`)
}

// startMetricsServer exposes the Prometheus endpoint while a job runs.
// Disabled when no port is configured.
func startMetricsServer(c cfg.Settings) func() {
	if c.MetricsPort <= 0 {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", c.MetricsPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Int("port", c.MetricsPort).Msg("metrics server started")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func loadData(c cfg.Settings, s *scorer.Scorer, path string) (*dataset.Dataset, error) {
	if path == "" {
		path = c.DataPath
	}
	if path == "" {
		return nil, fmt.Errorf("no dataset given: set -data or DATA_PATH")
	}
	start := time.Now()
	ds, err := dataset.Load(path, s.Extractor())
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("samples", ds.Len()).Dur("elapsed", time.Since(start)).Msg("dataset loaded")
	return ds, nil
}

func runTrain(c cfg.Settings, tracker metrics.Tracker, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dataPath := fs.String("data", "", "path to the labeled dataset (JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := scorer.New(c, tracker)
	if err != nil {
		return err
	}
	ds, err := loadData(c, s, *dataPath)
	if err != nil {
		return err
	}
	if err := s.Train(ds); err != nil {
		return err
	}
	store, err := storage.Open(c.ModelPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return s.Save(store, modelHandle)
}

func runCrossval(c cfg.Settings, tracker metrics.Tracker, args []string) error {
	fs := flag.NewFlagSet("crossval", flag.ExitOnError)
	dataPath := fs.String("data", "", "path to the labeled dataset (JSON)")
	baseline := fs.String("baseline", "", "evaluate a baseline instead: logistic or random")
	saveAs := fs.String("save", "", "store the report in the model database under this handle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := scorer.New(c, tracker)
	if err != nil {
		return err
	}
	ds, err := loadData(c, s, *dataPath)
	if err != nil {
		return err
	}
	factory := s.ForestFactory()
	if *baseline != "" {
		factory, err = s.BaselineFactory(*baseline)
		if err != nil {
			return err
		}
	}
	engine := &eval.Engine{Tracker: tracker}
	report, err := engine.CrossValidate(ds, factory, c.Folds, c.Seed)
	if err != nil {
		return err
	}
	for _, name := range eval.MetricNames() {
		agg := report.Summary[name]
		fmt.Printf("%-22s mean=%.4f std=%.4f\n", name, agg.Mean, agg.Std)
	}
	fmt.Printf("totals: TP=%d FP=%d TN=%d FN=%d predictions=%d\n",
		report.Totals.TP, report.Totals.FP, report.Totals.TN, report.Totals.FN, report.Totals.Total())
	if *saveAs != "" {
		store, err := storage.Open(c.ModelPath)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.SaveReport(*saveAs, report)
	}
	return nil
}

func runSweep(c cfg.Settings, tracker metrics.Tracker, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	dataPath := fs.String("data", "", "path to the labeled dataset (JSON)")
	baseline := fs.String("baseline", "", "evaluate a baseline instead: logistic or random")
	saveAs := fs.String("save", "", "store the table in the model database under this handle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := scorer.New(c, tracker)
	if err != nil {
		return err
	}
	ds, err := loadData(c, s, *dataPath)
	if err != nil {
		return err
	}
	factory := s.ForestFactory()
	if *baseline != "" {
		factory, err = s.BaselineFactory(*baseline)
		if err != nil {
			return err
		}
	}
	engine := &eval.Engine{Tracker: tracker}
	result, err := engine.ThresholdSweep(ds, factory, c.Folds, c.ThresholdSteps, c.Seed)
	if err != nil {
		return err
	}
	fmt.Println("threshold\tprecision\trecall\tprecision_err\trecall_err")
	for _, pt := range result.Points {
		p, r := "undef", "undef"
		if pt.PrecisionDefined {
			p = fmt.Sprintf("%.3f", pt.Precision)
		}
		if pt.RecallDefined {
			r = fmt.Sprintf("%.3f", pt.Recall)
		}
		fmt.Printf("%.3f\t%s\t%s\t%.3f\t%.3f\n", pt.Threshold, p, r, pt.PrecisionErr, pt.RecallErr)
	}
	if *saveAs != "" {
		store, err := storage.Open(c.ModelPath)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.SaveReport(*saveAs, result)
	}
	return nil
}

func runScore(c cfg.Settings, tracker metrics.Tracker, args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("score requires at least one SMILES argument")
	}
	store, err := storage.Open(c.ModelPath)
	if err != nil {
		return err
	}
	defer store.Close()
	s, err := scorer.Restore(c, tracker, store, modelHandle)
	if err != nil {
		return err
	}
	for _, smiles := range fs.Args() {
		score, err := s.Score(smiles)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%.4f\n", smiles, score)
	}
	return nil
}

func runInvert(c cfg.Settings, tracker metrics.Tracker, args []string) error {
	fs := flag.NewFlagSet("invert", flag.ExitOnError)
	calibrated := fs.Float64("p", -1, "calibrated probability to invert")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *calibrated < 0 || *calibrated > 1 {
		return fmt.Errorf("-p must be a probability in [0,1]")
	}
	store, err := storage.Open(c.ModelPath)
	if err != nil {
		return err
	}
	defer store.Close()
	s, err := scorer.Restore(c, tracker, store, modelHandle)
	if err != nil {
		return err
	}
	raw, err := s.InvertProbability(*calibrated)
	if err != nil {
		return err
	}
	fmt.Printf("calibrated=%.4f raw=%.4f\n", *calibrated, raw)
	return nil
}
