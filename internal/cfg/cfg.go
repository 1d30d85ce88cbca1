// Package cfg loads and validates the scorer configuration from a YAML file
// or environment variables. The returned Settings value is immutable:
// options are read once, validated eagerly and passed by value everywhere.
package cfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings is the full configuration of the pipeline. Extra carries
// unrecognized estimator options through to model construction unmodified.
type Settings struct {
	FPRadius       int
	FPBitLength    int
	NumTrees       int
	Criterion      string
	ClassBalance   string
	Seed           int64
	Processes      int
	Folds          int
	ThresholdSteps int
	Calibration    string
	CalibRatio     float64
	DataPath       string
	ModelPath      string
	MetricsPort    int
	Extra          map[string]string
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Fingerprint struct {
		Radius    int `yaml:"radius"`
		BitLength int `yaml:"bitLength"`
	} `yaml:"fingerprint"`

	Model struct {
		Trees        int               `yaml:"trees"`
		Criterion    string            `yaml:"criterion"`
		ClassBalance string            `yaml:"classBalance"`
		Seed         int64             `yaml:"seed"`
		Processes    int               `yaml:"processes"`
		Extra        map[string]string `yaml:"extra"`
	} `yaml:"model"`

	Evaluation struct {
		Folds          int `yaml:"folds"`
		ThresholdSteps int `yaml:"thresholdSteps"`
	} `yaml:"evaluation"`

	Calibration struct {
		Method string  `yaml:"method"`
		Ratio  float64 `yaml:"ratio"`
	} `yaml:"calibration"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		ModelPath   string `yaml:"modelPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

// Load reads the configuration from the file named by CONFIG_FILE when set,
// falling back to environment variables.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		FPRadius:       getIntFromEnvOrConfig("FP_RADIUS", config.Fingerprint.Radius, 2),
		FPBitLength:    getIntFromEnvOrConfig("FP_BIT_LENGTH", config.Fingerprint.BitLength, 1024),
		NumTrees:       getIntFromEnvOrConfig("NUM_TREES", config.Model.Trees, 100),
		Criterion:      getEnvOrDefault("CRITERION", defaultStr(config.Model.Criterion, "gini")),
		ClassBalance:   getEnvOrDefault("CLASS_BALANCE", defaultStr(config.Model.ClassBalance, "balanced")),
		Seed:           getInt64FromEnvOrConfig("SEED", config.Model.Seed, 32),
		Processes:      getIntFromEnvOrConfig("PROCESSES", config.Model.Processes, 0),
		Folds:          getIntFromEnvOrConfig("FOLDS", config.Evaluation.Folds, 5),
		ThresholdSteps: getIntFromEnvOrConfig("THRESHOLD_STEPS", config.Evaluation.ThresholdSteps, 100),
		Calibration:    getEnvOrDefault("CALIBRATION_METHOD", defaultStr(config.Calibration.Method, "sigmoid")),
		CalibRatio:     getFloatFromEnvOrConfig("CALIBRATION_RATIO", config.Calibration.Ratio, 0.25),
		DataPath:       getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelPath:      getEnvOrDefault("MODEL_PATH", defaultStr(config.System.ModelPath, "mpscore.db")),
		MetricsPort:    getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 0),
		Extra:          config.Model.Extra,
	}
	if settings.Extra == nil {
		settings.Extra = map[string]string{}
	}
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		FPRadius:       getIntOrDefault("FP_RADIUS", 2),
		FPBitLength:    getIntOrDefault("FP_BIT_LENGTH", 1024),
		NumTrees:       getIntOrDefault("NUM_TREES", 100),
		Criterion:      getEnvOrDefault("CRITERION", "gini"),
		ClassBalance:   getEnvOrDefault("CLASS_BALANCE", "balanced"),
		Seed:           getInt64OrDefault("SEED", 32),
		Processes:      getIntOrDefault("PROCESSES", 0),
		Folds:          getIntOrDefault("FOLDS", 5),
		ThresholdSteps: getIntOrDefault("THRESHOLD_STEPS", 100),
		Calibration:    getEnvOrDefault("CALIBRATION_METHOD", "sigmoid"),
		CalibRatio:     getFloatOrDefault("CALIBRATION_RATIO", 0.25),
		DataPath:       os.Getenv("DATA_PATH"), // optional
		ModelPath:      getEnvOrDefault("MODEL_PATH", "mpscore.db"),
		MetricsPort:    getIntOrDefault("METRICS_PORT", 0),
		Extra:          map[string]string{},
	}
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func validateSettings(s *Settings) error {
	if s.FPRadius < 0 {
		return fmt.Errorf("fingerprint radius must be >= 0, got %d", s.FPRadius)
	}
	if s.FPBitLength <= 0 {
		return fmt.Errorf("fingerprint bit length must be > 0, got %d", s.FPBitLength)
	}
	if s.NumTrees <= 0 {
		return fmt.Errorf("tree count must be > 0, got %d", s.NumTrees)
	}
	if s.Criterion != "gini" && s.Criterion != "entropy" {
		return fmt.Errorf("split criterion must be gini or entropy, got %q", s.Criterion)
	}
	if s.ClassBalance != "balanced" && s.ClassBalance != "none" {
		return fmt.Errorf("class balance mode must be balanced or none, got %q", s.ClassBalance)
	}
	if s.Folds < 2 {
		return fmt.Errorf("fold count must be >= 2, got %d", s.Folds)
	}
	if s.ThresholdSteps < 2 {
		return fmt.Errorf("threshold steps must be >= 2, got %d", s.ThresholdSteps)
	}
	switch s.Calibration {
	case "sigmoid", "isotonic", "none":
	default:
		return fmt.Errorf("calibration method must be sigmoid, isotonic or none, got %q", s.Calibration)
	}
	if s.CalibRatio <= 0 || s.CalibRatio >= 1 {
		return fmt.Errorf("calibration ratio must be in (0,1), got %g", s.CalibRatio)
	}
	return nil
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}
