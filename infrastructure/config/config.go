package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries process-level settings. Reconciliation tunables can be
// overridden later through the settings screen; these are the boot values.
type Config struct {
	Addr       string
	SQLitePath string
	VisionURL  string

	// CriticalDiffThreshold marks a comparison critical when
	// |difference| >= threshold.
	CriticalDiffThreshold int64
	// ManualReviewConfidence flags a pallet for manual review when the
	// vision confidence falls below it (0-100 scale).
	ManualReviewConfidence int64
}

const (
	DefaultCriticalDiffThreshold  = 5
	DefaultManualReviewConfidence = 65
)

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:                   getenv("APP_ADDR", ":8080"),
		SQLitePath:             getenv("SQLITE_PATH", "palletrack.db"),
		VisionURL:              os.Getenv("VISION_URL"),
		CriticalDiffThreshold:  DefaultCriticalDiffThreshold,
		ManualReviewConfidence: DefaultManualReviewConfidence,
	}

	var err error
	if cfg.CriticalDiffThreshold, err = getenvInt("CRITICAL_DIFF_THRESHOLD", DefaultCriticalDiffThreshold); err != nil {
		return Config{}, err
	}
	if cfg.CriticalDiffThreshold < 1 {
		return Config{}, fmt.Errorf("CRITICAL_DIFF_THRESHOLD must be >= 1")
	}
	if cfg.ManualReviewConfidence, err = getenvInt("MANUAL_REVIEW_CONFIDENCE", DefaultManualReviewConfidence); err != nil {
		return Config{}, err
	}
	if cfg.ManualReviewConfidence < 0 || cfg.ManualReviewConfidence > 100 {
		return Config{}, fmt.Errorf("MANUAL_REVIEW_CONFIDENCE must be between 0 and 100")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
