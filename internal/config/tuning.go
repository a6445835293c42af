package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for speller tuning
// parameters. The schema matches the /api/params endpoint so the same JSON
// can be used for both startup configuration and runtime updates. All
// fields are optional; the Get* accessors carry the defaults, so partial
// configs are safe.
type TuningConfig struct {
	// Grid geometry
	Rows *int `json:"rows,omitempty"`
	Cols *int `json:"cols,omitempty"`

	// Stimulus timing (presentation-clock milliseconds)
	FlashDurationMs      *float64 `json:"flash_duration_ms,omitempty"`
	InterFlashIntervalMs *float64 `json:"inter_flash_interval_ms,omitempty"`
	TrialCount           *int     `json:"trial_count,omitempty"`

	// Epoch window
	PreStimulusMs   *float64 `json:"pre_stimulus_ms,omitempty"`
	EpochDurationMs *float64 `json:"epoch_duration_ms,omitempty"`
	BaselineCorrect *bool    `json:"baseline_correct,omitempty"`

	// Stream buffer
	WindowSeconds *float64 `json:"window_seconds,omitempty"`

	// Classifier
	LDALambda *float64 `json:"lda_lambda,omitempty"`
	CVFolds   *int     `json:"cv_folds,omitempty"`

	// Signal quality
	MainsHz *float64 `json:"mains_hz,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any set configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.Rows != nil && *c.Rows < 2 {
		return fmt.Errorf("rows must be at least 2, got %d", *c.Rows)
	}
	if c.Cols != nil && *c.Cols < 2 {
		return fmt.Errorf("cols must be at least 2, got %d", *c.Cols)
	}
	if c.FlashDurationMs != nil && *c.FlashDurationMs <= 0 {
		return fmt.Errorf("flash_duration_ms must be positive, got %f", *c.FlashDurationMs)
	}
	if c.InterFlashIntervalMs != nil && *c.InterFlashIntervalMs < 0 {
		return fmt.Errorf("inter_flash_interval_ms must be non-negative, got %f", *c.InterFlashIntervalMs)
	}
	if c.TrialCount != nil && *c.TrialCount < 1 {
		return fmt.Errorf("trial_count must be at least 1, got %d", *c.TrialCount)
	}
	if c.PreStimulusMs != nil && *c.PreStimulusMs < 0 {
		return fmt.Errorf("pre_stimulus_ms must be non-negative, got %f", *c.PreStimulusMs)
	}
	if c.EpochDurationMs != nil && *c.EpochDurationMs <= 0 {
		return fmt.Errorf("epoch_duration_ms must be positive, got %f", *c.EpochDurationMs)
	}
	if c.WindowSeconds != nil && *c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", *c.WindowSeconds)
	}
	if c.LDALambda != nil && (*c.LDALambda <= 0 || *c.LDALambda > 1) {
		return fmt.Errorf("lda_lambda must be in (0, 1], got %f", *c.LDALambda)
	}
	if c.CVFolds != nil && *c.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2, got %d", *c.CVFolds)
	}
	if c.MainsHz != nil && *c.MainsHz != 50 && *c.MainsHz != 60 {
		return fmt.Errorf("mains_hz must be 50 or 60, got %f", *c.MainsHz)
	}
	return nil
}

// Merge overlays non-nil fields of other onto c. Used by the runtime
// params endpoint to apply partial updates.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.Rows != nil {
		c.Rows = other.Rows
	}
	if other.Cols != nil {
		c.Cols = other.Cols
	}
	if other.FlashDurationMs != nil {
		c.FlashDurationMs = other.FlashDurationMs
	}
	if other.InterFlashIntervalMs != nil {
		c.InterFlashIntervalMs = other.InterFlashIntervalMs
	}
	if other.TrialCount != nil {
		c.TrialCount = other.TrialCount
	}
	if other.PreStimulusMs != nil {
		c.PreStimulusMs = other.PreStimulusMs
	}
	if other.EpochDurationMs != nil {
		c.EpochDurationMs = other.EpochDurationMs
	}
	if other.BaselineCorrect != nil {
		c.BaselineCorrect = other.BaselineCorrect
	}
	if other.WindowSeconds != nil {
		c.WindowSeconds = other.WindowSeconds
	}
	if other.LDALambda != nil {
		c.LDALambda = other.LDALambda
	}
	if other.CVFolds != nil {
		c.CVFolds = other.CVFolds
	}
	if other.MainsHz != nil {
		c.MainsHz = other.MainsHz
	}
}

// GetRows returns the rows value or the default.
func (c *TuningConfig) GetRows() int {
	if c.Rows == nil {
		return 6
	}
	return *c.Rows
}

// GetCols returns the cols value or the default.
func (c *TuningConfig) GetCols() int {
	if c.Cols == nil {
		return 6
	}
	return *c.Cols
}

// GetFlashDurationMs returns the flash_duration_ms value or the default.
func (c *TuningConfig) GetFlashDurationMs() float64 {
	if c.FlashDurationMs == nil {
		return 100.0
	}
	return *c.FlashDurationMs
}

// GetInterFlashIntervalMs returns the inter_flash_interval_ms value or the default.
func (c *TuningConfig) GetInterFlashIntervalMs() float64 {
	if c.InterFlashIntervalMs == nil {
		return 75.0
	}
	return *c.InterFlashIntervalMs
}

// GetTrialCount returns the trial_count value or the default.
func (c *TuningConfig) GetTrialCount() int {
	if c.TrialCount == nil {
		return 10
	}
	return *c.TrialCount
}

// GetPreStimulusMs returns the pre_stimulus_ms value or the default.
func (c *TuningConfig) GetPreStimulusMs() float64 {
	if c.PreStimulusMs == nil {
		return 100.0
	}
	return *c.PreStimulusMs
}

// GetEpochDurationMs returns the epoch_duration_ms value or the default.
func (c *TuningConfig) GetEpochDurationMs() float64 {
	if c.EpochDurationMs == nil {
		return 600.0
	}
	return *c.EpochDurationMs
}

// GetBaselineCorrect returns the baseline_correct value or the default.
func (c *TuningConfig) GetBaselineCorrect() bool {
	if c.BaselineCorrect == nil {
		return true
	}
	return *c.BaselineCorrect
}

// GetWindowSeconds returns the window_seconds value or the default.
func (c *TuningConfig) GetWindowSeconds() float64 {
	if c.WindowSeconds == nil {
		return 10.0
	}
	return *c.WindowSeconds
}

// GetLDALambda returns the lda_lambda value or the default.
func (c *TuningConfig) GetLDALambda() float64 {
	if c.LDALambda == nil {
		return 1e-3
	}
	return *c.LDALambda
}

// GetCVFolds returns the cv_folds value or the default.
func (c *TuningConfig) GetCVFolds() int {
	if c.CVFolds == nil {
		return 10
	}
	return *c.CVFolds
}

// GetMainsHz returns the mains_hz value or the default.
func (c *TuningConfig) GetMainsHz() float64 {
	if c.MainsHz == nil {
		return 50.0
	}
	return *c.MainsHz
}
