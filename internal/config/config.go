// Package config holds the startup-only safety configuration.
//
// Values come from Default, optionally overlaid by a JSON file, then by any
// command-line flags the operator set explicitly. Validate must pass before
// anything is started; an invalid configuration is fatal.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sweeney/rangeguard/internal/logic"
)

// MaxFusionWindow bounds the ring size so a typo cannot allocate gigabytes.
const MaxFusionWindow = 1000

// MaxTimer bounds every timer and period.
const MaxTimer = time.Hour

// Flag names, shared by BindFlags and ApplyFlags.
const (
	FlagEmergencyThreshold = "emergency-threshold-cm"
	FlagWarningThreshold   = "warning-threshold-cm"
	FlagFusionWindow       = "fusion-window-size"
	FlagEmergencyHold      = "emergency-hold-s"
	FlagEmergencyDelay     = "emergency-delay-s"
	FlagPublishPeriod      = "status-publish-period-s"
	FlagTickPeriod         = "tick-period-s"
)

// Config is the thresholds and timers. Immutable after startup.
type Config struct {
	EmergencyThresholdCm float64 `json:"emergency_threshold_cm"`
	WarningThresholdCm   float64 `json:"warning_threshold_cm"`
	FusionWindowSize     int     `json:"fusion_window_size"`
	EmergencyHoldS       float64 `json:"emergency_hold_s"`
	EmergencyDelayS      float64 `json:"emergency_delay_s"`
	StatusPublishPeriodS float64 `json:"status_publish_period_s"`
	TickPeriodS          float64 `json:"tick_period_s"`
}

// fileConfig mirrors Config with pointers so partial files keep defaults.
type fileConfig struct {
	EmergencyThresholdCm *float64 `json:"emergency_threshold_cm,omitempty"`
	WarningThresholdCm   *float64 `json:"warning_threshold_cm,omitempty"`
	FusionWindowSize     *int     `json:"fusion_window_size,omitempty"`
	EmergencyHoldS       *float64 `json:"emergency_hold_s,omitempty"`
	EmergencyDelayS      *float64 `json:"emergency_delay_s,omitempty"`
	StatusPublishPeriodS *float64 `json:"status_publish_period_s,omitempty"`
	TickPeriodS          *float64 `json:"tick_period_s,omitempty"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		EmergencyThresholdCm: 30,
		WarningThresholdCm:   50,
		FusionWindowSize:     5,
		EmergencyHoldS:       5.0,
		EmergencyDelayS:      0.2,
		StatusPublishPeriodS: 0.1,
		TickPeriodS:          0.1,
	}
}

// LoadFile overlays a JSON file onto Default. Fields omitted from the file
// keep their default values; unknown fields are an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("stat config file: %w", err)
	}
	const maxFileSize = 64 * 1024
	if fileInfo.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return cfg, fmt.Errorf("parse config JSON: %w", err)
	}

	if fc.EmergencyThresholdCm != nil {
		cfg.EmergencyThresholdCm = *fc.EmergencyThresholdCm
	}
	if fc.WarningThresholdCm != nil {
		cfg.WarningThresholdCm = *fc.WarningThresholdCm
	}
	if fc.FusionWindowSize != nil {
		cfg.FusionWindowSize = *fc.FusionWindowSize
	}
	if fc.EmergencyHoldS != nil {
		cfg.EmergencyHoldS = *fc.EmergencyHoldS
	}
	if fc.EmergencyDelayS != nil {
		cfg.EmergencyDelayS = *fc.EmergencyDelayS
	}
	if fc.StatusPublishPeriodS != nil {
		cfg.StatusPublishPeriodS = *fc.StatusPublishPeriodS
	}
	if fc.TickPeriodS != nil {
		cfg.TickPeriodS = *fc.TickPeriodS
	}
	return cfg, nil
}

// BindFlags registers one flag per field, writing into c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.EmergencyThresholdCm, FlagEmergencyThreshold, c.EmergencyThresholdCm, "Fused distance (cm) below which an emergency is armed")
	fs.Float64Var(&c.WarningThresholdCm, FlagWarningThreshold, c.WarningThresholdCm, "Fused distance (cm) below which the warning flag is set")
	fs.IntVar(&c.FusionWindowSize, FlagFusionWindow, c.FusionWindowSize, "Number of samples averaged per channel")
	fs.Float64Var(&c.EmergencyHoldS, FlagEmergencyHold, c.EmergencyHoldS, "Minimum seconds an emergency stays committed")
	fs.Float64Var(&c.EmergencyDelayS, FlagEmergencyDelay, c.EmergencyDelayS, "Seconds a breach must be pending before the emergency commits")
	fs.Float64Var(&c.StatusPublishPeriodS, FlagPublishPeriod, c.StatusPublishPeriodS, "Seconds between status publications")
	fs.Float64Var(&c.TickPeriodS, FlagTickPeriod, c.TickPeriodS, "Seconds between timer evaluations")
}

// ApplyFlags copies into c only the fields whose flags were set explicitly
// on fs, taking the values from flagged (the Config passed to BindFlags).
func (c *Config) ApplyFlags(fs *flag.FlagSet, flagged Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case FlagEmergencyThreshold:
			c.EmergencyThresholdCm = flagged.EmergencyThresholdCm
		case FlagWarningThreshold:
			c.WarningThresholdCm = flagged.WarningThresholdCm
		case FlagFusionWindow:
			c.FusionWindowSize = flagged.FusionWindowSize
		case FlagEmergencyHold:
			c.EmergencyHoldS = flagged.EmergencyHoldS
		case FlagEmergencyDelay:
			c.EmergencyDelayS = flagged.EmergencyDelayS
		case FlagPublishPeriod:
			c.StatusPublishPeriodS = flagged.StatusPublishPeriodS
		case FlagTickPeriod:
			c.TickPeriodS = flagged.TickPeriodS
		}
	})
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.FusionWindowSize < 1 || c.FusionWindowSize > MaxFusionWindow {
		errs = append(errs, fmt.Errorf("fusion_window_size must be between 1 and %d, got %d", MaxFusionWindow, c.FusionWindowSize))
	}
	if err := nonNegative("emergency_threshold_cm", c.EmergencyThresholdCm); err != nil {
		errs = append(errs, err)
	}
	if err := nonNegative("warning_threshold_cm", c.WarningThresholdCm); err != nil {
		errs = append(errs, err)
	}
	if err := timer("emergency_hold_s", c.EmergencyHoldS, false); err != nil {
		errs = append(errs, err)
	}
	if err := timer("emergency_delay_s", c.EmergencyDelayS, false); err != nil {
		errs = append(errs, err)
	}
	if err := timer("status_publish_period_s", c.StatusPublishPeriodS, true); err != nil {
		errs = append(errs, err)
	}
	if err := timer("tick_period_s", c.TickPeriodS, true); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func nonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a non-negative number, got %v", name, v)
	}
	return nil
}

// timer checks a duration in seconds. The bound is applied before
// conversion so huge values cannot overflow time.Duration.
func timer(name string, v float64, period bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a non-negative number, got %v", name, v)
	}
	if v > MaxTimer.Seconds() {
		return fmt.Errorf("%s must be at most %v, got %vs", name, MaxTimer, v)
	}
	if period && seconds(v) <= 0 {
		return fmt.Errorf("%s must be at least 1ns, got %vs", name, v)
	}
	return nil
}

// Thresholds converts the config into the machine's parameters.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{
		EmergencyCm: c.EmergencyThresholdCm,
		WarningCm:   c.WarningThresholdCm,
		Delay:       seconds(c.EmergencyDelayS),
		Hold:        seconds(c.EmergencyHoldS),
	}
}

// PublishPeriod is the status publication cadence.
func (c Config) PublishPeriod() time.Duration {
	return seconds(c.StatusPublishPeriodS)
}

// TickPeriod is the timer evaluation cadence.
func (c Config) TickPeriod() time.Duration {
	return seconds(c.TickPeriodS)
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
