// Package widgetcfg validates and merges widget collection configuration.
package widgetcfg

import (
	"fmt"

	"github.com/scriptgate/scriptgate/internal/models"
)

// Declared ranges for configuration fields. Out-of-range values are rejected
// at the boundary, never clamped.
const (
	MinSamplingRate   = 0.0
	MaxSamplingRate   = 1.0
	MinBatchSize      = 1
	MaxBatchSize      = 100
	MinSendIntervalMS = 1000
	MaxSendIntervalMS = 60000
)

// Default returns the configuration applied when a token is generated
// without an explicit one.
func Default() models.Configuration {
	return models.Configuration{
		CollectMouseMovements:   true,
		CollectKeyboardPatterns: true,
		CollectScrollBehavior:   true,
		CollectTimingData:       true,
		CollectDeviceInfo:       true,
		SamplingRate:            1.0,
		BatchSize:               10,
		SendIntervalMS:          5000,
		DebugMode:               false,
	}
}

// Validate checks every field against its declared range and reports all
// violations together so the caller can fix them in one round trip.
func Validate(cfg models.Configuration) []*models.ValidationError {
	var errs []*models.ValidationError
	if cfg.SamplingRate < MinSamplingRate || cfg.SamplingRate > MaxSamplingRate {
		errs = append(errs, &models.ValidationError{
			Field:  "sampling_rate",
			Reason: fmt.Sprintf("must be between %v and %v, got %v", MinSamplingRate, MaxSamplingRate, cfg.SamplingRate),
		})
	}
	if cfg.BatchSize < MinBatchSize || cfg.BatchSize > MaxBatchSize {
		errs = append(errs, &models.ValidationError{
			Field:  "batch_size",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, cfg.BatchSize),
		})
	}
	if cfg.SendIntervalMS < MinSendIntervalMS || cfg.SendIntervalMS > MaxSendIntervalMS {
		errs = append(errs, &models.ValidationError{
			Field:  "send_interval_ms",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinSendIntervalMS, MaxSendIntervalMS, cfg.SendIntervalMS),
		})
	}
	return errs
}

// Patch is a partial configuration update. Nil fields retain the current
// value.
type Patch struct {
	CollectMouseMovements   *bool    `json:"collect_mouse_movements,omitempty"`
	CollectKeyboardPatterns *bool    `json:"collect_keyboard_patterns,omitempty"`
	CollectScrollBehavior   *bool    `json:"collect_scroll_behavior,omitempty"`
	CollectTimingData       *bool    `json:"collect_timing_data,omitempty"`
	CollectDeviceInfo       *bool    `json:"collect_device_info,omitempty"`
	SamplingRate            *float64 `json:"sampling_rate,omitempty"`
	BatchSize               *int     `json:"batch_size,omitempty"`
	SendIntervalMS          *int     `json:"send_interval_ms,omitempty"`
	DebugMode               *bool    `json:"debug_mode,omitempty"`
}

// IsEmpty reports whether the patch specifies no fields at all.
func (p Patch) IsEmpty() bool {
	return p.CollectMouseMovements == nil &&
		p.CollectKeyboardPatterns == nil &&
		p.CollectScrollBehavior == nil &&
		p.CollectTimingData == nil &&
		p.CollectDeviceInfo == nil &&
		p.SamplingRate == nil &&
		p.BatchSize == nil &&
		p.SendIntervalMS == nil &&
		p.DebugMode == nil
}

// Merge applies a partial update on top of the current configuration. The
// merge is atomic: if the result fails validation, the current configuration
// is returned unchanged alongside the full violation list.
func Merge(current models.Configuration, patch Patch) (models.Configuration, []*models.ValidationError) {
	merged := current
	if patch.CollectMouseMovements != nil {
		merged.CollectMouseMovements = *patch.CollectMouseMovements
	}
	if patch.CollectKeyboardPatterns != nil {
		merged.CollectKeyboardPatterns = *patch.CollectKeyboardPatterns
	}
	if patch.CollectScrollBehavior != nil {
		merged.CollectScrollBehavior = *patch.CollectScrollBehavior
	}
	if patch.CollectTimingData != nil {
		merged.CollectTimingData = *patch.CollectTimingData
	}
	if patch.CollectDeviceInfo != nil {
		merged.CollectDeviceInfo = *patch.CollectDeviceInfo
	}
	if patch.SamplingRate != nil {
		merged.SamplingRate = *patch.SamplingRate
	}
	if patch.BatchSize != nil {
		merged.BatchSize = *patch.BatchSize
	}
	if patch.SendIntervalMS != nil {
		merged.SendIntervalMS = *patch.SendIntervalMS
	}
	if patch.DebugMode != nil {
		merged.DebugMode = *patch.DebugMode
	}

	if errs := Validate(merged); len(errs) > 0 {
		return current, errs
	}
	return merged, nil
}
