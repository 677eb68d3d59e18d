package models

import "errors"

// CanonicalConfig is one canonical symbol entry from the configuration
// source: the canonical name, its venue-specific alias spellings, and the
// default detection magnitudes. Read-only during operation.
type CanonicalConfig struct {
	Name              string   `mapstructure:"name" json:"name"`
	Aliases           []string `mapstructure:"aliases" json:"aliases"`
	DefaultGapPercent float64  `mapstructure:"default_gap_percent" json:"default_gap_percent"`
	CustomGapScale    float64  `mapstructure:"custom_gap" json:"custom_gap"`
}

// Validate checks canonical config field constraints.
func (c *CanonicalConfig) Validate() error {
	if c.Name == "" {
		return errors.New("canonical name must not be empty")
	}
	if c.DefaultGapPercent < 0 {
		return errors.New("default gap percent must not be negative")
	}
	return nil
}

// ThresholdOverride holds optional per-instrument percent or point
// overrides, each independently settable for gap and spike. A nil field
// means "not overridden". Point overrides force point mode for the
// instrument regardless of canonical matching.
type ThresholdOverride struct {
	GapPercent   *float64 `mapstructure:"gap_percent" json:"gap_percent,omitempty"`
	SpikePercent *float64 `mapstructure:"spike_percent" json:"spike_percent,omitempty"`
	GapPoint     *float64 `mapstructure:"gap_point" json:"gap_point,omitempty"`
	SpikePoint   *float64 `mapstructure:"spike_point" json:"spike_point,omitempty"`
}

// HasPoint reports whether any point-denominated override is set.
func (o ThresholdOverride) HasPoint() bool {
	return o.GapPoint != nil || o.SpikePoint != nil
}

// HasPercent reports whether any percent-denominated override is set.
func (o ThresholdOverride) HasPercent() bool {
	return o.GapPercent != nil || o.SpikePercent != nil
}
