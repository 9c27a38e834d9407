package tracking

import (
	"errors"
	"fmt"
)

// Config holds the per-axis pixel thresholds of the bite detector.
//
// The strike test is deliberately asymmetric and per-axis:
//
//	(dx > StrikeMinX || dy > StrikeMinY) && (dx < StrikeMaxX || dy < StrikeMaxY)
//
// Do not replace it with a distance metric; the bounds are tuned per axis.
type Config struct {
	// StableMax: both axis deltas at or below this mean the bobber is at rest.
	StableMax int `toml:"stable_max"`

	// Lower bound of the strike window (movement resumed).
	StrikeMinX int `toml:"strike_min_x"`
	StrikeMinY int `toml:"strike_min_y"`

	// Upper bound of the strike window (rules out re-casts and tracker jumps).
	StrikeMaxX int `toml:"strike_max_x"`
	StrikeMaxY int `toml:"strike_max_y"`
}

// DefaultConfig returns the empirically tuned thresholds.
func DefaultConfig() Config {
	return Config{
		StableMax:  1,
		StrikeMinX: 2,
		StrikeMinY: 1,
		StrikeMaxX: 8,
		StrikeMaxY: 8,
	}
}

// SensitiveConfig reacts to smaller bobs, for zoomed-out game windows.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.StrikeMinX = 1
	cfg.StrikeMaxX = 6
	cfg.StrikeMaxY = 6
	return cfg
}

// Validate checks that the thresholds describe a usable window.
func (c Config) Validate() error {
	var errs []error
	if c.StableMax < 0 {
		errs = append(errs, fmt.Errorf("stable_max must be >= 0, got %d", c.StableMax))
	}
	if c.StrikeMinX < 0 || c.StrikeMinY < 0 {
		errs = append(errs, fmt.Errorf("strike minimums must be >= 0, got x=%d y=%d", c.StrikeMinX, c.StrikeMinY))
	}
	if c.StrikeMaxX <= c.StrikeMinX {
		errs = append(errs, fmt.Errorf("strike_max_x (%d) must exceed strike_min_x (%d)", c.StrikeMaxX, c.StrikeMinX))
	}
	if c.StrikeMaxY <= c.StrikeMinY {
		errs = append(errs, fmt.Errorf("strike_max_y (%d) must exceed strike_min_y (%d)", c.StrikeMaxY, c.StrikeMinY))
	}
	return errors.Join(errs...)
}

// IsStable reports whether a delta means the bobber came to rest.
func (c Config) IsStable(dx, dy int) bool {
	return dx <= c.StableMax && dy <= c.StableMax
}

// IsStrike evaluates the strike window for a delta.
func (c Config) IsStrike(dx, dy int) bool {
	return (dx > c.StrikeMinX || dy > c.StrikeMinY) && (dx < c.StrikeMaxX || dy < c.StrikeMaxY)
}
