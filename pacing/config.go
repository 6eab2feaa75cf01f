package pacing

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid pacing config")

// BudgetConfig describes the per-iteration budget shared by all constrained controllers.
type BudgetConfig struct {
	// BudgetLow and BudgetHigh bound the uniform budget draw [low, high)
	BudgetLow  float64 `yaml:"budget_low" json:"budget_low"`
	BudgetHigh float64 `yaml:"budget_high" json:"budget_high"`

	RoundsPerIter int `yaml:"rounds_per_iter" json:"rounds_per_iter"`
}

// Validate checks the budget range and iteration length.
func (c BudgetConfig) Validate() error {
	if c.BudgetLow < 0 || c.BudgetHigh < c.BudgetLow {
		return fmt.Errorf("%w: budget range [%g, %g)", ErrInvalidConfig, c.BudgetLow, c.BudgetHigh)
	}
	if c.RoundsPerIter <= 0 {
		return fmt.Errorf("%w: rounds_per_iter must be positive, got %d", ErrInvalidConfig, c.RoundsPerIter)
	}
	return nil
}

// PacingConfig configures the step-based IMPC family of controllers.
type PacingConfig struct {
	BudgetConfig `yaml:",inline"`

	RoundsPerStep int     `yaml:"rounds_per_step" json:"rounds_per_step"`
	BidStep       float64 `yaml:"bid_step" json:"bid_step"`
	// Memory bounds the bid/spend history; zero keeps it unbounded
	Memory int `yaml:"memory" json:"memory"`
}

// Validate checks the budget and step settings.
func (c PacingConfig) Validate() error {
	if err := c.BudgetConfig.Validate(); err != nil {
		return err
	}
	if c.RoundsPerStep <= 0 {
		return fmt.Errorf("%w: rounds_per_step must be positive, got %d", ErrInvalidConfig, c.RoundsPerStep)
	}
	if c.BidStep < 0 {
		return fmt.Errorf("%w: bid_step must not be negative, got %g", ErrInvalidConfig, c.BidStep)
	}
	if c.Memory < 0 {
		return fmt.Errorf("%w: memory must not be negative, got %d", ErrInvalidConfig, c.Memory)
	}
	return nil
}

// stepFraction is the share of an iteration covered by one step.
func (c PacingConfig) stepFraction() float64 {
	return float64(c.RoundsPerStep) / float64(c.RoundsPerIter)
}

// SPBConfig configures the SPB controller.
type SPBConfig struct {
	PacingConfig `yaml:",inline"`

	SPBMemory     int     `yaml:"spb_memory" json:"spb_memory"`
	ExploreBidMax float64 `yaml:"explore_bid_max" json:"explore_bid_max"`
}

// Validate checks the pacing settings and the response-curve window.
func (c SPBConfig) Validate() error {
	if err := c.PacingConfig.Validate(); err != nil {
		return err
	}
	if c.SPBMemory < 0 {
		return fmt.Errorf("%w: spb_memory must not be negative, got %d", ErrInvalidConfig, c.SPBMemory)
	}
	if c.ExploreBidMax <= 0 {
		return fmt.Errorf("%w: explore_bid_max must be positive, got %g", ErrInvalidConfig, c.ExploreBidMax)
	}
	return nil
}

// PIDConfig configures the PID ROI controller.
type PIDConfig struct {
	PacingConfig `yaml:",inline"`

	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`

	BidMin float64 `yaml:"bid_min" json:"bid_min"`
	BidMax float64 `yaml:"bid_max" json:"bid_max"`
}

// Validate checks the pacing settings and the absolute bid range.
func (c PIDConfig) Validate() error {
	if err := c.PacingConfig.Validate(); err != nil {
		return err
	}
	if c.BidMax < c.BidMin {
		return fmt.Errorf("%w: bid range [%g, %g]", ErrInvalidConfig, c.BidMin, c.BidMax)
	}
	return nil
}

// mustValidate panics on configuration a caller should have validated.
func mustValidate(kind string, c interface{ Validate() error }) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("%s: %v", kind, err))
	}
}
