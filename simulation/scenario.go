package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/openpacing/pacing"
)

// ErrInvalidScenario is wrapped by every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// ControllerKind names a pacing.Controller variant.
type ControllerKind string

const (
	KindTruthful   ControllerKind = "truthful"
	KindBudgetOnly ControllerKind = "budget_only"
	KindIMPC       ControllerKind = "impc"
	KindBidCap     ControllerKind = "bidcap"
	KindSPB        ControllerKind = "spb"
	KindPID        ControllerKind = "pid"
)

// Scenario describes one simulated market: the auction rules and the participating bidders.
type Scenario struct {
	Name          string  `yaml:"name"`
	Seed          uint64  `yaml:"seed"`
	Iterations    int     `yaml:"iterations"`
	RoundsPerIter int     `yaml:"rounds_per_iter"`
	NumFeatures   int     `yaml:"num_features"`
	ReservePrice  float64 `yaml:"reserve_price"`

	// AdjustmentFactors are per-bidder bid multipliers applied by the auction, keyed by
	// lower-case bidder name
	AdjustmentFactors map[string]float64 `yaml:"adjustment_factors"`

	Bidders []BidderSpec `yaml:"bidders"`
}

// BidderSpec describes one participant: its controller and the value/CTR process it sees.
// Controller parameters a kind does not use are ignored.
type BidderSpec struct {
	Name string         `yaml:"name"`
	Kind ControllerKind `yaml:"kind"`

	// Per-round value is drawn uniformly from [ValueLow, ValueHigh)
	ValueLow  float64 `yaml:"value_low"`
	ValueHigh float64 `yaml:"value_high"`

	// CTRBias is the logit intercept of the true click-through rate
	CTRBias float64 `yaml:"ctr_bias"`
	// CTRNoise is the log-normal sigma of the estimation error on CTR
	CTRNoise float64 `yaml:"ctr_noise"`

	BudgetLow     float64 `yaml:"budget_low"`
	BudgetHigh    float64 `yaml:"budget_high"`
	RoundsPerStep int     `yaml:"rounds_per_step"`
	BidStep       float64 `yaml:"bid_step"`
	Memory        int     `yaml:"memory"`
	SPBMemory     int     `yaml:"spb_memory"`
	ExploreBidMax float64 `yaml:"explore_bid_max"`
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	BidMin        float64 `yaml:"bid_min"`
	BidMax        float64 `yaml:"bid_max"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks the scenario and every bidder's controller configuration.
func (s Scenario) Validate() error {
	if s.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidScenario, s.Iterations)
	}
	if s.RoundsPerIter <= 0 {
		return fmt.Errorf("%w: rounds_per_iter must be positive, got %d", ErrInvalidScenario, s.RoundsPerIter)
	}
	if s.NumFeatures < 0 {
		return fmt.Errorf("%w: num_features must not be negative, got %d", ErrInvalidScenario, s.NumFeatures)
	}
	if s.ReservePrice < 0 {
		return fmt.Errorf("%w: reserve_price must not be negative, got %g", ErrInvalidScenario, s.ReservePrice)
	}
	if len(s.Bidders) == 0 {
		return fmt.Errorf("%w: no bidders", ErrInvalidScenario)
	}

	seen := make(map[string]bool, len(s.Bidders))
	for _, b := range s.Bidders {
		key := strings.ToLower(b.Name)
		if key == "" {
			return fmt.Errorf("%w: bidder without a name", ErrInvalidScenario)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate bidder %q", ErrInvalidScenario, b.Name)
		}
		seen[key] = true

		if b.ValueLow < 0 || b.ValueHigh < b.ValueLow {
			return fmt.Errorf("%w: bidder %q value range [%g, %g)", ErrInvalidScenario, b.Name, b.ValueLow, b.ValueHigh)
		}
		if b.CTRNoise < 0 {
			return fmt.Errorf("%w: bidder %q ctr_noise must not be negative", ErrInvalidScenario, b.Name)
		}
		if err := b.validateController(s.RoundsPerIter); err != nil {
			return fmt.Errorf("%w: bidder %q: %w", ErrInvalidScenario, b.Name, err)
		}
	}
	return nil
}

func (b BidderSpec) budgetConfig(roundsPerIter int) pacing.BudgetConfig {
	return pacing.BudgetConfig{BudgetLow: b.BudgetLow, BudgetHigh: b.BudgetHigh, RoundsPerIter: roundsPerIter}
}

func (b BidderSpec) pacingConfig(roundsPerIter int) pacing.PacingConfig {
	return pacing.PacingConfig{
		BudgetConfig:  b.budgetConfig(roundsPerIter),
		RoundsPerStep: b.RoundsPerStep,
		BidStep:       b.BidStep,
		Memory:        b.Memory,
	}
}

func (b BidderSpec) spbConfig(roundsPerIter int) pacing.SPBConfig {
	return pacing.SPBConfig{
		PacingConfig:  b.pacingConfig(roundsPerIter),
		SPBMemory:     b.SPBMemory,
		ExploreBidMax: b.ExploreBidMax,
	}
}

func (b BidderSpec) pidConfig(roundsPerIter int) pacing.PIDConfig {
	return pacing.PIDConfig{
		PacingConfig: b.pacingConfig(roundsPerIter),
		Kp:           b.Kp,
		Ki:           b.Ki,
		Kd:           b.Kd,
		BidMin:       b.BidMin,
		BidMax:       b.BidMax,
	}
}

func (b BidderSpec) validateController(roundsPerIter int) error {
	switch b.Kind {
	case KindTruthful:
		return nil
	case KindBudgetOnly:
		return b.budgetConfig(roundsPerIter).Validate()
	case KindIMPC, KindBidCap:
		return b.pacingConfig(roundsPerIter).Validate()
	case KindSPB:
		return b.spbConfig(roundsPerIter).Validate()
	case KindPID:
		return b.pidConfig(roundsPerIter).Validate()
	default:
		return fmt.Errorf("unknown controller kind %q", b.Kind)
	}
}

// NewController builds the controller a bidder spec describes, drawing its budget from src.
func NewController(b BidderSpec, roundsPerIter int, src rand.Source, logger *slog.Logger) (pacing.Controller, error) {
	if err := b.validateController(roundsPerIter); err != nil {
		return nil, err
	}

	opt := pacing.WithLogger(logger.With(slog.String("bidder", b.Name)))
	switch b.Kind {
	case KindTruthful:
		return pacing.NewTruthfulController(), nil
	case KindBudgetOnly:
		return pacing.NewBudgetOnlyController(src, b.budgetConfig(roundsPerIter)), nil
	case KindIMPC:
		return pacing.NewIMPCController(src, b.pacingConfig(roundsPerIter), opt), nil
	case KindBidCap:
		return pacing.NewBidCapController(src, b.pacingConfig(roundsPerIter), opt), nil
	case KindSPB:
		return pacing.NewSPBController(src, b.spbConfig(roundsPerIter), opt), nil
	default:
		return pacing.NewPIDROIController(src, b.pidConfig(roundsPerIter), opt), nil
	}
}
