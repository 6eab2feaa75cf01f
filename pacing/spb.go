package pacing

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// noOptimalBudget marks that no trusted response model exists yet.
const noOptimalBudget = -1.0

// SPBController is an IMPC controller that aims at the spend-optimal point of a fitted
// response curve instead of the full budget. Until a model fits it paces against the full
// budget with the ROI bid capped at ExploreBidMax.
type SPBController struct {
	curvePacer
	cfg    SPBConfig
	logger *slog.Logger

	model         ResponseModel
	optimalBudget float64
	spendHistory  []float64
	valueHistory  []float64
}

// NewSPBController builds an SPB controller whose budget is drawn from src.
// It panics when cfg is invalid.
func NewSPBController(src rand.Source, cfg SPBConfig, opts ...Option) *SPBController {
	mustValidate("NewSPBController", cfg)
	o := buildOptions(opts)
	return &SPBController{
		curvePacer:    newCurvePacer(src, cfg.PacingConfig),
		cfg:           cfg,
		logger:        o.logger,
		model:         initialResponseModel,
		optimalBudget: noOptimalBudget,
	}
}

func (c *SPBController) stepTarget() (float64, float64) {
	if c.optimalBudget > 0 {
		return c.optimalBudget * c.cfg.stepFraction(), math.Inf(1)
	}
	return c.nominalStepTarget(), c.cfg.ExploreBidMax
}

// Bid implements Controller.
func (c *SPBController) Bid(value float64, _ Context, estimatedCTR float64) float64 {
	return c.bid(value, estimatedCTR)
}

// Charge implements Controller.
func (c *SPBController) Charge(price float64, round int, _ float64, _ float64) {
	c.charge(price, round, c)
}

// Update implements Controller. It extends the spend/value window, refits the response curve
// and recomputes the optimal budget before resetting the iteration spend.
func (c *SPBController) Update(result IterationResult) {
	if result.Rounds != nil {
		c.spendHistory = keepLast(append(c.spendHistory, WonSpend(result.Rounds)), c.cfg.SPBMemory)
		c.valueHistory = keepLast(append(c.valueHistory, result.TotalValue), c.cfg.SPBMemory)
	}

	ready := false
	model := initialResponseModel
	if len(c.spendHistory) > 1 {
		model, ready = FitResponseCurve(c.spendHistory, c.valueHistory)
		if !ready {
			c.logger.Debug("spb response curve fit failed",
				slog.Int("iteration", result.Iteration),
				slog.Int("points", len(c.spendHistory)))
		}
	}

	c.model = model
	if ready {
		c.optimalBudget = min(model.OptimalSpend(), c.tracker.Budget())
	} else {
		c.optimalBudget = noOptimalBudget
	}
	c.logger.Debug("spb iteration closed",
		slog.Int("iteration", result.Iteration),
		slog.Bool("model_ready", ready),
		slog.Float64("a", model.A),
		slog.Float64("b", model.B),
		slog.Float64("optimal_budget", c.optimalBudget))
	c.tracker.ResetIteration()
}

// Reset implements Controller.
func (c *SPBController) Reset() {
	c.reset()
	c.model = initialResponseModel
	c.optimalBudget = noOptimalBudget
	c.spendHistory = nil
	c.valueHistory = nil
}

// ROIBid returns the current multiplier.
func (c *SPBController) ROIBid() float64 { return c.roiBid }

// Budget returns the per-iteration budget.
func (c *SPBController) Budget() float64 { return c.tracker.Budget() }

// Spending returns the iteration spend so far.
func (c *SPBController) Spending() float64 { return c.tracker.Spending() }

// OptimalBudget returns the spend target derived from the response model, or -1 when no
// trusted model exists.
func (c *SPBController) OptimalBudget() float64 { return c.optimalBudget }

// Model returns the last fitted response model.
func (c *SPBController) Model() ResponseModel { return c.model }

func (c *SPBController) String() string {
	return fmt.Sprintf("spb(budget=%.2f optimal=%.2f roi_bid=%.4f)", c.Budget(), c.optimalBudget, c.roiBid)
}
