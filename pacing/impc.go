package pacing

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// stepTargeter chooses what a pacing step aims for.
// target is the spend the next step should produce; ceiling caps the ROI bid after the update.
type stepTargeter interface {
	stepTarget() (target, ceiling float64)
}

// curvePacer is the IMPC pacing core: it records one bid/spend sample per step and inverts the
// empirical bid→spend curve to pick the next ROI bid.
type curvePacer struct {
	cfg     PacingConfig
	tracker *BudgetTracker
	history []BidSpendSample
	roiBid  float64
}

func newCurvePacer(src rand.Source, cfg PacingConfig) curvePacer {
	return curvePacer{
		cfg:     cfg,
		tracker: NewBudgetTracker(src, cfg.BudgetLow, cfg.BudgetHigh),
		roiBid:  defaultROIBid,
	}
}

func (p *curvePacer) bid(value, estimatedCTR float64) float64 {
	if p.tracker.Exhausted() {
		return 0
	}
	return value * estimatedCTR * p.roiBid
}

// nominalStepTarget spreads the whole budget evenly over the steps of an iteration.
func (p *curvePacer) nominalStepTarget() float64 {
	return p.tracker.Budget() * p.cfg.stepFraction()
}

// charge records price and, at a step boundary, moves the ROI bid toward the target chosen by t.
func (p *curvePacer) charge(price float64, round int, t stepTargeter) {
	p.tracker.Charge(price)
	if round%p.cfg.RoundsPerStep != 0 {
		return
	}

	stepSpend := p.tracker.CloseStep()
	p.history = append(p.history, BidSpendSample{Bid: p.roiBid, Spend: stepSpend})
	target, ceiling := t.stepTarget()
	p.roiBid = min(p.nextROIBid(stepSpend, target), ceiling)
	p.history = keepLast(p.history, p.cfg.Memory)
}

// nextROIBid explores upward when the step won nothing, otherwise solves the curve and limits
// the move to one bid step.
func (p *curvePacer) nextROIBid(stepSpend, target float64) float64 {
	if stepSpend < noStepSpend {
		return p.roiBid + p.cfg.BidStep
	}
	solved := SolveBid(p.history, target)
	return clamp(solved, p.roiBid-p.cfg.BidStep, p.roiBid+p.cfg.BidStep)
}

func (p *curvePacer) reset() {
	p.history = nil
	p.tracker.Reset()
	p.roiBid = defaultROIBid
}

// IMPCController paces spend by inverting the observed bid→spend curve once per step.
// It is also the bid-cap controller when built with NewBidCapController.
type IMPCController struct {
	curvePacer
	ceiling float64
	logger  *slog.Logger
}

// NewIMPCController builds an IMPC controller whose budget is drawn from src.
// It panics when cfg is invalid.
func NewIMPCController(src rand.Source, cfg PacingConfig, opts ...Option) *IMPCController {
	mustValidate("NewIMPCController", cfg)
	o := buildOptions(opts)
	return &IMPCController{
		curvePacer: newCurvePacer(src, cfg),
		ceiling:    math.Inf(1),
		logger:     o.logger,
	}
}

// bidCapCeiling is the largest ROI bid a bid-cap controller may use.
const bidCapCeiling = 1.0

// NewBidCapController builds an IMPC controller whose ROI bid never exceeds 1.0 after a step
// update, so bids never exceed the value × CTR estimate. The cap applies after the IMPC update
// (exploration included), and the next step's bid-step bound starts from the capped value.
func NewBidCapController(src rand.Source, cfg PacingConfig, opts ...Option) *IMPCController {
	c := NewIMPCController(src, cfg, opts...)
	c.ceiling = bidCapCeiling
	return c
}

func (c *IMPCController) stepTarget() (float64, float64) {
	return c.nominalStepTarget(), c.ceiling
}

// Bid implements Controller.
func (c *IMPCController) Bid(value float64, _ Context, estimatedCTR float64) float64 {
	return c.bid(value, estimatedCTR)
}

// Charge implements Controller.
func (c *IMPCController) Charge(price float64, round int, _ float64, _ float64) {
	c.charge(price, round, c)
}

// Update implements Controller. Only the iteration spend is reset.
func (c *IMPCController) Update(result IterationResult) {
	c.logger.Debug("impc iteration closed",
		slog.Int("iteration", result.Iteration),
		slog.Float64("spending", c.tracker.Spending()),
		slog.Float64("roi_bid", c.roiBid))
	c.tracker.ResetIteration()
}

// Reset implements Controller.
func (c *IMPCController) Reset() {
	c.reset()
}

// ROIBid returns the current multiplier.
func (c *IMPCController) ROIBid() float64 { return c.roiBid }

// Budget returns the per-iteration budget.
func (c *IMPCController) Budget() float64 { return c.tracker.Budget() }

// Spending returns the iteration spend so far.
func (c *IMPCController) Spending() float64 { return c.tracker.Spending() }

// History returns a copy of the bid/spend samples currently remembered.
func (c *IMPCController) History() []BidSpendSample {
	return append([]BidSpendSample(nil), c.history...)
}

func (c *IMPCController) String() string {
	if c.ceiling == bidCapCeiling {
		return fmt.Sprintf("bidcap(budget=%.2f roi_bid=%.4f)", c.Budget(), c.roiBid)
	}
	return fmt.Sprintf("impc(budget=%.2f roi_bid=%.4f)", c.Budget(), c.roiBid)
}
