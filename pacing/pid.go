package pacing

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	// roiTarget is the realized ROI the PID loop steers toward.
	roiTarget = 1.0
	// minCorrectionMass is the value sum both histories must exceed before the CTR correction
	// factor is trusted.
	minCorrectionMass     = 1.0
	defaultPredictionDiff = 1.0
)

// PIDState holds the error terms of the ROI loop.
type PIDState struct {
	ErrorP     float64 `json:"error_p"`
	ErrorI     float64 `json:"error_i"`
	ErrorD     float64 `json:"error_d"`
	LastErrorP float64 `json:"last_error_p"`
}

// PIDROIController paces with a PID loop on realized ROI (predicted value / spend) rather than
// curve inversion. Predicted value is the estimated value of won rounds scaled by a
// cross-iteration correction factor for CTR estimation bias.
type PIDROIController struct {
	cfg     PIDConfig
	tracker *BudgetTracker
	logger  *slog.Logger

	roiBid         float64
	estimatedValue float64
	predictionDiff float64
	state          PIDState

	valueHistory          []float64
	estimatedValueHistory []float64
}

// NewPIDROIController builds a PID ROI controller whose budget is drawn from src.
// It panics when cfg is invalid.
func NewPIDROIController(src rand.Source, cfg PIDConfig, opts ...Option) *PIDROIController {
	mustValidate("NewPIDROIController", cfg)
	o := buildOptions(opts)
	return &PIDROIController{
		cfg:            cfg,
		tracker:        NewBudgetTracker(src, cfg.BudgetLow, cfg.BudgetHigh),
		logger:         o.logger,
		roiBid:         defaultROIBid,
		predictionDiff: defaultPredictionDiff,
	}
}

// Bid implements Controller.
func (c *PIDROIController) Bid(value float64, _ Context, estimatedCTR float64) float64 {
	if c.tracker.Exhausted() {
		return 0
	}
	return value * estimatedCTR * c.roiBid
}

// Charge implements Controller. Only positive prices count toward spend and estimated value.
func (c *PIDROIController) Charge(price float64, round int, estimatedCTR float64, value float64) {
	if price > 0 {
		c.tracker.Charge(price)
		c.estimatedValue += estimatedCTR * value
	}
	if round%c.cfg.RoundsPerStep != 0 {
		return
	}
	c.tracker.CloseStep()

	spending := c.tracker.Spending()
	predicted := c.estimatedValue * c.predictionDiff
	if spending <= 0 || predicted <= 0 {
		c.roiBid = min(c.cfg.BidMax, c.roiBid+c.cfg.BidStep)
		return
	}

	roi := predicted / spending
	c.state.ErrorP = roi - roiTarget
	c.state.ErrorI += c.state.ErrorP
	c.state.ErrorD = c.state.ErrorP - c.state.LastErrorP
	c.state.LastErrorP = c.state.ErrorP

	control := c.cfg.Kp*c.state.ErrorP + c.cfg.Ki*c.state.ErrorI + c.cfg.Kd*c.state.ErrorD
	next := clamp(c.roiBid+control, c.roiBid-c.cfg.BidStep, c.roiBid+c.cfg.BidStep)
	c.roiBid = clamp(next, c.cfg.BidMin, c.cfg.BidMax)
}

// Update implements Controller. It resets the iteration counters and refreshes the CTR
// correction factor from the value windows.
func (c *PIDROIController) Update(result IterationResult) {
	c.tracker.ResetIteration()
	c.estimatedValue = 0
	if result.Rounds == nil {
		return
	}

	c.estimatedValueHistory = keepLast(append(c.estimatedValueHistory, WonEstimatedValue(result.Rounds)), c.cfg.Memory)
	c.valueHistory = keepLast(append(c.valueHistory, result.TotalValue), c.cfg.Memory)

	value := floats.Sum(c.valueHistory)
	estimated := floats.Sum(c.estimatedValueHistory)
	if value > minCorrectionMass && estimated > minCorrectionMass {
		c.predictionDiff = value / estimated
	} else {
		c.predictionDiff = defaultPredictionDiff
	}
	c.logger.Debug("pid iteration closed",
		slog.Int("iteration", result.Iteration),
		slog.Float64("roi_bid", c.roiBid),
		slog.Float64("prediction_diff", c.predictionDiff),
		slog.Float64("value", value),
		slog.Float64("estimated_value", estimated))
}

// Reset implements Controller.
func (c *PIDROIController) Reset() {
	c.tracker.Reset()
	c.roiBid = defaultROIBid
	c.estimatedValue = 0
	c.predictionDiff = defaultPredictionDiff
	c.state = PIDState{}
	c.valueHistory = nil
	c.estimatedValueHistory = nil
}

// ROIBid returns the current multiplier.
func (c *PIDROIController) ROIBid() float64 { return c.roiBid }

// Budget returns the per-iteration budget.
func (c *PIDROIController) Budget() float64 { return c.tracker.Budget() }

// Spending returns the iteration spend so far.
func (c *PIDROIController) Spending() float64 { return c.tracker.Spending() }

// State returns the PID error terms.
func (c *PIDROIController) State() PIDState { return c.state }

// PredictionDiff returns the current CTR correction factor.
func (c *PIDROIController) PredictionDiff() float64 { return c.predictionDiff }

func (c *PIDROIController) String() string {
	return fmt.Sprintf("pid(budget=%.2f roi_bid=%.4f diff=%.4f)", c.Budget(), c.roiBid, c.predictionDiff)
}
