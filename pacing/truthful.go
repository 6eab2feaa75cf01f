package pacing

import "math/rand/v2"

// TruthfulController bids value × estimated CTR every round and keeps no state.
type TruthfulController struct{}

// NewTruthfulController returns the unconstrained baseline bidder.
func NewTruthfulController() *TruthfulController {
	return &TruthfulController{}
}

// Bid implements Controller.
func (*TruthfulController) Bid(value float64, _ Context, estimatedCTR float64) float64 {
	return value * estimatedCTR
}

// Charge implements Controller.
func (*TruthfulController) Charge(float64, int, float64, float64) {}

// Update implements Controller.
func (*TruthfulController) Update(IterationResult) {}

// Reset implements Controller.
func (*TruthfulController) Reset() {}

// BudgetOnlyController bids truthfully until the iteration budget is spent.
type BudgetOnlyController struct {
	tracker *BudgetTracker
}

// NewBudgetOnlyController draws the budget from src. It panics when cfg is invalid.
func NewBudgetOnlyController(src rand.Source, cfg BudgetConfig) *BudgetOnlyController {
	mustValidate("NewBudgetOnlyController", cfg)
	return &BudgetOnlyController{tracker: NewBudgetTracker(src, cfg.BudgetLow, cfg.BudgetHigh)}
}

// Bid implements Controller.
func (c *BudgetOnlyController) Bid(value float64, _ Context, estimatedCTR float64) float64 {
	if c.tracker.Exhausted() {
		return 0
	}
	return value * estimatedCTR
}

// Charge implements Controller.
func (c *BudgetOnlyController) Charge(price float64, _ int, _ float64, _ float64) {
	c.tracker.Charge(price)
}

// Update implements Controller.
func (c *BudgetOnlyController) Update(IterationResult) {
	c.tracker.ResetIteration()
}

// Reset implements Controller.
func (c *BudgetOnlyController) Reset() {
	c.tracker.Reset()
}

// Budget returns the per-iteration budget.
func (c *BudgetOnlyController) Budget() float64 { return c.tracker.Budget() }

// Spending returns the iteration spend so far.
func (c *BudgetOnlyController) Spending() float64 { return c.tracker.Spending() }
