package pacing

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// noStepSpend is the step spend under which a step counts as having won nothing.
const noStepSpend = 1e-6

// BudgetTracker keeps per-iteration and per-step spend against a budget drawn once at
// construction. Spend is accumulated in decimal so long iterations do not drift.
type BudgetTracker struct {
	budget       decimal.Decimal
	spending     decimal.Decimal
	stepSpending decimal.Decimal
	budgetFloat  float64
}

// NewBudgetTracker draws the budget uniformly from [low, high) using src.
// src is consulted exactly once and not retained.
func NewBudgetTracker(src rand.Source, low, high float64) *BudgetTracker {
	if high < low {
		panic(fmt.Sprintf("NewBudgetTracker: empty budget range [%g, %g)", low, high))
	}
	budget := low
	if high > low {
		budget = distuv.Uniform{Min: low, Max: high, Src: src}.Rand()
	}
	return newFixedBudgetTracker(budget)
}

func newFixedBudgetTracker(budget float64) *BudgetTracker {
	return &BudgetTracker{
		budget:      decimal.NewFromFloat(budget),
		budgetFloat: budget,
	}
}

// Budget returns the per-iteration budget.
func (t *BudgetTracker) Budget() float64 {
	return t.budgetFloat
}

// Spending returns what has been paid so far this iteration.
func (t *BudgetTracker) Spending() float64 {
	return t.spending.InexactFloat64()
}

// StepSpending returns what has been paid so far this step.
func (t *BudgetTracker) StepSpending() float64 {
	return t.stepSpending.InexactFloat64()
}

// Exhausted reports whether iteration spend has reached the budget.
func (t *BudgetTracker) Exhausted() bool {
	return t.spending.GreaterThanOrEqual(t.budget)
}

// Charge adds price to both the iteration and step spend.
func (t *BudgetTracker) Charge(price float64) {
	p := decimal.NewFromFloat(price)
	t.spending = t.spending.Add(p)
	t.stepSpending = t.stepSpending.Add(p)
}

// CloseStep returns the step spend and starts a new step.
func (t *BudgetTracker) CloseStep() float64 {
	spent := t.StepSpending()
	t.stepSpending = decimal.Zero
	return spent
}

// ResetIteration zeroes the iteration spend at an iteration boundary.
func (t *BudgetTracker) ResetIteration() {
	t.spending = decimal.Zero
}

// Reset zeroes every counter. The budget is kept.
func (t *BudgetTracker) Reset() {
	t.spending = decimal.Zero
	t.stepSpending = decimal.Zero
}
