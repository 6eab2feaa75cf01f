package pacing

import (
	"math/rand/v2"
	"testing"

	"github.com/peterldowns/testy/check"
)

func testSPBConfig(budget float64) SPBConfig {
	pacingCfg := testPacingConfig()
	pacingCfg.BudgetLow = budget
	pacingCfg.BudgetHigh = budget
	return SPBConfig{
		PacingConfig:  pacingCfg,
		SPBMemory:     4,
		ExploreBidMax: 1.05,
	}
}

// iterationWithSpend builds an iteration whose won rounds spend exactly spend.
func iterationWithSpend(iteration int, spend, totalValue float64) IterationResult {
	return IterationResult{
		Iteration: iteration,
		Rounds: []RoundRecord{
			{Value: 1, Bid: 5, Price: spend / 2, EstimatedCTR: 0.1, Won: true},
			{Value: 1, Bid: 1, Price: 999, EstimatedCTR: 0.1, Won: false},
			{Value: 1, Bid: 5, Price: spend / 2, EstimatedCTR: 0.1, Won: true},
		},
		TotalValue: totalValue,
	}
}

func TestSPBController_ExploresUnderCapWithoutModel(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))

	c.Charge(0, 10, 0, 0)

	check.Equal(t, 1.05, c.ROIBid())
	check.Equal(t, -1.0, c.OptimalBudget())
}

func TestSPBController_NeedsTwoIterations(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	model := ResponseModel{A: 0.01, B: 0.2}

	c.Update(iterationWithSpend(0, 100, model.Value(100)))
	check.Equal(t, -1.0, c.OptimalBudget())

	c.Update(iterationWithSpend(1, 400, model.Value(400)))
	checkClose(t, 160, c.OptimalBudget(), 1e-3)
	checkClose(t, 0.01, c.Model().A, 1e-6)
	checkClose(t, 0.2, c.Model().B, 1e-4)
}

func TestSPBController_TrustsModelFromScatteredSpends(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	model := ResponseModel{A: 0.0184, B: 0.5055}

	for i, spend := range []float64{209.44, 64.55, 248.37, 78.79} {
		c.Update(iterationWithSpend(i, spend, model.Value(spend)))
	}

	checkClose(t, model.OptimalSpend(), c.OptimalBudget(), 1e-2)
}

func TestSPBController_OptimalBudgetCappedByBudget(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(100))
	model := ResponseModel{A: 0.01, B: 0.2}

	c.Update(iterationWithSpend(0, 100, model.Value(100)))
	c.Update(iterationWithSpend(1, 400, model.Value(400)))

	check.Equal(t, 100.0, c.OptimalBudget())
}

func TestSPBController_NegativeOptimalFallsBack(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	// B > 1 puts the optimal spend below zero
	model := ResponseModel{A: 0.01, B: 1.5}

	c.Update(iterationWithSpend(0, 100, model.Value(100)))
	c.Update(iterationWithSpend(1, 400, model.Value(400)))
	check.True(t, c.OptimalBudget() <= 0)

	c.Charge(0, 10, 0, 0)
	check.Equal(t, 1.05, c.ROIBid())
}

func TestSPBController_TrustedModelLiftsExploreCap(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	model := ResponseModel{A: 0.01, B: 0.2}
	c.Update(iterationWithSpend(0, 100, model.Value(100)))
	c.Update(iterationWithSpend(1, 400, model.Value(400)))

	c.Charge(0, 10, 0, 0)
	checkClose(t, 1.1, c.ROIBid(), 1e-12)

	// target is 160 * 10/100 = 16 per step: history [(1,0),(1.1,8)] extrapolates to 2.2
	c.Charge(8, 20, 0, 0)
	checkClose(t, 1.2, c.ROIBid(), 1e-12)
}

func TestSPBController_IgnoresIterationsWithoutRounds(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	model := ResponseModel{A: 0.01, B: 0.2}
	c.Update(iterationWithSpend(0, 100, model.Value(100)))

	c.Update(IterationResult{Iteration: 1, TotalValue: 1e6})
	c.Update(IterationResult{Iteration: 2, TotalValue: 1e6})

	check.Equal(t, -1.0, c.OptimalBudget())
}

func TestSPBController_UpdateResetsSpending(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(10))
	c.Charge(10, 1, 0, 0)
	check.Equal(t, 0.0, c.Bid(1, nil, 1))

	c.Update(IterationResult{Iteration: 0})

	check.Equal(t, 0.0, c.Spending())
	check.Equal(t, 1.0, c.Bid(1, nil, 1))
}

func TestSPBController_OptimalBudgetNeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	c := NewSPBController(rand.NewPCG(5, 6), SPBConfig{
		PacingConfig: PacingConfig{
			BudgetConfig:  BudgetConfig{BudgetLow: 50, BudgetHigh: 150, RoundsPerIter: 100},
			RoundsPerStep: 10,
			BidStep:       0.1,
			Memory:        5,
		},
		SPBMemory:     6,
		ExploreBidMax: 2,
	})

	for iteration := 0; iteration < 40; iteration++ {
		spend := 20 + rng.Float64()*200
		value := ResponseModel{A: 0.005 + rng.Float64()*0.05, B: rng.Float64()}.Value(spend)
		c.Update(iterationWithSpend(iteration, spend, value))
		if c.OptimalBudget() > 0 {
			check.True(t, c.OptimalBudget() <= c.Budget())
		}
	}
}

func TestSPBController_Reset(t *testing.T) {
	c := NewSPBController(nil, testSPBConfig(1000))
	model := ResponseModel{A: 0.01, B: 0.2}
	c.Update(iterationWithSpend(0, 100, model.Value(100)))
	c.Update(iterationWithSpend(1, 400, model.Value(400)))
	c.Charge(3, 10, 0, 0)

	c.Reset()

	check.Equal(t, -1.0, c.OptimalBudget())
	check.Equal(t, 1.0, c.ROIBid())
	check.Equal(t, 0.0, c.Spending())

	// a single iteration after reset is not enough for a model
	c.Update(iterationWithSpend(2, 100, model.Value(100)))
	check.Equal(t, -1.0, c.OptimalBudget())
}
