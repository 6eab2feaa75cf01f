package pacing

// Context is the opaque per-round feature vector handed to Bid. Controllers never inspect it.
type Context []float64

// Controller is the bidding capability every pacing variant implements.
//
// The caller follows a fixed per-round protocol: Bid for every participant, then Charge for the
// round's outcome, and a single Update at the end of each iteration.
type Controller interface {
	// Bid returns the bid price for one round. It has no side effects.
	Bid(value float64, ctx Context, estimatedCTR float64) float64
	// Charge records the price paid in round (1-based within the iteration); price is 0 when the
	// round was lost.
	Charge(price float64, round int, estimatedCTR float64, value float64)
	// Update closes an iteration.
	Update(result IterationResult)
	// Reset restores construction-time state without redrawing the budget.
	Reset()
}

// ROIBidder is implemented by controllers that scale value × CTR by an adaptive multiplier.
type ROIBidder interface {
	ROIBid() float64
}

// Budgeted is implemented by controllers that pace against a per-iteration budget.
type Budgeted interface {
	Budget() float64
	Spending() float64
}

// RoundRecord is one round of an iteration from a single bidder's point of view.
type RoundRecord struct {
	Context      Context `json:"context,omitempty"`
	Value        float64 `json:"value"`
	Bid          float64 `json:"bid"`
	Price        float64 `json:"price"`
	EstimatedCTR float64 `json:"estimated_ctr"`
	Won          bool    `json:"won"`
}

// PlotOptions are forwarded to reporting and never affect control state.
type PlotOptions struct {
	Enabled  bool       `json:"enabled"`
	FigSize  [2]float64 `json:"fig_size"`
	FontSize int        `json:"font_size"`
	Name     string     `json:"name"`
}

// IterationResult is everything a controller learns at an iteration boundary.
type IterationResult struct {
	// Iteration is the zero-based iteration index
	Iteration int

	// Rounds holds the per-round records; nil means no round data is available and
	// cross-iteration histories are left untouched
	Rounds []RoundRecord

	// TotalValue is the realized value acquired over the iteration
	TotalValue float64

	Plot PlotOptions
}

// WonRounds returns the records of rounds that were won.
func WonRounds(rounds []RoundRecord) []RoundRecord {
	won := make([]RoundRecord, 0, len(rounds))
	for _, r := range rounds {
		if r.Won {
			won = append(won, r)
		}
	}
	return won
}

// WonSpend sums the prices paid over won rounds.
func WonSpend(rounds []RoundRecord) float64 {
	var total float64
	for _, r := range WonRounds(rounds) {
		total += r.Price
	}
	return total
}

// WonEstimatedValue sums estimated CTR × value over won rounds.
func WonEstimatedValue(rounds []RoundRecord) float64 {
	var total float64
	for _, r := range WonRounds(rounds) {
		total += r.EstimatedCTR * r.Value
	}
	return total
}

// keepLast trims s to its most recent n entries. n <= 0 keeps everything.
func keepLast[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return append(s[:0:0], s[len(s)-n:]...)
}

func clamp(x, lo, hi float64) float64 {
	return min(max(x, lo), hi)
}

var (
	_ Controller = (*TruthfulController)(nil)
	_ Controller = (*BudgetOnlyController)(nil)
	_ Controller = (*IMPCController)(nil)
	_ Controller = (*SPBController)(nil)
	_ Controller = (*PIDROIController)(nil)
)
