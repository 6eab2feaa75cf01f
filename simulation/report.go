package simulation

// BidderReport is one bidder's outcome over one iteration.
type BidderReport struct {
	Name string         `json:"name"`
	Kind ControllerKind `json:"kind"`

	// Budget is zero for unconstrained bidders
	Budget         float64 `json:"budget"`
	Spend          float64 `json:"spend"`
	RealizedValue  float64 `json:"realized_value"`
	EstimatedValue float64 `json:"estimated_value"`
	Utility        float64 `json:"utility"`
	Wins           int     `json:"wins"`

	// ROIBid is the multiplier in force at the end of the iteration (1 for truthful bidders)
	ROIBid float64 `json:"roi_bid"`
}

// IterationReport is emitted once per simulated iteration.
type IterationReport struct {
	RunID     string         `json:"run_id"`
	Scenario  string         `json:"scenario"`
	Replica   int            `json:"replica"`
	Iteration int            `json:"iteration"`
	Rounds    int            `json:"rounds"`
	Bidders   []BidderReport `json:"bidders"`
}

// Sink receives iteration reports as a simulation progresses.
type Sink interface {
	WriteIteration(report IterationReport) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(report IterationReport) error

// WriteIteration implements Sink.
func (f SinkFunc) WriteIteration(report IterationReport) error {
	return f(report)
}

// Summary totals each bidder's reports over a whole run.
type Summary struct {
	RunID   string         `json:"run_id"`
	Replica int            `json:"replica"`
	Bidders []BidderReport `json:"bidders"`
}

func (s *Summary) add(report IterationReport) {
	if s.Bidders == nil {
		s.Bidders = make([]BidderReport, len(report.Bidders))
		for i, b := range report.Bidders {
			s.Bidders[i] = BidderReport{Name: b.Name, Kind: b.Kind}
		}
	}
	for i, b := range report.Bidders {
		total := &s.Bidders[i]
		total.Budget += b.Budget
		total.Spend += b.Spend
		total.RealizedValue += b.RealizedValue
		total.EstimatedValue += b.EstimatedValue
		total.Utility += b.Utility
		total.Wins += b.Wins
		total.ROIBid = b.ROIBid
	}
}
