package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cloudx-io/openpacing/core"
	"github.com/cloudx-io/openpacing/pacing"
)

// Simulator plays a Scenario: each round every bidder bids on a fresh context, a second-price
// auction picks the winner, and every controller is charged (zero when it lost).
type Simulator struct {
	scenario Scenario
	runID    string
	replica  int
	logger   *slog.Logger
	rng      *rand.Rand
	bidders  []*bidderState
}

type bidderState struct {
	spec       BidderSpec
	controller pacing.Controller
	ctrWeights []float64

	rounds         []pacing.RoundRecord
	realizedValue  float64
	estimatedValue float64
	spend          float64
	wins           int
}

// roundDraw is what one bidder sees and does in one round.
type roundDraw struct {
	value        float64
	trueCTR      float64
	estimatedCTR float64
	bid          float64
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger passed to the simulator and its controllers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRunID tags every report with runID instead of a fresh UUID.
func WithRunID(runID string) Option {
	return func(s *Simulator) {
		s.runID = runID
	}
}

// WithReplica sets the replica index; the random seed is offset by it.
func WithReplica(replica int) Option {
	return func(s *Simulator) {
		s.replica = replica
	}
}

// New builds a simulator and all of its controllers. The scenario seed fully determines the
// run: budgets, CTR models, contexts, values, clicks and auction tie-breaks.
func New(scenario Scenario, opts ...Option) (*Simulator, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		scenario: scenario,
		runID:    uuid.NewString(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(scenario.Seed, uint64(s.replica)))
	s.logger = s.logger.With(slog.String("run_id", s.runID), slog.Int("replica", s.replica))

	weights := distuv.Normal{Mu: 0, Sigma: 1 / math.Sqrt(float64(max(scenario.NumFeatures, 1))), Src: s.rng}
	for _, spec := range scenario.Bidders {
		controller, err := NewController(spec, scenario.RoundsPerIter, s.rng, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build bidder %q: %w", spec.Name, err)
		}
		b := &bidderState{
			spec:       spec,
			controller: controller,
			ctrWeights: make([]float64, scenario.NumFeatures),
		}
		for i := range b.ctrWeights {
			b.ctrWeights[i] = weights.Rand()
		}
		s.bidders = append(s.bidders, b)
	}
	return s, nil
}

// RunID returns the identifier stamped on every report.
func (s *Simulator) RunID() string {
	return s.runID
}

// Run plays every iteration, sending one report per iteration to sink. It stops early when ctx
// is done or sink fails.
func (s *Simulator) Run(ctx context.Context, sink Sink) (Summary, error) {
	summary := Summary{RunID: s.runID, Replica: s.replica}
	s.logger.Info("simulation started",
		slog.String("scenario", s.scenario.Name),
		slog.Int("bidders", len(s.bidders)),
		slog.Int("iterations", s.scenario.Iterations))

	for iteration := 0; iteration < s.scenario.Iterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		for round := 1; round <= s.scenario.RoundsPerIter; round++ {
			s.playRound(round)
		}

		report := s.closeIteration(iteration)
		summary.add(report)
		if sink != nil {
			if err := sink.WriteIteration(report); err != nil {
				return summary, fmt.Errorf("failed to write iteration %d: %w", iteration, err)
			}
		}
	}

	s.logger.Info("simulation finished", slog.String("scenario", s.scenario.Name))
	return summary, nil
}

func (s *Simulator) playRound(round int) {
	features := make(pacing.Context, s.scenario.NumFeatures)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: s.rng}
	for i := range features {
		features[i] = normal.Rand()
	}

	draws := make([]roundDraw, len(s.bidders))
	bids := make([]core.CoreBid, len(s.bidders))
	for i, b := range s.bidders {
		d := s.draw(b, features)
		d.bid = b.controller.Bid(d.value, features, d.estimatedCTR)
		draws[i] = d
		bids[i] = core.CoreBid{ID: fmt.Sprintf("%s-%d", b.spec.Name, round), Bidder: b.spec.Name, Price: d.bid}
	}

	result := core.RunSecondPriceAuction(bids, s.scenario.AdjustmentFactors, s.scenario.ReservePrice, s.rng)

	winner := -1
	if result.Winner != nil {
		for i, b := range s.bidders {
			if b.spec.Name == result.Winner.Bidder {
				winner = i
				break
			}
		}
	}

	for i, b := range s.bidders {
		d := draws[i]
		won := i == winner
		price := 0.0
		if won {
			price = result.ClearingPrice
			clicked := distuv.Bernoulli{P: d.trueCTR, Src: s.rng}.Rand() == 1
			if clicked {
				b.realizedValue += d.value
			}
			b.estimatedValue += d.estimatedCTR * d.value
			b.spend += price
			b.wins++
		}

		b.controller.Charge(price, round, d.estimatedCTR, d.value)
		b.rounds = append(b.rounds, pacing.RoundRecord{
			Context:      features,
			Value:        d.value,
			Bid:          d.bid,
			Price:        price,
			EstimatedCTR: d.estimatedCTR,
			Won:          won,
		})
	}
}

// draw samples a bidder's value and CTR for one round.
func (s *Simulator) draw(b *bidderState, features pacing.Context) roundDraw {
	value := b.spec.ValueLow
	if b.spec.ValueHigh > b.spec.ValueLow {
		value = distuv.Uniform{Min: b.spec.ValueLow, Max: b.spec.ValueHigh, Src: s.rng}.Rand()
	}

	trueCTR := sigmoid(floats.Dot(b.ctrWeights, features) + b.spec.CTRBias)
	estimatedCTR := trueCTR
	if b.spec.CTRNoise > 0 {
		estimatedCTR = min(1, trueCTR*distuv.LogNormal{Mu: 0, Sigma: b.spec.CTRNoise, Src: s.rng}.Rand())
	}
	return roundDraw{value: value, trueCTR: trueCTR, estimatedCTR: estimatedCTR}
}

func (s *Simulator) closeIteration(iteration int) IterationReport {
	report := IterationReport{
		RunID:     s.runID,
		Scenario:  s.scenario.Name,
		Replica:   s.replica,
		Iteration: iteration,
		Rounds:    s.scenario.RoundsPerIter,
		Bidders:   make([]BidderReport, len(s.bidders)),
	}

	for i, b := range s.bidders {
		br := BidderReport{
			Name:           b.spec.Name,
			Kind:           b.spec.Kind,
			Spend:          b.spend,
			RealizedValue:  b.realizedValue,
			EstimatedValue: b.estimatedValue,
			Utility:        b.realizedValue - b.spend,
			Wins:           b.wins,
			ROIBid:         1,
		}
		if budgeted, ok := b.controller.(pacing.Budgeted); ok {
			br.Budget = budgeted.Budget()
		}

		b.controller.Update(pacing.IterationResult{
			Iteration:  iteration,
			Rounds:     b.rounds,
			TotalValue: b.realizedValue,
			Plot:       pacing.PlotOptions{Name: b.spec.Name},
		})
		if r, ok := b.controller.(pacing.ROIBidder); ok {
			br.ROIBid = r.ROIBid()
		}
		report.Bidders[i] = br

		s.logger.Debug("bidder iteration",
			slog.Int("iteration", iteration),
			slog.String("bidder", br.Name),
			slog.Float64("spend", br.Spend),
			slog.Float64("budget", br.Budget),
			slog.Float64("value", br.RealizedValue),
			slog.Float64("roi_bid", br.ROIBid))

		b.rounds = nil
		b.realizedValue = 0
		b.estimatedValue = 0
		b.spend = 0
		b.wins = 0
	}
	return report
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
