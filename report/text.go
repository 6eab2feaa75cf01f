package report

import (
	"log/slog"

	"github.com/cloudx-io/openpacing/simulation"
)

// TextSink logs one line per bidder per iteration.
type TextSink struct {
	logger *slog.Logger
}

// NewTextSink logs through logger.
func NewTextSink(logger *slog.Logger) *TextSink {
	return &TextSink{logger: logger}
}

// WriteIteration implements simulation.Sink.
func (s *TextSink) WriteIteration(r simulation.IterationReport) error {
	for _, b := range r.Bidders {
		s.logger.Info("iteration",
			slog.Int("replica", r.Replica),
			slog.Int("iteration", r.Iteration),
			slog.String("bidder", b.Name),
			slog.String("kind", string(b.Kind)),
			slog.Int("wins", b.Wins),
			slog.Float64("spend", b.Spend),
			slog.Float64("budget", b.Budget),
			slog.Float64("value", b.RealizedValue),
			slog.Float64("utility", b.Utility),
			slog.Float64("roi_bid", b.ROIBid))
	}
	return nil
}
