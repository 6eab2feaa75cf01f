package simulation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// lockedSink serializes writes from concurrent replicas.
type lockedSink struct {
	mu   sync.Mutex
	sink Sink
}

func (l *lockedSink) WriteIteration(report IterationReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.WriteIteration(report)
}

// RunReplicas runs n independent replicas of the scenario with at most workers running at a
// time. Replica i draws from its own random stream, so results do not depend on scheduling.
// All replicas share one run ID unless opts set another. The first failure cancels the remaining
// replicas. Summaries are returned in replica order.
func RunReplicas(ctx context.Context, scenario Scenario, n, workers int, sink Sink, opts ...Option) ([]Summary, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: replicas must be positive, got %d", ErrInvalidScenario, n)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	var shared Sink
	if sink != nil {
		shared = &lockedSink{sink: sink}
	}

	base := append([]Option{WithRunID(uuid.NewString())}, opts...)
	summaries := make([]Summary, n)
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range n {
		g.Go(func() error {
			sim, err := New(scenario, append(base[:len(base):len(base)], WithReplica(i))...)
			if err != nil {
				return err
			}
			summary, err := sim.Run(ctx, shared)
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
