package report

import "github.com/cloudx-io/openpacing/simulation"

type multiSink []simulation.Sink

// Multi fans every report out to each sink in order, stopping at the first error.
func Multi(sinks ...simulation.Sink) simulation.Sink {
	return multiSink(sinks)
}

func (m multiSink) WriteIteration(r simulation.IterationReport) error {
	for _, s := range m {
		if err := s.WriteIteration(r); err != nil {
			return err
		}
	}
	return nil
}
