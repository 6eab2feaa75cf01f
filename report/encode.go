package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/openpacing/simulation"
)

// JSONSink writes one JSON object per line.
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink writes JSON lines to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// WriteIteration implements simulation.Sink.
func (s *JSONSink) WriteIteration(r simulation.IterationReport) error {
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// CBORSink writes a CBOR sequence, one data item per report. Field names follow the JSON tags.
type CBORSink struct {
	enc *cbor.Encoder
}

// NewCBORSink writes a CBOR sequence to w.
func NewCBORSink(w io.Writer) (*CBORSink, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CBORSink{enc: mode.NewEncoder(w)}, nil
}

// WriteIteration implements simulation.Sink.
func (s *CBORSink) WriteIteration(r simulation.IterationReport) error {
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
