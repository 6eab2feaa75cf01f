package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/openpacing/simulation"
)

func sampleReport(iteration int) simulation.IterationReport {
	return simulation.IterationReport{
		RunID:     "run-1",
		Scenario:  "unit",
		Replica:   0,
		Iteration: iteration,
		Rounds:    100,
		Bidders: []simulation.BidderReport{
			{Name: "a", Kind: simulation.KindTruthful, Spend: 1.5, RealizedValue: 4, Utility: 2.5, Wins: 30, ROIBid: 1},
			{Name: "b", Kind: simulation.KindIMPC, Budget: 2, Spend: 1.9, RealizedValue: 3, Utility: 1.1, Wins: 20, ROIBid: 0.8},
		},
	}
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTextSink(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.NoError(t, sink.WriteIteration(sampleReport(3)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	check.Equal(t, 2, len(lines))
	check.True(t, strings.Contains(lines[0], "bidder=a"))
	check.True(t, strings.Contains(lines[1], "bidder=b"))
	check.True(t, strings.Contains(lines[1], "kind=impc"))
	check.True(t, strings.Contains(lines[1], "iteration=3"))
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONSink(&buf)
	assert.NoError(t, sink.WriteIteration(sampleReport(0)))
	assert.NoError(t, sink.WriteIteration(sampleReport(1)))

	scanner := bufio.NewScanner(&buf)
	var got []simulation.IterationReport
	for scanner.Scan() {
		var r simulation.IterationReport
		assert.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		got = append(got, r)
	}
	check.Equal(t, []simulation.IterationReport{sampleReport(0), sampleReport(1)}, got)
}

func TestJSONSink_FieldNames(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, NewJSONSink(&buf).WriteIteration(sampleReport(0)))

	var raw map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	check.Equal(t, "run-1", raw["run_id"])
	bidders := raw["bidders"].([]any)
	first := bidders[0].(map[string]any)
	check.Equal(t, 1.0, first["roi_bid"])
	check.Equal(t, 4.0, first["realized_value"])
}

func TestCBORSink(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewCBORSink(&buf)
	assert.NoError(t, err)
	assert.NoError(t, sink.WriteIteration(sampleReport(0)))
	assert.NoError(t, sink.WriteIteration(sampleReport(1)))

	dec := cbor.NewDecoder(&buf)
	for i := range 2 {
		var r simulation.IterationReport
		assert.NoError(t, dec.Decode(&r))
		check.Equal(t, sampleReport(i), r)
	}
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite3")
	sink, err := NewSQLiteSink(path, 3)
	assert.NoError(t, err)

	// the second report crosses the batch size and is flushed immediately
	assert.NoError(t, sink.WriteIteration(sampleReport(0)))
	assert.NoError(t, sink.WriteIteration(sampleReport(1)))
	check.Equal(t, 4, countRows(t, sink))

	assert.NoError(t, sink.WriteIteration(sampleReport(2)))
	check.Equal(t, 4, countRows(t, sink))

	var spend, roiBid float64
	var wins int
	err = sink.DB().QueryRow(
		`SELECT spend, roi_bid, wins FROM bidder_iterations WHERE iteration = 1 AND bidder = 'b'`,
	).Scan(&spend, &roiBid, &wins)
	assert.NoError(t, err)
	check.Equal(t, 1.9, spend)
	check.Equal(t, 0.8, roiBid)
	check.Equal(t, 20, wins)

	assert.NoError(t, sink.Close())

	reopened, err := NewSQLiteSink(path, 0)
	assert.NoError(t, err)
	check.Equal(t, 6, countRows(t, reopened))
	assert.NoError(t, reopened.Close())
}

func TestSQLiteSink_DuplicateRowFails(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "dup.sqlite3"), 1)
	assert.NoError(t, err)
	defer sink.Close()

	assert.NoError(t, sink.WriteIteration(sampleReport(0)))
	check.Error(t, sink.WriteIteration(sampleReport(0)))
}

func countRows(t *testing.T, sink *SQLiteSink) int {
	t.Helper()
	var n int
	assert.NoError(t, sink.DB().QueryRow(`SELECT COUNT(*) FROM bidder_iterations`).Scan(&n))
	return n
}

func TestMulti(t *testing.T) {
	var first, second bytes.Buffer
	sink := Multi(NewJSONSink(&first), NewJSONSink(&second))
	assert.NoError(t, sink.WriteIteration(sampleReport(0)))

	check.True(t, first.Len() > 0)
	check.Equal(t, first.String(), second.String())
}

func TestMulti_StopsAtFirstError(t *testing.T) {
	errFail := errors.New("fail")
	var buf bytes.Buffer
	sink := Multi(
		simulation.SinkFunc(func(simulation.IterationReport) error { return errFail }),
		NewJSONSink(&buf),
	)
	check.True(t, errors.Is(sink.WriteIteration(sampleReport(0)), errFail))
	check.Equal(t, 0, buf.Len())
}
