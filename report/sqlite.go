package report

import (
	"database/sql"
	"errors"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/cloudx-io/openpacing/simulation"
)

const defaultBatchSize = 1000

const createTableSQL = `
CREATE TABLE IF NOT EXISTS bidder_iterations (
	run_id          TEXT    NOT NULL,
	scenario        TEXT    NOT NULL,
	replica         INTEGER NOT NULL,
	iteration       INTEGER NOT NULL,
	bidder          TEXT    NOT NULL,
	kind            TEXT    NOT NULL,
	budget          REAL    NOT NULL,
	spend           REAL    NOT NULL,
	realized_value  REAL    NOT NULL,
	estimated_value REAL    NOT NULL,
	utility         REAL    NOT NULL,
	wins            INTEGER NOT NULL,
	roi_bid         REAL    NOT NULL,
	PRIMARY KEY (run_id, replica, iteration, bidder)
)`

const insertSQL = `
INSERT INTO bidder_iterations (
	run_id, scenario, replica, iteration, bidder, kind,
	budget, spend, realized_value, estimated_value, utility, wins, roi_bid
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink stores one row per bidder per iteration in the bidder_iterations table.
// Rows are buffered and written in one transaction per batch; call Close to write the rest.
type SQLiteSink struct {
	db        *sql.DB
	insert    *sql.Stmt
	pending   []simulation.IterationReport
	rows      int
	batchSize int
}

// NewSQLiteSink opens (creating if needed) the database at path. batchSize is the number of rows
// buffered before a flush; non-positive values use a default.
func NewSQLiteSink(path string, batchSize int) (*SQLiteSink, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create table: %w", err), db.Close())
	}
	insert, err := db.Prepare(insertSQL)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to prepare insert: %w", err), db.Close())
	}

	return &SQLiteSink{db: db, insert: insert, batchSize: batchSize}, nil
}

// WriteIteration implements simulation.Sink.
func (s *SQLiteSink) WriteIteration(r simulation.IterationReport) error {
	s.pending = append(s.pending, r)
	s.rows += len(r.Bidders)
	if s.rows >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush writes all buffered rows in a single transaction.
func (s *SQLiteSink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.Stmt(s.insert)
	for _, r := range s.pending {
		for _, b := range r.Bidders {
			_, err := stmt.Exec(
				r.RunID,
				r.Scenario,
				r.Replica,
				r.Iteration,
				b.Name,
				string(b.Kind),
				b.Budget,
				b.Spend,
				b.RealizedValue,
				b.EstimatedValue,
				b.Utility,
				b.Wins,
				b.ROIBid,
			)
			if err != nil {
				return errors.Join(
					fmt.Errorf("failed to insert %s iteration %d: %w", b.Name, r.Iteration, err),
					tx.Rollback())
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.pending = nil
	s.rows = 0
	return nil
}

// Close flushes buffered rows and closes the database.
func (s *SQLiteSink) Close() error {
	flushErr := s.Flush()
	return errors.Join(flushErr, s.insert.Close(), s.db.Close())
}

// DB exposes the underlying handle for queries over stored runs.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}
