package main

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/openpacing/simulation"
)

const smallScenario = "../../simulation/testdata/small.yaml"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "interpolates", args: []string{"--target", "3", "0.5:1", "1:2", "1.5:4"}, want: "1.25"},
		{name: "no samples", args: []string{"--target", "3"}, want: "1"},
		{name: "below first sample", args: []string{"--target", "1", "2:4"}, want: "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"solve"}, tt.args...)...)
			assert.NoError(t, err)
			check.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestSolve_BadSample(t *testing.T) {
	_, _, err := execute(t, "solve", "--target", "1", "1-2")
	check.Error(t, err)

	_, _, err = execute(t, "solve", "--target", "1", "x:2")
	check.Error(t, err)
}

func TestRun_JSON(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "runs.jsonl")
	dbPath := filepath.Join(dir, "runs.sqlite3")

	_, stderr, err := execute(t, "run",
		"--scenario", smallScenario,
		"--format", "json",
		"--out", out,
		"--db", dbPath,
		"--replicas", "2",
		"--workers", "1")
	assert.NoError(t, err)
	check.True(t, strings.Contains(stderr, "starting run"))

	f, err := os.Open(out)
	assert.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	runIDs := map[string]bool{}
	for scanner.Scan() {
		var r simulation.IterationReport
		assert.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		check.Equal(t, 3, len(r.Bidders))
		runIDs[r.RunID] = true
		lines++
	}
	check.Equal(t, 8, lines)
	check.Equal(t, 1, len(runIDs))

	db, err := sql.Open("sqlite3", dbPath)
	assert.NoError(t, err)
	defer db.Close()
	var rows int
	assert.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bidder_iterations`).Scan(&rows))
	check.Equal(t, 24, rows)
}

func TestRun_TextToStdout(t *testing.T) {
	stdout, _, err := execute(t, "run", "--scenario", smallScenario, "--log-level", "warn")
	assert.NoError(t, err)
	check.True(t, strings.Contains(stdout, "bidder=impc"))
	check.Equal(t, 4*3, strings.Count(stdout, "iteration "))
}

func TestRun_DatabaseFromEnv(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.sqlite3")
	t.Setenv(envDB, dbPath)

	_, _, err := execute(t, "run", "--scenario", smallScenario, "--format", "cbor", "--out", filepath.Join(t.TempDir(), "r.cbor"))
	assert.NoError(t, err)

	_, err = os.Stat(dbPath)
	check.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	_, _, err := execute(t, "run")
	check.Error(t, err)

	_, _, err = execute(t, "run", "--scenario", smallScenario, "--format", "xml")
	check.Error(t, err)

	_, _, err = execute(t, "run", "--scenario", smallScenario, "--log-level", "loud")
	check.Error(t, err)

	_, _, err = execute(t, "run", "--scenario", "missing.yaml")
	check.Error(t, err)

	t.Setenv(envWorkers, "many")
	_, _, err = execute(t, "run", "--scenario", smallScenario)
	check.Error(t, err)
}

func TestPlainTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPlainTextHandler(&buf, slog.LevelInfo)).With(slog.String("run", "r1"))

	logger.Debug("hidden")
	logger.Info("shown", slog.Int("n", 2))

	check.Equal(t, "shown run=r1 n=2\n", buf.String())
}
