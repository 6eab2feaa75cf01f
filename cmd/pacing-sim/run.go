package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudx-io/openpacing/report"
	"github.com/cloudx-io/openpacing/simulation"
)

type runOptions struct {
	scenario string
	format   string
	out      string
	db       string
	replicas int
	workers  int
	logLevel string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and report every iteration",
		Example: `  pacing-sim run --scenario scenarios/baseline.yaml
  pacing-sim run --scenario scenarios/baseline.yaml --format json --out runs.jsonl --replicas 8
  PACING_DB=runs.sqlite3 pacing-sim run --scenario scenarios/baseline.yaml --format cbor --out runs.cbor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolveEnv(cmd); err != nil {
				return err
			}
			return runScenario(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.scenario, "scenario", "s", "", "scenario YAML file")
	flags.StringVarP(&opts.format, "format", "f", "text", "report format: text, json or cbor")
	flags.StringVarP(&opts.out, "out", "o", "-", "report destination file, - for stdout")
	flags.StringVar(&opts.db, "db", "", "also store reports in this SQLite database (env "+envDB+")")
	flags.IntVarP(&opts.replicas, "replicas", "n", 1, "independent replicas to run")
	flags.IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "replicas run at the same time (env "+envWorkers+")")
	flags.StringVar(&opts.logLevel, "log-level", "info", "diagnostic log level (env "+envLogLevel+")")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

// resolveEnv fills flags the user did not set from the environment.
func (o *runOptions) resolveEnv(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if !flags.Changed("db") {
		o.db = envString(envDB, o.db)
	}
	if !flags.Changed("log-level") {
		o.logLevel = envString(envLogLevel, o.logLevel)
	}
	if !flags.Changed("workers") {
		workers, err := envInt(envWorkers, o.workers)
		if err != nil {
			return err
		}
		o.workers = workers
	}
	return nil
}

func runScenario(cmd *cobra.Command, opts *runOptions) (err error) {
	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(newPlainTextHandler(cmd.ErrOrStderr(), level))

	scenario, err := simulation.LoadScenario(opts.scenario)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.out != "" && opts.out != "-" {
		f, createErr := os.Create(opts.out)
		if createErr != nil {
			return fmt.Errorf("failed to create output: %w", createErr)
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		out = f
	}

	sink, err := newFormatSink(opts.format, out)
	if err != nil {
		return err
	}
	if opts.db != "" {
		db, dbErr := report.NewSQLiteSink(opts.db, 0)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			err = errors.Join(err, db.Close())
		}()
		sink = report.Multi(sink, db)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runID := uuid.NewString()
	logger.Info("starting run",
		slog.String("run_id", runID),
		slog.String("scenario", scenario.Name),
		slog.Int("replicas", opts.replicas),
		slog.Int("workers", opts.workers))

	summaries, err := simulation.RunReplicas(ctx, scenario, opts.replicas, opts.workers, sink,
		simulation.WithRunID(runID),
		simulation.WithLogger(logger))
	if err != nil {
		return err
	}

	for _, s := range summaries {
		for _, b := range s.Bidders {
			logger.Info("total",
				slog.Int("replica", s.Replica),
				slog.String("bidder", b.Name),
				slog.Int("wins", b.Wins),
				slog.Float64("spend", b.Spend),
				slog.Float64("value", b.RealizedValue),
				slog.Float64("utility", b.Utility))
		}
	}
	return nil
}

func newFormatSink(format string, out io.Writer) (simulation.Sink, error) {
	switch format {
	case "text":
		return report.NewTextSink(slog.New(newPlainTextHandler(out, slog.LevelInfo))), nil
	case "json":
		return report.NewJSONSink(out), nil
	case "cbor":
		return report.NewCBORSink(out)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
