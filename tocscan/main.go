package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tocscan/config"
	"tocscan/pgstore"
	"tocscan/report"
	"tocscan/selection"
	"tocscan/toc"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tocscan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML config file (optional)")
	stateCode := fs.String("state", "", "2-letter state code; keeps files whose location contains <STATE>_ (default NY)")
	format := fs.String("format", "", "Output format: text, json or parquet (default text)")
	outPath := fs.String("out", "", "Output file (default stdout; required for parquet)")
	pgURL := fs.String("pg", "", "PostgreSQL connection string to store the run (optional)")
	initSchema := fs.Bool("init", false, "Create the PostgreSQL schema before storing")
	showRun := fs.String("show", "", "Write the report of a run stored in PostgreSQL (by run id) instead of scanning")
	bufferSize := fs.Int("buffer", 0, "Read buffer size in MB (default 64)")
	verbose := fs.Bool("v", false, "Verbose output with progress updates")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `tocscan - Find a representative plan for each regional in-network file in a TOC

Streams the reporting_structure array of a price transparency Table of Contents
file, keeps in-network files whose location contains the regional marker and
prints one line per file, sorted by location:

  <example EIN> <ppo found | no ppo found> <location>

Usage:
  tocscan [options] <toc.json[.gz|.zst|.xz|.lz4]>
  tocscan -pg <url> -show <run-id> [options]

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	switch {
	case *showRun != "" && fs.NArg() != 0:
		fmt.Fprintln(stderr, "Error: -show does not take an input file")
		return 2
	case *showRun == "" && fs.NArg() != 1:
		fmt.Fprintln(stderr, "Error: exactly one input file is required")
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	if *stateCode != "" {
		if len(*stateCode) != 2 {
			fmt.Fprintln(stderr, "Error: -state must be a 2-letter state code (e.g., NY, CA, TX)")
			return 2
		}
		cfg.Filter.LocationSubstring = selection.StateFilter(*stateCode).Substring
	}
	if *format != "" {
		cfg.Output.Format = strings.ToLower(*format)
	}
	if *outPath != "" {
		cfg.Output.Path = *outPath
	}
	if *pgURL != "" {
		cfg.Postgres.URL = *pgURL
	}
	if *initSchema {
		cfg.Postgres.InitSchema = true
	}
	if *bufferSize != 0 {
		cfg.Input.BufferMB = *bufferSize
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var runID uuid.UUID
	if *showRun != "" {
		var err error
		if runID, err = uuid.Parse(*showRun); err != nil {
			fmt.Fprintf(stderr, "Error: invalid run id %q: %v\n", *showRun, err)
			return 2
		}
		if cfg.Postgres.URL == "" {
			fmt.Fprintln(stderr, "Error: -show requires -pg or postgres.url in the config file")
			return 2
		}
	}

	logger, err := newLogger(stderr, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer logger.Sync()

	if *showRun != "" {
		if err := show(ctx, logger, cfg, runID, stdout); err != nil {
			logger.Error("Show failed", zap.Error(err))
			return 1
		}
		return 0
	}

	if err := scan(ctx, logger, cfg, fs.Arg(0), stdout); err != nil {
		logger.Error("Scan failed", zap.Error(err))
		return 1
	}
	return 0
}

// scan streams inputPath, aggregates matching files and writes the report.
// Nothing is written unless the whole input parses.
func scan(ctx context.Context, logger *zap.Logger, cfg config.Config, inputPath string, stdout io.Writer) error {
	startTime := time.Now()
	filter := cfg.SelectionFilter()

	logger.Info("Starting TOC scan",
		zap.String("input", inputPath),
		zap.String("filter", filter.Substring),
		zap.String("format", cfg.Output.Format))
	if c := toc.Compression(inputPath); c != "" {
		logger.Debug("Detected compressed input", zap.String("compression", c))
	}

	in, err := toc.Open(inputPath, cfg.Input.BufferMB*1024*1024)
	if err != nil {
		return err
	}
	defer in.Close()

	parser := toc.NewStreamParser(in)
	agg := selection.NewAggregator(
		selection.WithFilter(filter),
		selection.WithLogger(logger),
		selection.WithProgressEvery(cfg.ProgressEvery),
	)

	entries, err := selection.Run(parser, agg)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	parsed := parser.Stats()
	stats := agg.Stats()
	logger.Info("Parsing complete",
		zap.Int64("structures", parsed.Structures),
		zap.Int64("plans", parsed.Plans),
		zap.Int64("files", parsed.Files),
		zap.Int64("matched_files", stats.MatchedFiles),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int("locations", len(entries)),
		zap.Duration("elapsed", time.Since(startTime).Round(time.Millisecond)))

	if err := writeReport(cfg.Output, parser.Metadata(), entries, stdout); err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		run := pgstore.NewRun(inputPath, filter, parser.Metadata(), stats, startTime)
		if err := saveRun(ctx, logger, cfg.Postgres, run, entries); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(out config.Output, meta toc.Metadata, entries []selection.Entry, stdout io.Writer) (err error) {
	if out.Format == config.FormatParquet {
		pw, err := report.NewParquetWriter(out.Path, meta)
		if err != nil {
			return err
		}
		if err := pw.WriteAll(entries); err != nil {
			pw.Close()
			return err
		}
		return pw.Close()
	}

	w := stdout
	if out.Path != "" {
		if dir := filepath.Dir(out.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		var f *os.File
		if f, err = os.Create(out.Path); err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		w = f
	}

	if out.Format == config.FormatJSON {
		return report.WriteJSON(w, meta, entries)
	}
	return report.WriteText(w, entries)
}

func saveRun(ctx context.Context, logger *zap.Logger, pg config.Postgres, run pgstore.Run, entries []selection.Entry) error {
	store, err := pgstore.New(ctx, pg.URL, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()

	if pg.InitSchema {
		if err := store.InitSchema(ctx); err != nil {
			return err
		}
	}
	if err := store.SaveRun(ctx, run, entries); err != nil {
		return err
	}

	n, err := store.CountRuns(ctx, run.SourceFile)
	if err != nil {
		logger.Warn("Could not count stored runs", zap.Error(err))
		return nil
	}
	logger.Info("Runs stored for source",
		zap.String("source", run.SourceFile),
		zap.Int64("runs", n))
	return nil
}

// show writes the report of a stored run without reading any input.
func show(ctx context.Context, logger *zap.Logger, cfg config.Config, id uuid.UUID, stdout io.Writer) error {
	store, err := pgstore.New(ctx, cfg.Postgres.URL, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()

	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	entries, err := store.ListEntries(ctx, id)
	if err != nil {
		return err
	}
	logger.Info("Loaded stored run",
		zap.String("run_id", id.String()),
		zap.String("source", run.SourceFile),
		zap.String("filter", run.LocationFilter),
		zap.Time("finished_at", run.FinishedAt),
		zap.Int("locations", len(entries)))

	return writeReport(cfg.Output, run.Metadata, entries, stdout)
}
