// Package pgstore persists scan results to PostgreSQL.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tocscan/selection"
	"tocscan/toc"
)

//go:embed schema.sql
var schema string

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run describes one scan of a TOC file.
type Run struct {
	ID             uuid.UUID
	SourceFile     string
	Metadata       toc.Metadata
	LocationFilter string
	Stats          selection.Stats
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewRun returns a Run with a fresh id, finishing now.
func NewRun(source string, filter selection.Filter, meta toc.Metadata, stats selection.Stats, startedAt time.Time) Run {
	return Run{
		ID:             uuid.New(),
		SourceFile:     source,
		Metadata:       meta,
		LocationFilter: filter.Substring,
		Stats:          stats,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
	}
}

// Store reads and writes runs and their entries through a connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func optText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// SaveRun stores run and its entries in a single transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, entries []selection.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scan_runs (id, source_file, reporting_entity_name, reporting_entity_type,
			last_updated_on, location_filter, structures, matched_files, duplicates,
			started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgUUID(run.ID), run.SourceFile,
		optText(run.Metadata.ReportingEntityName),
		optText(run.Metadata.ReportingEntityType),
		optText(run.Metadata.LastUpdatedOn),
		run.LocationFilter,
		run.Stats.Structures, run.Stats.MatchedFiles, run.Stats.Duplicates,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			pgUUID(run.ID), e.Location, string(e.Hint), e.ExampleEIN,
			e.PlanName, e.PlanID, e.PlanIDType, e.Tier.String(),
		}
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"file_plans"},
		[]string{"run_id", "location", "hint", "example_ein", "plan_name", "plan_id", "plan_id_type", "tier"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy file_plans: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("Saved run",
		zap.String("run_id", run.ID.String()),
		zap.Int64("file_plans", copied))
	return nil
}

// GetRun loads the run row for id. Entries are read separately with
// ListEntries.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var (
		run                        Run
		pid                        pgtype.UUID
		entityName, entityType, lu pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, source_file, reporting_entity_name, reporting_entity_type,
			last_updated_on, location_filter, structures, matched_files, duplicates,
			started_at, finished_at
		FROM scan_runs
		WHERE id = $1`,
		pgUUID(id),
	).Scan(&pid, &run.SourceFile, &entityName, &entityType,
		&lu, &run.LocationFilter, &run.Stats.Structures, &run.Stats.MatchedFiles, &run.Stats.Duplicates,
		&run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	run.ID = uuid.UUID(pid.Bytes)
	run.Metadata = toc.Metadata{
		ReportingEntityName: entityName.String,
		ReportingEntityType: entityType.String,
		LastUpdatedOn:       lu.String,
	}
	return run, nil
}

// ListEntries returns the entries stored for a run, ordered by location.
func (s *Store) ListEntries(ctx context.Context, runID uuid.UUID) ([]selection.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT location, hint, example_ein, plan_name, plan_id, plan_id_type, tier
		FROM file_plans
		WHERE run_id = $1
		ORDER BY location COLLATE "C"`,
		pgUUID(runID),
	)
	if err != nil {
		return nil, fmt.Errorf("query file_plans: %w", err)
	}
	defer rows.Close()

	var entries []selection.Entry
	for rows.Next() {
		var (
			e          selection.Entry
			hint, tier string
		)
		if err := rows.Scan(&e.Location, &hint, &e.ExampleEIN, &e.PlanName, &e.PlanID, &e.PlanIDType, &tier); err != nil {
			return nil, fmt.Errorf("scan file_plan: %w", err)
		}
		e.Hint = selection.Hint(hint)
		e.Tier = selection.ParseTier(tier)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read file_plans: %w", err)
	}
	return entries, nil
}

// CountRuns returns how many runs have been stored for a source file.
func (s *Store) CountRuns(ctx context.Context, source string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM scan_runs WHERE source_file = $1`, source).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
