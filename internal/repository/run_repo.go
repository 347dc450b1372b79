package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/payrecon/reconciler/internal/domain"
)

// RunRepo stores the run history.
type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Record(ctx context.Context, run domain.Run) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	srcErrs := run.SourceErrors
	if srcErrs == nil {
		srcErrs = []string{}
	}
	errsJSON, err := json.Marshal(srcErrs)
	if err != nil {
		return fmt.Errorf("marshal source errors: %w", err)
	}

	autoFix := 0
	if run.AutoFix {
		autoFix = 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		(id, period_start, period_end, auto_fix, started_at, finished_at,
		 total, counts, fixes_applied, source_errors)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID,
		run.PeriodStart.UTC().Format(time.RFC3339),
		run.PeriodEnd.UTC().Format(time.RFC3339),
		autoFix,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Total, string(counts), run.FixesApplied, string(errsJSON),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns the newest runs first. limit <= 0 defaults to 20.
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, period_start, period_end, auto_fix, started_at, finished_at,
		        total, counts, fixes_applied, source_errors
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var pStart, pEnd, started, finished, counts, srcErrs string
		var autoFix int
		if err := rows.Scan(
			&run.ID, &pStart, &pEnd, &autoFix, &started, &finished,
			&run.Total, &counts, &run.FixesApplied, &srcErrs,
		); err != nil {
			return nil, err
		}
		run.AutoFix = autoFix == 1
		run.PeriodStart, _ = time.Parse(time.RFC3339, pStart)
		run.PeriodEnd, _ = time.Parse(time.RFC3339, pEnd)
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
			return nil, fmt.Errorf("run %s counts: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(srcErrs), &run.SourceErrors); err != nil {
			return nil, fmt.Errorf("run %s source errors: %w", run.ID, err)
		}
		if len(run.SourceErrors) == 0 {
			run.SourceErrors = nil
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

var _ domain.RunStore = (*RunRepo)(nil)
