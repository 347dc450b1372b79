package domain

import (
	"context"
	"time"
)

// Run is the summary of one reconciliation pass over a period.
type Run struct {
	ID           string                       `json:"id"`
	PeriodStart  time.Time                    `json:"period_start"`
	PeriodEnd    time.Time                    `json:"period_end"`
	AutoFix      bool                         `json:"auto_fix"`
	StartedAt    time.Time                    `json:"started_at"`
	FinishedAt   time.Time                    `json:"finished_at"`
	Total        int                          `json:"total"`
	Counts       map[ReconciliationStatus]int `json:"counts"`
	FixesApplied int                          `json:"fixes_applied"`
	SourceErrors []string                     `json:"source_errors,omitempty"`
}

// RunStore keeps the run history.
type RunStore interface {
	Record(ctx context.Context, run Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}
