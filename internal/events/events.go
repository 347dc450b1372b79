// Package events publishes reconciliation outcomes for downstream consumers
// (alerting, bookkeeping dashboards).
package events

import (
	"context"
	"time"
)

const (
	KeyRunCompleted = "reconciliation.run.completed"
	KeyFixApplied   = "reconciliation.fix.applied"
)

// Publisher sends one message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, msg any) error
}

type RunCompleted struct {
	RunID        string         `json:"run_id"`
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	Total        int            `json:"total"`
	Counts       map[string]int `json:"counts"`
	FixesApplied int            `json:"fixes_applied"`
	Ts           int64          `json:"ts"`
}

type FixApplied struct {
	PayoutID     string `json:"payout_id"`
	Source       string `json:"source"`
	VarianceType string `json:"variance_type"`
	Amount       string `json:"amount"`
	JournalID    string `json:"journal_id"`
	Duplicate    bool   `json:"duplicate"`
	Ts           int64  `json:"ts"`
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
