package domain

import (
	"context"
	"time"
)

// PayoutSource is implemented by every processor adapter.
//
//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks -source=ports.go
type PayoutSource interface {
	Source() PayoutSourceName
	ListPayouts(ctx context.Context, status string, begin, end time.Time) ([]Payout, error)
	GetDetailEntries(ctx context.Context, payoutID string) ([]DetailEntry, error)
}

// Ledger is the accounting system. ListDeposits is read-only;
// CreateJournalEntry must resolve a repeated ExternalRef to the same
// document when the ledger supports it.
type Ledger interface {
	ListDeposits(ctx context.Context, from, to time.Time) ([]LedgerEntry, error)
	CreateJournalEntry(ctx context.Context, je JournalEntry) (Receipt, error)
}

// AuditStore persists reconciliation entries keyed by payout id.
type AuditStore interface {
	Save(ctx context.Context, entry ReconciliationEntry) error
	Get(ctx context.Context, payoutID string) (*ReconciliationEntry, error)
	Query(ctx context.Context, f EntryFilter) ([]ReconciliationEntry, error)
}

// EntryFilter narrows an audit query. Zero values mean "any".
type EntryFilter struct {
	Status       ReconciliationStatus
	Source       PayoutSourceName
	VarianceType VarianceType
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}
