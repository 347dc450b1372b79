// Package ledger is an in-memory double-entry ledger holding bank deposits
// and the correcting journal entries posted against them.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/payrecon/reconciler/internal/domain"
)

// DedupeMode is how a Book treats a repeated external reference.
type DedupeMode int

const (
	// DedupeReturnExisting resolves a repeated reference to the first
	// document, flagged Duplicate.
	DedupeReturnExisting DedupeMode = iota
	// DedupeReject fails with domain.ErrDuplicateReference.
	DedupeReject
	// DedupeNone creates a new document every time, like ledgers without
	// idempotency support.
	DedupeNone
)

// Posted is a journal entry with the receipt the book issued for it.
type Posted struct {
	Entry   domain.JournalEntry `json:"entry"`
	Receipt domain.Receipt      `json:"receipt"`
}

type Option func(*Book)

func WithDedupe(m DedupeMode) Option { return func(b *Book) { b.mode = m } }

func WithClock(now func() time.Time) Option { return func(b *Book) { b.now = now } }

// Book implements domain.Ledger. It is safe for concurrent use.
type Book struct {
	mu       sync.RWMutex
	deposits []domain.LedgerEntry
	depIdx   map[string]int
	journals []Posted
	byRef    map[string]int

	node *snowflake.Node
	mode DedupeMode
	now  func() time.Time
}

// NewBook creates an empty book whose document ids come from snowflake
// node nodeID (0-1023).
func NewBook(nodeID int64, opts ...Option) (*Book, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	b := &Book{
		depIdx: make(map[string]int),
		byRef:  make(map[string]int),
		node:   node,
		mode:   DedupeReturnExisting,
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// AddDeposits records deposits. A deposit with a known id replaces the old
// one in place.
func (b *Book) AddDeposits(deps ...domain.LedgerEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range deps {
		if i, ok := b.depIdx[d.ID]; ok {
			b.deposits[i] = d
			continue
		}
		b.depIdx[d.ID] = len(b.deposits)
		b.deposits = append(b.deposits, d)
	}
}

// ListDeposits returns deposits dated within [from, to], in the order they
// were added.
func (b *Book) ListDeposits(ctx context.Context, from, to time.Time) ([]domain.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.LedgerEntry
	for _, d := range b.deposits {
		if d.TxnDate.Before(from) || d.TxnDate.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// CreateJournalEntry validates and posts je against one of the book's
// deposits.
func (b *Book) CreateJournalEntry(ctx context.Context, je domain.JournalEntry) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	if err := je.Validate(); err != nil {
		return domain.Receipt{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.depIdx[je.DepositID]; !ok {
		return domain.Receipt{}, fmt.Errorf("deposit %q: %w", je.DepositID, domain.ErrNoDeposit)
	}

	if i, ok := b.byRef[je.ExternalRef]; ok {
		switch b.mode {
		case DedupeReturnExisting:
			r := b.journals[i].Receipt
			r.Duplicate = true
			return r, nil
		case DedupeReject:
			return domain.Receipt{}, fmt.Errorf("%w: %s", domain.ErrDuplicateReference, je.ExternalRef)
		}
	}

	lines := make([]domain.JournalLine, len(je.Lines))
	copy(lines, je.Lines)
	je.Lines = lines

	r := domain.Receipt{
		ID:          b.node.Generate().String(),
		DocNumber:   fmt.Sprintf("JE-%06d", len(b.journals)+1),
		ExternalRef: je.ExternalRef,
		CreatedAt:   b.now(),
	}
	if _, seen := b.byRef[je.ExternalRef]; !seen {
		b.byRef[je.ExternalRef] = len(b.journals)
	}
	b.journals = append(b.journals, Posted{Entry: je, Receipt: r})
	return r, nil
}

// FindJournalEntry returns the receipt of the first entry posted under ref,
// or nil when there is none. It works in every DedupeMode.
func (b *Book) FindJournalEntry(ctx context.Context, ref string) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.byRef[ref]
	if !ok {
		return nil, nil
	}
	r := b.journals[i].Receipt
	return &r, nil
}

// Journals returns every posted journal entry in posting order.
func (b *Book) Journals() []Posted {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Posted, len(b.journals))
	copy(out, b.journals)
	return out
}

// JournalsFor returns the entries posted under one external reference.
func (b *Book) JournalsFor(ref string) []Posted {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Posted
	for _, p := range b.journals {
		if p.Entry.ExternalRef == ref {
			out = append(out, p)
		}
	}
	return out
}

var _ domain.Ledger = (*Book)(nil)
