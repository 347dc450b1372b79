package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// DepositWindow is how far either side of the payout date deposits are searched.
const DepositWindow = 3 * 24 * time.Hour

type MatchKind string

const (
	MatchNone  MatchKind = "none"
	MatchID    MatchKind = "id"
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// DepositLister is the read side of the ledger.
type DepositLister interface {
	ListDeposits(ctx context.Context, from, to time.Time) ([]domain.LedgerEntry, error)
}

// Matcher finds the ledger deposit corresponding to a payout.
type Matcher struct {
	ledger DepositLister
	log    logrus.FieldLogger
}

func NewMatcher(ledger DepositLister, log logrus.FieldLogger) *Matcher {
	return &Matcher{ledger: ledger, log: log}
}

// Window returns the deposit search range for a payout date.
func Window(payoutDate time.Time) (from, to time.Time) {
	return payoutDate.Add(-DepositWindow), payoutDate.Add(DepositWindow)
}

// FindDeposit lists the deposits in [from, to] and selects one with
// SelectDeposit. A nil entry with a nil error means nothing matched.
func (m *Matcher) FindDeposit(
	ctx context.Context,
	amount decimal.Decimal,
	from, to time.Time,
	accountFilter *string,
	payoutID *string,
) (*domain.LedgerEntry, error) {
	candidates, err := m.ledger.ListDeposits(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}

	dep, kind := SelectDeposit(candidates, amount, accountFilter, payoutID)
	if dep != nil {
		m.log.WithFields(logrus.Fields{
			"deposit_id": dep.ID,
			"match":      kind,
			"target":     amount.StringFixed(2),
			"deposit":    dep.TotalAmount.StringFixed(2),
		}).Debug("deposit matched")
	}
	return dep, nil
}

// DepositByID returns the deposit with the given id from [from, to], or nil.
func (m *Matcher) DepositByID(ctx context.Context, id string, from, to time.Time) (*domain.LedgerEntry, error) {
	candidates, err := m.ledger.ListDeposits(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	for i := range candidates {
		if candidates[i].ID == id {
			dep := candidates[i]
			return &dep, nil
		}
	}
	return nil, nil
}

// SelectDeposit applies the matching tiers in priority order:
//
//  1. memo contains the payout id (ignores the account filter, returns at once)
//  2. first candidate whose total equals amount exactly
//  3. smallest absolute difference within money.FuzzyTolerance; on a tie
//     the candidate seen first in the slice wins
//
// Tiers 2 and 3 only consider candidates that pass the account filter.
func SelectDeposit(
	candidates []domain.LedgerEntry,
	amount decimal.Decimal,
	accountFilter *string,
	payoutID *string,
) (*domain.LedgerEntry, MatchKind) {
	id := ""
	if payoutID != nil {
		id = strings.TrimSpace(*payoutID)
	}
	filter := ""
	if accountFilter != nil {
		filter = strings.ToLower(strings.TrimSpace(*accountFilter))
	}

	exact := -1
	fuzzy := -1
	var fuzzyDiff decimal.Decimal

	for i := range candidates {
		c := &candidates[i]

		if id != "" && strings.Contains(c.Memo, id) {
			dep := *c
			return &dep, MatchID
		}

		if !passesAccountFilter(c.AccountName, filter) {
			continue
		}

		if exact < 0 && c.TotalAmount.Equal(amount) {
			exact = i
			continue
		}
		if exact >= 0 {
			continue
		}

		diff := c.TotalAmount.Sub(amount).Abs()
		if diff.GreaterThan(money.FuzzyTolerance) {
			continue
		}
		if fuzzy < 0 || diff.LessThan(fuzzyDiff) {
			fuzzy = i
			fuzzyDiff = diff
		}
	}

	switch {
	case exact >= 0:
		dep := candidates[exact]
		return &dep, MatchExact
	case fuzzy >= 0:
		dep := candidates[fuzzy]
		return &dep, MatchFuzzy
	}
	return nil, MatchNone
}

// passesAccountFilter keeps candidates with no account name.
func passesAccountFilter(accountName, filter string) bool {
	if filter == "" || accountName == "" {
		return true
	}
	return strings.Contains(strings.ToLower(accountName), filter)
}
