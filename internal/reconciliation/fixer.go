package reconciliation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// IdempotencyKey is the hex SHA-256 of the payout id. It is sent as the
// journal entry's external reference.
func IdempotencyKey(payoutID string) string {
	sum := sha256.Sum256([]byte(payoutID))
	return hex.EncodeToString(sum[:])
}

// AccountRouting maps a variance type to the account debited by the
// correcting journal entry. The credit side is always undeposited funds.
type AccountRouting struct {
	FeeAccountID              string                         `json:"fee_account_id"`
	TaxLiabilityAccountID     string                         `json:"tax_liability_account_id"`
	DefaultAccountID          string                         `json:"default_account_id"`
	UndepositedFundsAccountID string                         `json:"undeposited_funds_account_id"`
	ByType                    map[domain.VarianceType]string `json:"by_type,omitempty"`
}

// DebitAccount resolves the debit account: explicit per-type override, then
// the type's natural account, then the generic default.
func (r AccountRouting) DebitAccount(vt domain.VarianceType) (string, error) {
	if id := r.ByType[vt]; id != "" {
		return id, nil
	}
	switch vt {
	case domain.VarianceFeeMismatch, domain.VarianceInternationalFee:
		if r.FeeAccountID != "" {
			return r.FeeAccountID, nil
		}
	case domain.VarianceMissingTax:
		if r.TaxLiabilityAccountID != "" {
			return r.TaxLiabilityAccountID, nil
		}
	}
	if r.DefaultAccountID != "" {
		return r.DefaultAccountID, nil
	}
	return "", fmt.Errorf("%w: no debit account for %s", domain.ErrMissingAccountRouting, vt)
}

// CreditAccount returns the clearing account.
func (r AccountRouting) CreditAccount() (string, error) {
	if r.UndepositedFundsAccountID == "" {
		return "", fmt.Errorf("%w: undeposited funds account not set", domain.ErrMissingAccountRouting)
	}
	return r.UndepositedFundsAccountID, nil
}

// FixResult reports one fix attempt. Message is empty only on success.
type FixResult struct {
	PayoutID string          `json:"payout_id"`
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Receipt  *domain.Receipt `json:"receipt,omitempty"`
	// Err is the failure behind Message.
	Err error `json:"-"`
}

// JournalWriter is the write side of the ledger.
type JournalWriter interface {
	CreateJournalEntry(ctx context.Context, je domain.JournalEntry) (domain.Receipt, error)
}

// JournalFinder is implemented by ledgers that can look a journal entry up
// by its external reference. A nil receipt means none was posted.
type JournalFinder interface {
	FindJournalEntry(ctx context.Context, externalRef string) (*domain.Receipt, error)
}

// Fixer posts correcting journal entries for classified variances.
type Fixer struct {
	ledger JournalWriter
	store  domain.AuditStore
	locker Locker
	log    logrus.FieldLogger
}

func NewFixer(ledger JournalWriter, store domain.AuditStore, locker Locker, log logrus.FieldLogger) *Fixer {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Fixer{ledger: ledger, store: store, locker: locker, log: log}
}

// BuildJournalEntry returns the balanced two-line correction for entry.
func BuildJournalEntry(entry domain.ReconciliationEntry, deposit domain.LedgerEntry, routing AccountRouting) (domain.JournalEntry, error) {
	debit, err := routing.DebitAccount(entry.VarianceType)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	credit, err := routing.CreditAccount()
	if err != nil {
		return domain.JournalEntry{}, err
	}

	amount := entry.VarianceAmount.Abs()
	je := domain.JournalEntry{
		DepositID:   deposit.ID,
		ExternalRef: IdempotencyKey(entry.PayoutID),
		Memo:        fmt.Sprintf("Payout %s %s adjustment", entry.PayoutID, entry.VarianceType),
		Lines: []domain.JournalLine{
			{
				AccountID:   debit,
				Posting:     domain.PostingDebit,
				Amount:      amount,
				Description: fmt.Sprintf("%s adjustment for deposit %s", entry.VarianceType, deposit.ID),
			},
			{
				AccountID: credit,
				Posting:   domain.PostingCredit,
				Amount:    amount,
			},
		},
	}
	if err := je.Validate(); err != nil {
		return domain.JournalEntry{}, err
	}
	return je, nil
}

// Apply posts the correction for entry and, on success, persists it as
// FIXED and updates *entry. On any failure *entry is left untouched and the
// result carries the reason; retrying is safe because the journal entry is
// keyed by payout id and the post happens under the payout's lock.
func (f *Fixer) Apply(ctx context.Context, entry *domain.ReconciliationEntry, deposit *domain.LedgerEntry, routing AccountRouting) FixResult {
	res := FixResult{PayoutID: entry.PayoutID}
	logger := f.log.WithField("payout_id", entry.PayoutID)

	fail := func(err error) FixResult {
		res.Message, res.Err = err.Error(), err
		logger.WithError(err).Warn("fix not applied")
		return res
	}

	if entry.Status != domain.StatusVarianceDetected {
		return fail(fmt.Errorf("%w: status is %s", domain.ErrNotFixable, entry.Status))
	}
	if deposit == nil {
		return fail(fmt.Errorf("cannot fix payout %s: %w", entry.PayoutID, domain.ErrNoDeposit))
	}
	if money.WithinEpsilon(entry.VarianceAmount) {
		return fail(fmt.Errorf("%w: variance %s is below epsilon", domain.ErrNotFixable, entry.VarianceAmount))
	}

	je, err := BuildJournalEntry(*entry, *deposit, routing)
	if err != nil {
		return fail(err)
	}

	unlock, err := f.locker.Lock(ctx, je.ExternalRef)
	if err != nil {
		return fail(err)
	}
	defer unlock()

	// Another caller may have fixed the payout while this one waited.
	current, err := f.store.Get(ctx, entry.PayoutID)
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
	case err != nil:
		return fail(fmt.Errorf("reload entry: %w", err))
	case current != nil && current.Status == domain.StatusFixed:
		*entry = *current
		res.Success = true
		res.Receipt = &domain.Receipt{ExternalRef: je.ExternalRef, Duplicate: true}
		logger.Info("payout already fixed")
		return res
	}

	receipt, err := f.post(ctx, je)
	if err != nil {
		return fail(err)
	}

	fixed := *entry
	if err := fixed.MarkFixed(); err != nil {
		return fail(err)
	}
	if err := f.store.Save(ctx, fixed); err != nil {
		return fail(fmt.Errorf("persist fixed entry: %w", err))
	}

	*entry = fixed
	res.Success = true
	res.Receipt = &receipt
	logger.WithFields(logrus.Fields{
		"journal_id": receipt.ID,
		"duplicate":  receipt.Duplicate,
		"amount":     entry.VarianceAmount.Abs().StringFixed(2),
		"type":       entry.VarianceType,
	}).Info("fix applied")
	return res
}

// post writes je once per external reference. A ledger that can be searched
// by reference is asked first; a reference the ledger rejects as reused
// counts as already posted.
func (f *Fixer) post(ctx context.Context, je domain.JournalEntry) (domain.Receipt, error) {
	if finder, ok := f.ledger.(JournalFinder); ok {
		existing, err := finder.FindJournalEntry(ctx, je.ExternalRef)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("find journal entry: %w", err)
		}
		if existing != nil {
			r := *existing
			r.Duplicate = true
			return r, nil
		}
	}

	receipt, err := f.ledger.CreateJournalEntry(ctx, je)
	if errors.Is(err, domain.ErrDuplicateReference) {
		return domain.Receipt{ExternalRef: je.ExternalRef, Duplicate: true}, nil
	}
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("create journal entry: %w", err)
	}
	return receipt, nil
}
