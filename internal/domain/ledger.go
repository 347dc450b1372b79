package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a deposit recorded in the accounting system.
type LedgerEntry struct {
	ID          string          `json:"id"`
	TxnDate     time.Time       `json:"txn_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	// FeeAmount is signed; a negative value is a deduction.
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	Memo        string          `json:"memo,omitempty"`
	AccountName string          `json:"account_name,omitempty"`
	Currency    string          `json:"currency,omitempty"`
}

type PostingType string

const (
	PostingDebit  PostingType = "Debit"
	PostingCredit PostingType = "Credit"
)

type JournalLine struct {
	AccountID   string          `json:"account_id"`
	Posting     PostingType     `json:"posting"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// JournalEntry is a correcting document. ExternalRef carries the
// idempotency key.
type JournalEntry struct {
	DepositID   string        `json:"deposit_id"`
	ExternalRef string        `json:"external_ref"`
	Memo        string        `json:"memo,omitempty"`
	Lines       []JournalLine `json:"lines"`
}

// Totals returns the summed debits and credits.
func (j JournalEntry) Totals() (debits, credits decimal.Decimal) {
	for _, l := range j.Lines {
		switch l.Posting {
		case PostingDebit:
			debits = debits.Add(l.Amount)
		case PostingCredit:
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}

// Validate enforces the double-entry invariant: at least one debit and one
// credit, positive amounts, debits equal to credits.
func (j JournalEntry) Validate() error {
	if j.ExternalRef == "" {
		return fmt.Errorf("%w: missing external reference", ErrUnbalancedJournal)
	}
	var hasDebit, hasCredit bool
	for i, l := range j.Lines {
		if l.AccountID == "" {
			return fmt.Errorf("%w: line %d has no account", ErrUnbalancedJournal, i)
		}
		if !l.Amount.IsPositive() {
			return fmt.Errorf("%w: line %d amount %s is not positive", ErrUnbalancedJournal, i, l.Amount)
		}
		switch l.Posting {
		case PostingDebit:
			hasDebit = true
		case PostingCredit:
			hasCredit = true
		default:
			return fmt.Errorf("%w: line %d posting %q", ErrUnbalancedJournal, i, l.Posting)
		}
	}
	if !hasDebit || !hasCredit {
		return fmt.Errorf("%w: needs a debit and a credit line", ErrUnbalancedJournal)
	}
	debits, credits := j.Totals()
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s != credits %s", ErrUnbalancedJournal, debits, credits)
	}
	return nil
}

// Receipt is the ledger's acknowledgement of a journal entry. Duplicate is
// set when the ledger resolved the external reference to an existing
// document instead of creating a new one.
type Receipt struct {
	ID          string    `json:"id"`
	DocNumber   string    `json:"doc_number"`
	ExternalRef string    `json:"external_ref"`
	Duplicate   bool      `json:"duplicate"`
	CreatedAt   time.Time `json:"created_at"`
}
