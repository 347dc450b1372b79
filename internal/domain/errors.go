package domain

import "errors"

var (
	ErrInvalidEntry          = errors.New("invalid detail entry")
	ErrNoDeposit             = errors.New("no matched deposit")
	ErrMissingAccountRouting = errors.New("missing account routing")
	ErrUnbalancedJournal     = errors.New("unbalanced journal entry")
	ErrNotFixable            = errors.New("entry is not fixable")
	ErrEntryNotFound         = errors.New("reconciliation entry not found")
	ErrDuplicateReference    = errors.New("duplicate external reference")
)
