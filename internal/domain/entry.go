package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryCharge     EntryType = "CHARGE"
	EntryPayment    EntryType = "PAYMENT"
	EntryRefund     EntryType = "REFUND"
	EntryFee        EntryType = "FEE"
	EntryAdjustment EntryType = "ADJUSTMENT"
)

// Metadata keys understood by the variance analyzer.
const (
	MetaFeeDescription = "fee_description"
	MetaCardBrand      = "card_brand"
)

// ParseEntryType normalizes a processor entry type. Only the five canonical
// types are accepted; adapters map processor vocabularies before calling it.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case EntryCharge, EntryPayment, EntryRefund, EntryFee, EntryAdjustment:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown entry type %q", ErrInvalidEntry, s)
}

// DetailEntry is one line item of a payout. Amounts are signed.
type DetailEntry struct {
	Type        EntryType         `json:"type"`
	GrossAmount decimal.Decimal   `json:"gross_amount"`
	FeeAmount   decimal.Decimal   `json:"fee_amount"`
	TaxAmount   decimal.Decimal   `json:"tax_amount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate checks the discriminant so downstream code never sees an
// unknown entry type.
func (e DetailEntry) Validate() error {
	if _, err := ParseEntryType(string(e.Type)); err != nil {
		return err
	}
	return nil
}

// FeeDescription returns the metadata fee description, if any.
func (e DetailEntry) FeeDescription() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaFeeDescription]
}
