package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// Totals is the normalized view of one payout's detail entries.
type Totals struct {
	GrossSales        decimal.Decimal
	SalesTax          decimal.Decimal
	CalculatedFees    decimal.Decimal
	RefundAmount      decimal.Decimal
	RefundFeeReversal decimal.Decimal
	Signals           Signals
}

// Signals is the entry metadata aggregated across a payout, consumed only
// by the variance analyzer.
type Signals struct {
	FeeDescriptions []string
	CardBrands      []string
}

// Classify folds detail entries into totals. Fees returned on refunded sales
// are subtracted from the calculated fees.
func Classify(entries []domain.DetailEntry) Totals {
	var t Totals
	seenDesc := map[string]bool{}
	seenBrand := map[string]bool{}

	for _, e := range entries {
		switch e.Type {
		case domain.EntryCharge, domain.EntryPayment:
			t.GrossSales = t.GrossSales.Add(e.GrossAmount)
			t.SalesTax = t.SalesTax.Add(e.TaxAmount)
			t.CalculatedFees = t.CalculatedFees.Add(e.FeeAmount.Abs())
		case domain.EntryRefund:
			t.RefundAmount = t.RefundAmount.Add(e.GrossAmount.Abs())
			t.RefundFeeReversal = t.RefundFeeReversal.Add(e.FeeAmount.Abs())
		case domain.EntryFee, domain.EntryAdjustment:
			t.CalculatedFees = t.CalculatedFees.Add(e.FeeAmount.Abs())
		}

		if desc := strings.TrimSpace(e.FeeDescription()); desc != "" && !seenDesc[desc] {
			seenDesc[desc] = true
			t.Signals.FeeDescriptions = append(t.Signals.FeeDescriptions, desc)
		}
		if brand := strings.TrimSpace(e.Metadata[domain.MetaCardBrand]); brand != "" && !seenBrand[brand] {
			seenBrand[brand] = true
			t.Signals.CardBrands = append(t.Signals.CardBrands, brand)
		}
	}

	t.CalculatedFees = t.CalculatedFees.Sub(t.RefundFeeReversal)
	return t
}
