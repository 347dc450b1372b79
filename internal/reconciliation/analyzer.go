package reconciliation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// Analysis is the classified root cause of a fee variance.
type Analysis struct {
	Type   domain.VarianceType
	Reason string
}

// AnalyzeVariance classifies a variance. Explicit fee descriptions win over
// the numeric heuristics. The heuristics use the signed variance, so a
// ledger fee above the calculated fee falls through to FEE_MISMATCH.
func AnalyzeVariance(variance, grossSales, salesTax, refundAmount decimal.Decimal, sig Signals) Analysis {
	for _, desc := range sig.FeeDescriptions {
		lower := strings.ToLower(desc)
		if strings.Contains(lower, "international") || strings.Contains(lower, "cross-border") {
			return Analysis{
				Type:   domain.VarianceInternationalFee,
				Reason: "International Fee detected: " + desc,
			}
		}
	}
	for _, desc := range sig.FeeDescriptions {
		if strings.Contains(strings.ToLower(desc), "tax") {
			return Analysis{
				Type:   domain.VarianceMissingTax,
				Reason: "Tax Fee detected: " + desc,
			}
		}
	}

	intlFee := grossSales.Mul(money.InternationalRate)
	if money.Near(variance, intlFee, money.HeuristicTolerance) {
		reason := fmt.Sprintf("Likely Hidden International Fee (1%% of gross %s)", grossSales.StringFixed(2))
		if len(sig.CardBrands) > 0 {
			reason += "; card brands: " + strings.Join(sig.CardBrands, ", ")
		}
		return Analysis{Type: domain.VarianceInternationalFee, Reason: reason}
	}

	if money.Near(variance, salesTax, money.HeuristicTolerance) {
		return Analysis{
			Type:   domain.VarianceMissingTax,
			Reason: fmt.Sprintf("Likely Unrecorded Tax Withholding (sales tax %s)", salesTax.StringFixed(2)),
		}
	}

	if refundAmount.IsPositive() && money.Near(variance, refundAmount, money.HeuristicTolerance) {
		return Analysis{
			Type:   domain.VarianceRefundDrift,
			Reason: fmt.Sprintf("Refund Timing Drift (refunds %s)", refundAmount.StringFixed(2)),
		}
	}

	return Analysis{
		Type:   domain.VarianceFeeMismatch,
		Reason: fmt.Sprintf("Processing Fee Discrepancy of %s", variance.StringFixed(2)),
	}
}

// Evaluate builds the audit entry for a payout from its totals and the
// matched deposit (nil when none was found).
func Evaluate(p domain.Payout, t Totals, deposit *domain.LedgerEntry) domain.ReconciliationEntry {
	entry := domain.ReconciliationEntry{
		Date:              p.CreatedAt.Format("2006-01-02"),
		PayoutID:          p.ID,
		Source:            p.Source,
		GrossSales:        t.GrossSales,
		NetDeposit:        p.NetAmount,
		CalculatedFees:    t.CalculatedFees,
		LedgerFee:         decimal.Zero,
		SalesTaxCollected: t.SalesTax,
		RefundAmount:      t.RefundAmount,
		RefundFeeReversal: t.RefundFeeReversal,
		VarianceAmount:    decimal.Zero,
	}

	if deposit == nil {
		entry.Status = domain.StatusMissingDeposit
		entry.VarianceAmount = p.NetAmount
		entry.VarianceReason = "No ledger deposit found within 3 days of payout"
		return entry
	}

	entry.DepositID = deposit.ID
	amt := deposit.TotalAmount
	entry.DepositAmount = &amt
	entry.LedgerFee = deposit.FeeAmount.Abs()

	variance := t.CalculatedFees.Sub(entry.LedgerFee)
	if money.WithinEpsilon(variance) {
		entry.Status = domain.StatusMatched
		return entry
	}

	a := AnalyzeVariance(variance, t.GrossSales, t.SalesTax, t.RefundAmount, t.Signals)
	entry.Status = domain.StatusVarianceDetected
	entry.VarianceAmount = variance
	entry.VarianceType = a.Type
	entry.VarianceReason = a.Reason
	return entry
}
