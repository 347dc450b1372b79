package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReconciliationStatus string

const (
	StatusMatched          ReconciliationStatus = "MATCHED"
	StatusVarianceDetected ReconciliationStatus = "VARIANCE_DETECTED"
	StatusMissingDeposit   ReconciliationStatus = "MISSING_DEPOSIT"
	StatusFixed            ReconciliationStatus = "FIXED"
	StatusError            ReconciliationStatus = "ERROR"
)

// AllStatuses lists statuses in the order reports display them.
var AllStatuses = []ReconciliationStatus{
	StatusMatched, StatusVarianceDetected, StatusMissingDeposit, StatusFixed, StatusError,
}

type VarianceType string

const (
	VarianceFeeMismatch      VarianceType = "FEE_MISMATCH"
	VarianceMissingTax       VarianceType = "MISSING_TAX"
	VarianceRefundDrift      VarianceType = "REFUND_DRIFT"
	VarianceInternationalFee VarianceType = "INTERNATIONAL_FEE"
	VarianceOther            VarianceType = "OTHER"
)

// ReconciliationEntry is the audit record for one payout. PayoutID is the
// primary key; saving an entry overwrites the previous one.
type ReconciliationEntry struct {
	Date              string               `json:"date"`
	PayoutID          string               `json:"payout_id"`
	Source            PayoutSourceName     `json:"source"`
	Status            ReconciliationStatus `json:"status"`
	GrossSales        decimal.Decimal      `json:"gross_sales"`
	NetDeposit        decimal.Decimal      `json:"net_deposit"`
	CalculatedFees    decimal.Decimal      `json:"calculated_fees"`
	LedgerFee         decimal.Decimal      `json:"ledger_fee"`
	SalesTaxCollected decimal.Decimal      `json:"sales_tax_collected"`
	RefundAmount      decimal.Decimal      `json:"refund_amount"`
	RefundFeeReversal decimal.Decimal      `json:"refund_fee_reversal"`
	VarianceAmount    decimal.Decimal      `json:"variance_amount"`
	VarianceType      VarianceType         `json:"variance_type,omitempty"`
	VarianceReason    string               `json:"variance_reason,omitempty"`
	DepositID         string               `json:"ledger_deposit_id,omitempty"`
	DepositAmount     *decimal.Decimal     `json:"ledger_deposit_amount,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// MarkFixed is the only way an entry reaches FIXED.
func (e *ReconciliationEntry) MarkFixed() error {
	if e.Status != StatusVarianceDetected {
		return fmt.Errorf("%w: payout %s is %s", ErrNotFixable, e.PayoutID, e.Status)
	}
	e.Status = StatusFixed
	return nil
}

// NeedsAction reports whether a human or the fix applier still has work to do.
func (e ReconciliationEntry) NeedsAction() bool {
	return e.Status == StatusVarianceDetected || e.Status == StatusMissingDeposit
}
