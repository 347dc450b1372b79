package source

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalTransactionInfo struct {
	TransactionID     string       `json:"transaction_id"`
	ReferenceID       string       `json:"paypal_reference_id,omitempty"`
	ReferenceIDType   string       `json:"paypal_reference_id_type,omitempty"`
	EventCode         string       `json:"transaction_event_code"`
	InitiationDate    string       `json:"transaction_initiation_date"`
	Amount            paypalMoney  `json:"transaction_amount"`
	Fee               *paypalMoney `json:"fee_amount,omitempty"`
	SalesTax          *paypalMoney `json:"sales_tax_amount,omitempty"`
	Status            string       `json:"transaction_status"`
	Subject           string       `json:"transaction_subject,omitempty"`
	InstrumentSubType string       `json:"instrument_sub_type,omitempty"`
}

type paypalTransaction struct {
	Info paypalTransactionInfo `json:"transaction_info"`
}

type paypalExport struct {
	Details []paypalTransaction `json:"transaction_details"`
}

const paypalTimeLayout = "2006-01-02T15:04:05-0700"

// paypalStatus maps transaction_status codes to payout statuses.
var paypalStatus = map[string]string{
	"S": domain.PayoutStatusPaid,
	"P": "PENDING",
	"D": "DENIED",
	"V": "REVERSED",
}

// paypalEventType maps an event code to an entry type by its group. T04xx
// withdrawals are payouts and report ok=false with withdrawal=true.
func paypalEventType(code string) (t domain.EntryType, withdrawal, ok bool) {
	if len(code) != 5 || code[0] != 'T' {
		return "", false, false
	}
	switch code[1:3] {
	case "00":
		return domain.EntryPayment, false, true
	case "01":
		return domain.EntryFee, false, true
	case "04":
		return "", true, false
	case "11":
		return domain.EntryRefund, false, true
	case "12":
		return domain.EntryAdjustment, false, true
	}
	return "", false, false
}

// ParsePayPalJSON parses a PayPal transaction search export. Withdrawals
// (T04xx) are the payouts; other transactions name their withdrawal in
// paypal_reference_id. Values are signed decimal strings.
func ParsePayPalJSON(data []byte) (*Export, error) {
	var raw paypalExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	exp := newExport()
	for i, txn := range raw.Details {
		info := txn.Info
		code := strings.ToUpper(strings.TrimSpace(info.EventCode))
		amount, err := money.Parse(info.Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("transaction %d amount: %w", i, err)
		}

		entryType, withdrawal, ok := paypalEventType(code)
		if withdrawal {
			created, err := parseTime(info.InitiationDate)
			if err != nil {
				return nil, fmt.Errorf("transaction %s date: %w", info.TransactionID, err)
			}
			status, known := paypalStatus[info.Status]
			if !known {
				status = strings.ToUpper(info.Status)
			}
			exp.Payouts = append(exp.Payouts, domain.Payout{
				ID:        info.TransactionID,
				Source:    domain.SourcePayPal,
				Status:    status,
				NetAmount: amount.Neg(),
				Currency:  info.Amount.CurrencyCode,
				CreatedAt: created,
			})
			continue
		}

		payoutID := info.ReferenceID
		if payoutID == "" {
			exp.Unassigned++
			continue
		}
		if !ok {
			exp.reject(payoutID, unknownType(domain.SourcePayPal, code))
			continue
		}

		e := domain.DetailEntry{Type: entryType}
		if info.SalesTax != nil {
			if e.TaxAmount, err = money.Parse(info.SalesTax.Value); err != nil {
				return nil, fmt.Errorf("transaction %s sales tax: %w", info.TransactionID, err)
			}
		}
		switch entryType {
		case domain.EntryFee, domain.EntryAdjustment:
			e.FeeAmount = amount
			e.Metadata = metadata(info.TransactionID, "", info.Subject)
		default:
			e.GrossAmount = amount
			if info.Fee != nil {
				if e.FeeAmount, err = money.Parse(info.Fee.Value); err != nil {
					return nil, fmt.Errorf("transaction %s fee: %w", info.TransactionID, err)
				}
			}
			e.Metadata = metadata(info.TransactionID, info.InstrumentSubType, "")
		}
		exp.add(payoutID, e)
	}
	exp.sumFees()
	return exp, nil
}

// WritePayPalJSON writes an export in the layout ParsePayPalJSON reads.
// Charges are written as T0006 payments.
func WritePayPalJSON(w io.Writer, exp *Export) error {
	out := paypalExport{Details: []paypalTransaction{}}
	for _, p := range exp.Payouts {
		date := p.CreatedAt.UTC().Format(paypalTimeLayout)
		value := func(d decimal.Decimal) paypalMoney {
			return paypalMoney{CurrencyCode: p.Currency, Value: d.StringFixed(2)}
		}
		for i, e := range exp.Details[p.ID] {
			info := paypalTransactionInfo{
				TransactionID:   entryID(e, p.ID, i),
				ReferenceID:     p.ID,
				ReferenceIDType: "TXN",
				InitiationDate:  date,
				Status:          "S",
			}
			switch e.Type {
			case domain.EntryCharge, domain.EntryPayment:
				info.EventCode = "T0006"
			case domain.EntryRefund:
				info.EventCode = "T1107"
			case domain.EntryFee:
				info.EventCode = "T0100"
			case domain.EntryAdjustment:
				info.EventCode = "T1201"
			default:
				return fmt.Errorf("payout %s: %w", p.ID, unknownType(domain.SourcePayPal, string(e.Type)))
			}
			if e.Type == domain.EntryFee || e.Type == domain.EntryAdjustment {
				info.Amount = value(e.FeeAmount)
				info.Subject = e.FeeDescription()
			} else {
				info.Amount = value(e.GrossAmount)
				fee := value(e.FeeAmount)
				info.Fee = &fee
				info.InstrumentSubType = e.Metadata[domain.MetaCardBrand]
			}
			if !e.TaxAmount.IsZero() {
				tax := value(e.TaxAmount)
				info.SalesTax = &tax
			}
			out.Details = append(out.Details, paypalTransaction{Info: info})
		}

		status := "S"
		for code, s := range paypalStatus {
			if s == p.Status {
				status = code
			}
		}
		out.Details = append(out.Details, paypalTransaction{Info: paypalTransactionInfo{
			TransactionID:  p.ID,
			EventCode:      "T0400",
			InitiationDate: date,
			Amount:         value(p.NetAmount.Neg()),
			Status:         status,
			Subject:        "General withdrawal",
		}})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
