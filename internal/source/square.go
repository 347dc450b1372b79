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

type squareMoney struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type squareEntry struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	EffectiveAt string       `json:"effective_at,omitempty"`
	Gross       squareMoney  `json:"gross_amount_money"`
	Fee         squareMoney  `json:"fee_amount_money"`
	Net         squareMoney  `json:"net_amount_money"`
	Tax         *squareMoney `json:"tax_amount_money,omitempty"`
	CardBrand   string       `json:"card_brand,omitempty"`
	Description string       `json:"description,omitempty"`
}

type squarePayout struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	LocationID  string        `json:"location_id,omitempty"`
	CreatedAt   string        `json:"created_at"`
	ArrivalDate string        `json:"arrival_date,omitempty"`
	AmountMoney squareMoney   `json:"amount_money"`
	Entries     []squareEntry `json:"payout_entries"`
}

type squareExport struct {
	Payouts []squarePayout `json:"payouts"`
}

// squareTypes maps payout entry types to entry types.
var squareTypes = map[string]domain.EntryType{
	"CHARGE":           domain.EntryCharge,
	"REFUND":           domain.EntryRefund,
	"FEE":              domain.EntryFee,
	"PROCESSING_FEE":   domain.EntryFee,
	"THIRD_PARTY_FEE":  domain.EntryFee,
	"TAX_ON_FEE":       domain.EntryFee,
	"ADJUSTMENT":       domain.EntryAdjustment,
	"OTHER_ADJUSTMENT": domain.EntryAdjustment,
}

// ParseSquareJSON parses a Square payouts export: a list of payouts each
// carrying its payout entries. Money objects hold signed cents.
func ParseSquareJSON(data []byte) (*Export, error) {
	var raw squareExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	exp := newExport()
	for i, sp := range raw.Payouts {
		if sp.ID == "" {
			return nil, fmt.Errorf("payout %d: missing id", i)
		}
		created, err := parseTime(sp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("payout %s created_at: %w", sp.ID, err)
		}
		p := domain.Payout{
			ID:        sp.ID,
			Source:    domain.SourceSquare,
			Status:    strings.ToUpper(sp.Status),
			NetAmount: money.FromMinor(sp.AmountMoney.Amount),
			Currency:  sp.AmountMoney.CurrencyCode,
			CreatedAt: created,
		}
		if sp.ArrivalDate != "" {
			arrival, err := parseTime(sp.ArrivalDate)
			if err != nil {
				return nil, fmt.Errorf("payout %s arrival_date: %w", sp.ID, err)
			}
			p.ArrivalDate = &arrival
		}

		// A payout with no entries is still known.
		exp.Details[p.ID] = nil
		for _, se := range sp.Entries {
			typ := strings.ToUpper(strings.TrimSpace(se.Type))
			entryType, ok := squareTypes[typ]
			if !ok {
				exp.reject(p.ID, unknownType(domain.SourceSquare, se.Type))
				continue
			}
			e := domain.DetailEntry{
				Type:        entryType,
				GrossAmount: money.FromMinor(se.Gross.Amount),
				FeeAmount:   money.FromMinor(se.Fee.Amount),
			}
			if se.Tax != nil {
				e.TaxAmount = money.FromMinor(se.Tax.Amount)
			}
			desc := ""
			switch entryType {
			case domain.EntryFee, domain.EntryAdjustment:
				if e.FeeAmount.IsZero() {
					e.FeeAmount = e.GrossAmount
				}
				e.GrossAmount = decimal.Zero
				desc = se.Description
				if desc == "" && typ == "TAX_ON_FEE" {
					desc = "Tax on Fee"
				}
			}
			e.Metadata = metadata(se.ID, se.CardBrand, desc)
			exp.add(p.ID, e)
		}
		exp.Payouts = append(exp.Payouts, p)
	}
	exp.sumFees()
	return exp, nil
}

// WriteSquareJSON writes an export in the layout ParseSquareJSON reads.
func WriteSquareJSON(w io.Writer, exp *Export) error {
	out := squareExport{Payouts: make([]squarePayout, 0, len(exp.Payouts))}
	for _, p := range exp.Payouts {
		sp := squarePayout{
			ID:          p.ID,
			Status:      p.Status,
			CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			AmountMoney: squareMoney{Amount: cents(p.NetAmount), CurrencyCode: p.Currency},
			Entries:     []squareEntry{},
		}
		if p.ArrivalDate != nil {
			sp.ArrivalDate = p.ArrivalDate.UTC().Format("2006-01-02")
		}
		usd := func(minor int64) squareMoney { return squareMoney{Amount: minor, CurrencyCode: p.Currency} }
		for i, e := range exp.Details[p.ID] {
			typ := string(e.Type)
			if e.Type == domain.EntryPayment {
				typ = string(domain.EntryCharge)
			}
			gross, fee := cents(e.GrossAmount), cents(e.FeeAmount)
			se := squareEntry{
				ID:          entryID(e, p.ID, i),
				Type:        typ,
				EffectiveAt: sp.CreatedAt,
				Gross:       usd(gross),
				Fee:         usd(fee),
				Net:         usd(gross + fee),
				CardBrand:   e.Metadata[domain.MetaCardBrand],
				Description: e.FeeDescription(),
			}
			if !e.TaxAmount.IsZero() {
				tax := usd(cents(e.TaxAmount))
				se.Tax = &tax
			}
			sp.Entries = append(sp.Entries, se)
		}
		out.Payouts = append(out.Payouts, sp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
