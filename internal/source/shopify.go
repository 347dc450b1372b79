package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

var shopifyColumns = []string{
	"Transaction Date", "Type", "Order", "Card Brand", "Payout Status",
	"Payout Date", "Payout ID", "Amount", "Fee", "Net", "Tax", "Currency", "Description",
}

var shopifyTypes = map[string]domain.EntryType{
	"charge":          domain.EntryCharge,
	"order":           domain.EntryCharge,
	"sale":            domain.EntryCharge,
	"payment":         domain.EntryPayment,
	"refund":          domain.EntryRefund,
	"fee":             domain.EntryFee,
	"shopify_fee":     domain.EntryFee,
	"application_fee": domain.EntryFee,
	"adjustment":      domain.EntryAdjustment,
}

const shopifyTimeLayout = "2006-01-02 15:04:05 -0700"

// ParseShopifyCSV parses a Shopify Payments transaction export. Amounts are
// decimal strings and fee is positive when charged. The export has no payout
// rows: a payout is the group of transactions sharing a Payout ID and its
// net amount is the sum of their Net column.
func ParseShopifyCSV(data []byte) (*Export, error) {
	table, err := readCSV(data, "Type", "Payout ID", "Payout Date", "Amount", "Fee", "Net")
	if err != nil {
		return nil, err
	}
	exp := newExport()
	index := make(map[string]int)

	for i, row := range table.rows {
		lineNum := table.firstLine + i
		payoutID := table.get(row, "Payout ID")
		if payoutID == "" {
			// Not yet paid out.
			exp.Unassigned++
			continue
		}

		amount, err := money.Parse(table.get(row, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}
		fee, err := money.Parse(table.get(row, "Fee"))
		if err != nil {
			return nil, fmt.Errorf("line %d fee: %w", lineNum, err)
		}
		net, err := money.Parse(table.get(row, "Net"))
		if err != nil {
			return nil, fmt.Errorf("line %d net: %w", lineNum, err)
		}
		tax, err := money.Parse(table.get(row, "Tax"))
		if err != nil {
			return nil, fmt.Errorf("line %d tax: %w", lineNum, err)
		}

		pi, ok := index[payoutID]
		if !ok {
			created, err := parseTime(table.get(row, "Payout Date"))
			if err != nil {
				return nil, fmt.Errorf("line %d payout date: %w", lineNum, err)
			}
			exp.Payouts = append(exp.Payouts, domain.Payout{
				ID:        payoutID,
				Source:    domain.SourceShopify,
				Status:    strings.ToUpper(table.get(row, "Payout Status")),
				Currency:  strings.ToUpper(table.get(row, "Currency")),
				CreatedAt: created,
			})
			pi = len(exp.Payouts) - 1
			index[payoutID] = pi
		}
		p := &exp.Payouts[pi]
		p.NetAmount = p.NetAmount.Add(net)

		typ := strings.ToLower(table.get(row, "Type"))
		entryType, ok := shopifyTypes[typ]
		if !ok {
			exp.reject(payoutID, unknownType(domain.SourceShopify, typ))
			continue
		}
		e := domain.DetailEntry{Type: entryType, TaxAmount: tax}
		switch entryType {
		case domain.EntryFee, domain.EntryAdjustment:
			e.FeeAmount = amount
			e.Metadata = metadata(table.get(row, "Order"), "", table.get(row, "Description"))
		default:
			e.GrossAmount = amount
			e.FeeAmount = fee.Neg()
			e.Metadata = metadata(table.get(row, "Order"), table.get(row, "Card Brand"), "")
		}
		exp.add(payoutID, e)
	}
	exp.sumFees()
	return exp, nil
}

// WriteShopifyCSV writes an export in the layout ParseShopifyCSV reads. The
// payout net amount is not written; it must equal the sum of entry nets.
func WriteShopifyCSV(w io.Writer, exp *Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(shopifyColumns); err != nil {
		return err
	}
	for _, p := range exp.Payouts {
		date := p.CreatedAt.UTC().Format(shopifyTimeLayout)
		sum := decimal.Zero
		for i, e := range exp.Details[p.ID] {
			var typ string
			amount, fee := e.GrossAmount, e.FeeAmount.Neg()
			switch e.Type {
			case domain.EntryCharge:
				typ = "charge"
			case domain.EntryPayment:
				typ = "payment"
			case domain.EntryRefund:
				typ = "refund"
			case domain.EntryFee:
				typ, amount, fee = "fee", e.FeeAmount, decimal.Zero
			case domain.EntryAdjustment:
				typ, amount, fee = "adjustment", e.FeeAmount, decimal.Zero
			default:
				return fmt.Errorf("payout %s: %w", p.ID, unknownType(domain.SourceShopify, string(e.Type)))
			}
			net := amount.Sub(fee)
			sum = sum.Add(net)
			if err := cw.Write([]string{
				date, typ, entryID(e, p.ID, i), e.Metadata[domain.MetaCardBrand], strings.ToLower(p.Status),
				date, p.ID, amount.StringFixed(2), fee.StringFixed(2), net.StringFixed(2),
				e.TaxAmount.StringFixed(2), p.Currency, e.FeeDescription(),
			}); err != nil {
				return err
			}
		}
		if !sum.Equal(p.NetAmount) {
			return fmt.Errorf("payout %s: entry nets sum to %s, payout is %s", p.ID, sum.StringFixed(2), p.NetAmount.StringFixed(2))
		}
	}
	cw.Flush()
	return cw.Error()
}
