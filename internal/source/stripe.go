package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

var stripeColumns = []string{
	"id", "type", "amount", "fee", "net", "tax", "currency",
	"created", "available_on", "automatic_payout_id", "status",
	"description", "card_brand",
}

// stripeTypes maps balance transaction types to entry types.
var stripeTypes = map[string]domain.EntryType{
	"charge":          domain.EntryCharge,
	"payment":         domain.EntryPayment,
	"refund":          domain.EntryRefund,
	"payment_refund":  domain.EntryRefund,
	"stripe_fee":      domain.EntryFee,
	"application_fee": domain.EntryFee,
	"adjustment":      domain.EntryAdjustment,
}

// ParseStripeCSV parses a Stripe balance transaction export. Amounts are
// integers in cents; fee is positive when charged and negative when returned.
// Rows of type "payout" are the payouts; every other row belongs to the
// payout named in automatic_payout_id.
//
// Expected header (column order is free, tax/description/card_brand optional):
//
//	id,type,amount,fee,net,tax,currency,created,available_on,automatic_payout_id,status,description,card_brand
func ParseStripeCSV(data []byte) (*Export, error) {
	table, err := readCSV(data, "id", "type", "amount", "fee", "created", "automatic_payout_id")
	if err != nil {
		return nil, err
	}
	exp := newExport()

	for i, row := range table.rows {
		lineNum := table.firstLine + i
		typ := strings.ToLower(table.get(row, "type"))
		payoutID := table.get(row, "automatic_payout_id")

		amount, err := stripeCents(table.get(row, "amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}
		fee, err := stripeCents(table.get(row, "fee"))
		if err != nil {
			return nil, fmt.Errorf("line %d fee: %w", lineNum, err)
		}
		tax, err := stripeCents(table.get(row, "tax"))
		if err != nil {
			return nil, fmt.Errorf("line %d tax: %w", lineNum, err)
		}

		if typ == "payout" {
			created, err := parseTime(table.get(row, "created"))
			if err != nil {
				return nil, fmt.Errorf("line %d created: %w", lineNum, err)
			}
			p := domain.Payout{
				ID:        table.get(row, "id"),
				Source:    domain.SourceStripe,
				Status:    strings.ToUpper(table.get(row, "status")),
				NetAmount: money.FromMinor(-amount),
				Currency:  strings.ToUpper(table.get(row, "currency")),
				CreatedAt: created,
			}
			if s := table.get(row, "available_on"); s != "" {
				arrival, err := parseTime(s)
				if err != nil {
					return nil, fmt.Errorf("line %d available_on: %w", lineNum, err)
				}
				p.ArrivalDate = &arrival
			}
			exp.Payouts = append(exp.Payouts, p)
			continue
		}

		if payoutID == "" {
			return nil, fmt.Errorf("line %d: transaction %s has no payout", lineNum, table.get(row, "id"))
		}
		entryType, ok := stripeTypes[typ]
		if !ok {
			exp.reject(payoutID, unknownType(domain.SourceStripe, typ))
			continue
		}

		e := domain.DetailEntry{Type: entryType, TaxAmount: money.FromMinor(tax)}
		switch entryType {
		case domain.EntryFee, domain.EntryAdjustment:
			e.FeeAmount = money.FromMinor(amount)
			e.Metadata = metadata(table.get(row, "id"), "", table.get(row, "description"))
		default:
			e.GrossAmount = money.FromMinor(amount)
			e.FeeAmount = money.FromMinor(-fee)
			e.Metadata = metadata(table.get(row, "id"), table.get(row, "card_brand"), "")
		}
		exp.add(payoutID, e)
	}

	exp.sumFees()
	return exp, nil
}

func stripeCents(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// WriteStripeCSV writes an export in the layout ParseStripeCSV reads.
func WriteStripeCSV(w io.Writer, exp *Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(stripeColumns); err != nil {
		return err
	}
	for _, p := range exp.Payouts {
		arrival := ""
		if p.ArrivalDate != nil {
			arrival = p.ArrivalDate.UTC().Format("2006-01-02")
		}
		net := cents(p.NetAmount)
		if err := cw.Write([]string{
			p.ID, "payout", itoa(-net), "0", itoa(-net), "0",
			strings.ToLower(p.Currency), stripeTime(p.CreatedAt), arrival,
			p.ID, strings.ToLower(p.Status), "STRIPE PAYOUT", "",
		}); err != nil {
			return err
		}
		for i, e := range exp.Details[p.ID] {
			var typ string
			amount, fee := cents(e.GrossAmount), -cents(e.FeeAmount)
			switch e.Type {
			case domain.EntryCharge:
				typ = "charge"
			case domain.EntryPayment:
				typ = "payment"
			case domain.EntryRefund:
				typ = "refund"
			case domain.EntryFee:
				typ, amount, fee = "stripe_fee", cents(e.FeeAmount), 0
			case domain.EntryAdjustment:
				typ, amount, fee = "adjustment", cents(e.FeeAmount), 0
			default:
				return fmt.Errorf("payout %s: %w", p.ID, unknownType(domain.SourceStripe, string(e.Type)))
			}
			if err := cw.Write([]string{
				entryID(e, p.ID, i), typ, itoa(amount), itoa(fee), itoa(amount - fee), itoa(cents(e.TaxAmount)),
				strings.ToLower(p.Currency), stripeTime(p.CreatedAt), "",
				p.ID, "available", e.FeeDescription(), e.Metadata[domain.MetaCardBrand],
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func stripeTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
