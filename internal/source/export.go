// Package source reads processor export files (Stripe, Square, Shopify,
// PayPal) and serves them as payout sources. Processor vocabularies are
// mapped to the canonical entry types here; a payout with an entry that
// cannot be mapped is reported as invalid instead of being dropped.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// Export is one parsed processor file.
type Export struct {
	Payouts []domain.Payout
	Details map[string][]domain.DetailEntry
	// Invalid holds payouts whose entries failed normalization.
	Invalid map[string]error
	// Unassigned counts transactions not yet attached to a payout.
	Unassigned int
}

func newExport() *Export {
	return &Export{
		Details: make(map[string][]domain.DetailEntry),
		Invalid: make(map[string]error),
	}
}

func (e *Export) add(payoutID string, entry domain.DetailEntry) {
	e.Details[payoutID] = append(e.Details[payoutID], entry)
}

// reject keeps the first error per payout.
func (e *Export) reject(payoutID string, err error) {
	if _, ok := e.Invalid[payoutID]; !ok {
		e.Invalid[payoutID] = err
	}
}

// sumFees derives each payout's processing fee from its entries. Charge
// and fee lines add; fees returned on refunds subtract.
func (e *Export) sumFees() {
	for i := range e.Payouts {
		p := &e.Payouts[i]
		p.ProcessingFee = decimal.Zero
		for _, d := range e.Details[p.ID] {
			switch d.Type {
			case domain.EntryCharge, domain.EntryPayment, domain.EntryFee:
				p.ProcessingFee = p.ProcessingFee.Add(d.FeeAmount.Abs())
			case domain.EntryRefund:
				p.ProcessingFee = p.ProcessingFee.Sub(d.FeeAmount.Abs())
			}
		}
	}
}

// unknownType is the error for a processor type with no canonical mapping.
func unknownType(src domain.PayoutSourceName, typ string) error {
	return fmt.Errorf("%w: %s type %q", domain.ErrInvalidEntry, src, typ)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// parseTime accepts the timestamp layouts processors use in exports.
// Results are in UTC; values without a zone are read as UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// csvTable is a CSV file addressed by header name.
type csvTable struct {
	cols map[string]int
	rows [][]string
	// firstLine is the file line number of rows[0].
	firstLine int
}

func readCSV(data []byte, required ...string) (*csvTable, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &csvTable{cols: make(map[string]int, len(header)), firstLine: 2}
	for i, h := range header {
		t.cols[normalizeHeader(h)] = i
	}
	for _, r := range required {
		if _, ok := t.cols[normalizeHeader(r)]; !ok {
			return nil, fmt.Errorf("missing column %q", r)
		}
	}

	lineNum := 1
	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.ToLower(strings.TrimSpace(h))
}

// get returns the named cell, or "" when the column is absent.
func (t *csvTable) get(row []string, name string) string {
	i, ok := t.cols[normalizeHeader(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
