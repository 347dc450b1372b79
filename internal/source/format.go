package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// Format is a processor's export file format.
type Format struct {
	Source domain.PayoutSourceName
	// Ext is the file extension without the dot.
	Ext   string
	Parse Parser
	Write func(w io.Writer, exp *Export) error
}

// FileName is the conventional export file name, e.g. "stripe_payouts.csv".
func (f Format) FileName() string {
	return fmt.Sprintf("%s_payouts.%s", strings.ToLower(string(f.Source)), f.Ext)
}

var formats = map[domain.PayoutSourceName]Format{
	domain.SourceStripe:  {Source: domain.SourceStripe, Ext: "csv", Parse: ParseStripeCSV, Write: WriteStripeCSV},
	domain.SourceSquare:  {Source: domain.SourceSquare, Ext: "json", Parse: ParseSquareJSON, Write: WriteSquareJSON},
	domain.SourceShopify: {Source: domain.SourceShopify, Ext: "csv", Parse: ParseShopifyCSV, Write: WriteShopifyCSV},
	domain.SourcePayPal:  {Source: domain.SourcePayPal, Ext: "json", Parse: ParsePayPalJSON, Write: WritePayPalJSON},
}

// FormatFor returns the export format of a processor.
func FormatFor(name domain.PayoutSourceName) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("no export format for source %q", name)
	}
	return f, nil
}

// --- helpers ---


// cents converts a decimal amount to minor units.
func cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func entryID(e domain.DetailEntry, payoutID string, i int) string {
	if id := e.Metadata[metaSourceID]; id != "" {
		return id
	}
	return fmt.Sprintf("%s_%d", payoutID, i+1)
}

// metaSourceID carries the processor's own transaction id.
const metaSourceID = "source_id"

func metadata(sourceID, brand, feeDesc string) map[string]string {
	m := map[string]string{}
	if sourceID != "" {
		m[metaSourceID] = sourceID
	}
	if brand != "" {
		m[domain.MetaCardBrand] = brand
	}
	if feeDesc != "" {
		m[domain.MetaFeeDescription] = feeDesc
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
