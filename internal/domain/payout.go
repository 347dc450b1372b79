package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutSourceName string

const (
	SourceSquare  PayoutSourceName = "SQUARE"
	SourceStripe  PayoutSourceName = "STRIPE"
	SourceShopify PayoutSourceName = "SHOPIFY"
	SourcePayPal  PayoutSourceName = "PAYPAL"
)

// AllSources lists every supported processor in a stable order.
var AllSources = []PayoutSourceName{SourceSquare, SourceStripe, SourceShopify, SourcePayPal}

// ParseSource accepts processor names in any case ("Stripe", "stripe", "STRIPE").
func ParseSource(s string) (PayoutSourceName, error) {
	name := PayoutSourceName(strings.ToUpper(strings.TrimSpace(s)))
	switch name {
	case SourceSquare, SourceStripe, SourceShopify, SourcePayPal:
		return name, nil
	}
	return "", fmt.Errorf("unsupported payout source: %q", s)
}

// Payout is a lump-sum net transfer from a processor to the merchant's bank.
type Payout struct {
	ID            string           `json:"id"`
	Source        PayoutSourceName `json:"source"`
	Status        string           `json:"status"`
	NetAmount     decimal.Decimal  `json:"net_amount"`
	ProcessingFee decimal.Decimal  `json:"processing_fee"`
	Currency      string           `json:"currency"`
	CreatedAt     time.Time        `json:"created_at"`
	ArrivalDate   *time.Time       `json:"arrival_date,omitempty"`
}

// PayoutStatusPaid is the status the reconciler requests from sources.
const PayoutStatusPaid = "PAID"
