package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

type depositRecord struct {
	ID          string `json:"id"`
	TxnDate     string `json:"txn_date"`
	TotalAmount string `json:"total_amount"`
	FeeAmount   string `json:"fee_amount"`
	Memo        string `json:"memo"`
	AccountName string `json:"account_name"`
	Currency    string `json:"currency"`
}

// LoadDeposits reads a JSON array of deposits exported from the accounting
// system. txn_date may be a date or an RFC 3339 timestamp; amounts are
// strings such as "1,024.50".
func LoadDeposits(path string) ([]domain.LedgerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deposits: %w", err)
	}
	return ParseDeposits(data)
}

func ParseDeposits(data []byte) ([]domain.LedgerEntry, error) {
	var recs []depositRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode deposits: %w", err)
	}

	out := make([]domain.LedgerEntry, 0, len(recs))
	for i, r := range recs {
		if r.ID == "" {
			return nil, fmt.Errorf("deposit %d: missing id", i)
		}
		date, err := parseDate(r.TxnDate)
		if err != nil {
			return nil, fmt.Errorf("deposit %s: %w", r.ID, err)
		}
		total, err := money.Parse(r.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("deposit %s: %w", r.ID, err)
		}
		fee, err := money.Parse(r.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("deposit %s: %w", r.ID, err)
		}
		cur := strings.ToUpper(r.Currency)
		if cur == "" {
			cur = "USD"
		}
		out = append(out, domain.LedgerEntry{
			ID:          r.ID,
			TxnDate:     date,
			TotalAmount: total,
			FeeAmount:   fee,
			Memo:        r.Memo,
			AccountName: r.AccountName,
			Currency:    cur,
		})
	}
	return out, nil
}

// WriteDeposits writes deposits in the format LoadDeposits reads.
func WriteDeposits(w io.Writer, deps []domain.LedgerEntry) error {
	recs := make([]depositRecord, 0, len(deps))
	for _, d := range deps {
		recs = append(recs, depositRecord{
			ID:          d.ID,
			TxnDate:     d.TxnDate.UTC().Format(time.RFC3339),
			TotalAmount: d.TotalAmount.StringFixed(2),
			FeeAmount:   d.FeeAmount.StringFixed(2),
			Memo:        d.Memo,
			AccountName: d.AccountName,
			Currency:    d.Currency,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("txn_date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
