package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

const entryColumns = `payout_id, date, source, status, gross_sales, net_deposit,
	calculated_fees, ledger_fee, sales_tax_collected, refund_amount,
	refund_fee_reversal, variance_amount, variance_type, variance_reason,
	ledger_deposit_id, ledger_deposit_amount, updated_at`

// EntryRepo is the sqlite audit store. One row per payout; saving again
// replaces the row.
type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

// Save upserts the entry in a single statement.
func (r *EntryRepo) Save(ctx context.Context, e domain.ReconciliationEntry) error {
	var vtype, reason, depID, depAmt any
	if e.VarianceType != "" {
		vtype = string(e.VarianceType)
	}
	if e.VarianceReason != "" {
		reason = e.VarianceReason
	}
	if e.DepositID != "" {
		depID = e.DepositID
	}
	if e.DepositAmount != nil {
		depAmt = e.DepositAmount.String()
	}
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (`+entryColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(payout_id) DO UPDATE SET
			date = excluded.date,
			source = excluded.source,
			status = excluded.status,
			gross_sales = excluded.gross_sales,
			net_deposit = excluded.net_deposit,
			calculated_fees = excluded.calculated_fees,
			ledger_fee = excluded.ledger_fee,
			sales_tax_collected = excluded.sales_tax_collected,
			refund_amount = excluded.refund_amount,
			refund_fee_reversal = excluded.refund_fee_reversal,
			variance_amount = excluded.variance_amount,
			variance_type = excluded.variance_type,
			variance_reason = excluded.variance_reason,
			ledger_deposit_id = excluded.ledger_deposit_id,
			ledger_deposit_amount = excluded.ledger_deposit_amount,
			updated_at = excluded.updated_at`,
		e.PayoutID, e.Date, string(e.Source), string(e.Status),
		e.GrossSales.String(), e.NetDeposit.String(), e.CalculatedFees.String(),
		e.LedgerFee.String(), e.SalesTaxCollected.String(), e.RefundAmount.String(),
		e.RefundFeeReversal.String(), e.VarianceAmount.String(),
		vtype, reason, depID, depAmt, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save entry %s: %w", e.PayoutID, err)
	}
	return nil
}

// Get returns the entry for a payout, or domain.ErrEntryNotFound.
func (r *EntryRepo) Get(ctx context.Context, payoutID string) (*domain.ReconciliationEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM audit_log WHERE payout_id = ?", payoutID)
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", payoutID, err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("payout %s: %w", payoutID, domain.ErrEntryNotFound)
	}
	return &entries[0], nil
}

// Query lists entries ordered by date then payout id. A zero Limit returns
// every matching row.
func (r *EntryRepo) Query(ctx context.Context, f domain.EntryFilter) ([]domain.ReconciliationEntry, error) {
	where, args := buildEntryWhere(f)

	q := "SELECT " + entryColumns + " FROM audit_log" + where + " ORDER BY date, payout_id"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count returns the number of entries matching f, ignoring paging.
func (r *EntryRepo) Count(ctx context.Context, f domain.EntryFilter) (int, error) {
	where, args := buildEntryWhere(f)
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

type EntrySummary struct {
	TotalCount       int                        `json:"total_count"`
	OpenVariance     decimal.Decimal            `json:"open_variance"`
	ByStatus         map[string]int             `json:"by_status"`
	BySource         map[string]int             `json:"by_source"`
	ByVarianceType   map[string]int             `json:"by_variance_type"`
	VarianceBySource map[string]decimal.Decimal `json:"open_variance_by_source"`
}

// Summary aggregates the audit log. OpenVariance sums |variance| over
// entries that still need action. Sums are done in Go because the columns
// hold decimal text.
func (r *EntryRepo) Summary(ctx context.Context) (*EntrySummary, error) {
	s := &EntrySummary{
		OpenVariance:     decimal.Zero,
		ByStatus:         make(map[string]int),
		BySource:         make(map[string]int),
		ByVarianceType:   make(map[string]int),
		VarianceBySource: make(map[string]decimal.Decimal),
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&s.TotalCount); err != nil {
		return nil, err
	}
	if err := scanGroupCount(ctx, r.db, "status", s.ByStatus); err != nil {
		return nil, err
	}
	if err := scanGroupCount(ctx, r.db, "source", s.BySource); err != nil {
		return nil, err
	}
	if err := scanGroupCount(ctx, r.db, "variance_type", s.ByVarianceType); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT source, variance_amount FROM audit_log WHERE status IN (?, ?)",
		string(domain.StatusVarianceDetected), string(domain.StatusMissingDeposit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var src, amt string
		if err := rows.Scan(&src, &amt); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, fmt.Errorf("variance for %s: %w", src, err)
		}
		v = v.Abs()
		s.OpenVariance = s.OpenVariance.Add(v)
		s.VarianceBySource[src] = s.VarianceBySource[src].Add(v)
	}
	return s, rows.Err()
}

// --- helpers ---

func buildEntryWhere(f domain.EntryFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.VarianceType != "" {
		clauses = append(clauses, "variance_type = ?")
		args = append(args, string(f.VarianceType))
	}
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanGroupCount skips NULL groups.
func scanGroupCount(ctx context.Context, db *sql.DB, col string, m map[string]int) error {
	rows, err := db.QueryContext(ctx,
		"SELECT "+col+", COUNT(*) FROM audit_log WHERE "+col+" IS NOT NULL GROUP BY "+col,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v
	}
	return rows.Err()
}

func scanEntries(rows *sql.Rows) ([]domain.ReconciliationEntry, error) {
	var entries []domain.ReconciliationEntry
	for rows.Next() {
		var e domain.ReconciliationEntry
		var source, status, updatedAt string
		var gross, net, fees, ledgerFee, tax, refunds, reversal, variance string
		var vtype, reason, depID, depAmt sql.NullString

		err := rows.Scan(
			&e.PayoutID, &e.Date, &source, &status,
			&gross, &net, &fees, &ledgerFee, &tax, &refunds, &reversal, &variance,
			&vtype, &reason, &depID, &depAmt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		e.Source = domain.PayoutSourceName(source)
		e.Status = domain.ReconciliationStatus(status)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		for _, col := range []struct {
			dst *decimal.Decimal
			raw string
		}{
			{&e.GrossSales, gross}, {&e.NetDeposit, net}, {&e.CalculatedFees, fees},
			{&e.LedgerFee, ledgerFee}, {&e.SalesTaxCollected, tax}, {&e.RefundAmount, refunds},
			{&e.RefundFeeReversal, reversal}, {&e.VarianceAmount, variance},
		} {
			if *col.dst, err = decimal.NewFromString(col.raw); err != nil {
				return nil, fmt.Errorf("entry %s: %w", e.PayoutID, err)
			}
		}

		if vtype.Valid {
			e.VarianceType = domain.VarianceType(vtype.String)
		}
		if reason.Valid {
			e.VarianceReason = reason.String
		}
		if depID.Valid {
			e.DepositID = depID.String
		}
		if depAmt.Valid {
			amt, err := decimal.NewFromString(depAmt.String)
			if err != nil {
				return nil, fmt.Errorf("entry %s deposit amount: %w", e.PayoutID, err)
			}
			e.DepositAmount = &amt
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.AuditStore = (*EntryRepo)(nil)

// IsNotFound reports whether err means the payout has no stored entry.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrEntryNotFound)
}
