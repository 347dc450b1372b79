package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection: writes are serialized and ":memory:" stays a single
	// database instead of one per pooled connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

// Money columns are TEXT holding decimal strings so no value passes
// through a float.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			payout_id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			gross_sales TEXT NOT NULL,
			net_deposit TEXT NOT NULL,
			calculated_fees TEXT NOT NULL,
			ledger_fee TEXT NOT NULL,
			sales_tax_collected TEXT NOT NULL,
			refund_amount TEXT NOT NULL,
			refund_fee_reversal TEXT NOT NULL,
			variance_amount TEXT NOT NULL,
			variance_type TEXT,
			variance_reason TEXT,
			ledger_deposit_id TEXT,
			ledger_deposit_amount TEXT,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(status)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_source ON audit_log(source)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_date ON audit_log(date)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			period_start DATETIME NOT NULL,
			period_end DATETIME NOT NULL,
			auto_fix INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			total INTEGER NOT NULL,
			counts TEXT NOT NULL,
			fixes_applied INTEGER NOT NULL,
			source_errors TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
