package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradejoy/internal/core"
	"tradejoy/internal/log"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("transaction not found in journal")

// SQLiteJournal writes ledger transactions through to a SQLite file so the
// ledger can be replayed after a restart.
type SQLiteJournal struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteJournal(dbPath string, logger *log.Logger) (*SQLiteJournal, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps :memory: databases and writes consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteJournal{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

const insertTransaction = `
INSERT INTO transactions (id, kind, amount_cents, description, category, occurred_at, date)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Save implements ledger.Journal
func (j *SQLiteJournal) Save(ctx context.Context, tx core.Transaction) error {
	_, err := j.db.ExecContext(ctx, insertTransaction,
		tx.ID,
		string(tx.Kind),
		tx.Amount.Cents,
		tx.Description,
		string(tx.Category),
		tx.OccurredAt.Format(time.RFC3339Nano),
		tx.Date.String(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %d: %w", tx.ID, err)
	}

	j.logger.DebugContext(ctx, "Transaction saved to SQLite",
		log.FieldTxID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldOperation, log.OpAppend)
	return nil
}

// Delete implements ledger.Journal
func (j *SQLiteJournal) Delete(ctx context.Context, id int64) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

const selectTransactions = `
SELECT id, kind, amount_cents, description, category, occurred_at, date
FROM transactions
ORDER BY occurred_at DESC, id DESC`

// LoadAll implements ledger.Journal. Rows come back newest first.
func (j *SQLiteJournal) LoadAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := j.db.QueryContext(ctx, selectTransactions)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                   core.Transaction
			kind, category       string
			occurredAt, dateText string
		)
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount.Cents, &tx.Description, &category, &occurredAt, &dateText); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		tx.Category = core.Category(category)

		if tx.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at of %d: %w", tx.ID, err)
		}
		d, err := time.Parse("2006-01-02", dateText)
		if err != nil {
			return nil, fmt.Errorf("parse date of %d: %w", tx.ID, err)
		}
		tx.Date = core.Date{Time: d}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

const upsertProfile = `
INSERT INTO business_profile (id, business_name, business_type, daily_target_cents, weekly_target_cents, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    business_name       = excluded.business_name,
    business_type       = excluded.business_type,
    daily_target_cents  = excluded.daily_target_cents,
    weekly_target_cents = excluded.weekly_target_cents,
    updated_at          = excluded.updated_at`

// SaveProfile implements ledger.ProfileStore. There is a single profile row.
func (j *SQLiteJournal) SaveProfile(ctx context.Context, p core.Profile) error {
	_, err := j.db.ExecContext(ctx, upsertProfile,
		p.BusinessName,
		p.BusinessType,
		p.DailyTarget.Cents,
		p.WeeklyTarget.Cents,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save business profile: %w", err)
	}
	j.logger.DebugContext(ctx, "Business profile saved to SQLite", log.FieldOperation, log.OpUpdate)
	return nil
}

// LoadProfile implements ledger.ProfileStore.
func (j *SQLiteJournal) LoadProfile(ctx context.Context) (core.Profile, bool, error) {
	var p core.Profile
	err := j.db.QueryRowContext(ctx, `
SELECT business_name, business_type, daily_target_cents, weekly_target_cents
FROM business_profile WHERE id = 1`).
		Scan(&p.BusinessName, &p.BusinessType, &p.DailyTarget.Cents, &p.WeeklyTarget.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, false, nil
	}
	if err != nil {
		return core.Profile{}, false, fmt.Errorf("load business profile: %w", err)
	}
	return p, true, nil
}
