// Package store provides the storage backends behind the ledger
// engine: a Postgres implementation for production and an in-memory
// implementation for development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mstanton/ledgerd/internal/ledger"
	"github.com/mstanton/ledgerd/internal/models"
)

// PostgresLedger persists customers and transactions in two tables.
// The per-customer exclusion region is the row lock taken by
// SELECT ... FOR UPDATE: writers for the same customer queue on the
// row, writers for different customers do not block each other.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(connString string) (*PostgresLedger, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresLedger{db: pool}, nil
}

func (s *PostgresLedger) Close() {
	s.db.Close()
}

// Apply runs the compare-and-apply and the log append in one database
// transaction: both commit or neither does.
func (s *PostgresLedger) Apply(ctx context.Context, customerID int64, entry models.Entry) (models.AccountState, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.AccountState{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance, limit int64
	err = tx.QueryRow(ctx,
		"SELECT balance, overdraft_limit FROM customers WHERE id = $1 FOR UPDATE",
		customerID,
	).Scan(&balance, &limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AccountState{}, ledger.ErrCustomerNotFound
		}
		return models.AccountState{}, fmt.Errorf("lock acquisition failed: %w", err)
	}

	candidate := balance + entry.Delta
	if candidate < -limit {
		return models.AccountState{}, ledger.ErrLimitExceeded
	}

	_, err = tx.Exec(ctx,
		"UPDATE customers SET balance = $1 WHERE id = $2",
		candidate, customerID,
	)
	if err != nil {
		return models.AccountState{}, fmt.Errorf("balance update failed: %w", err)
	}

	// clock_timestamp(), not now(): now() is the BEGIN time, and BEGIN
	// happens before the lock wait, so contending applies would get
	// timestamps in arrival order instead of acceptance order. The seq
	// value is also assigned here, while the row lock is held.
	var ts time.Time
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (id, customer_id, value, type, description, ts)
		 VALUES ($1, $2, $3, $4, $5, clock_timestamp()) RETURNING ts`,
		uuid.New(), customerID, entry.Value, entry.Kind, entry.Description,
	).Scan(&ts)
	if err != nil {
		return models.AccountState{}, fmt.Errorf("transaction insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.AccountState{}, fmt.Errorf("tx commit failed: %w", err)
	}

	return models.AccountState{Balance: candidate, OverdraftLimit: limit}, nil
}

// Statement reads the balance and the 10 most recent transactions
// inside one repeatable-read transaction, so the pair reflects a single
// point in the commit order.
func (s *PostgresLedger) Statement(ctx context.Context, customerID int64) (models.Statement, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return models.Statement{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var stmt models.Statement
	err = tx.QueryRow(ctx,
		"SELECT balance, overdraft_limit, now() FROM customers WHERE id = $1",
		customerID,
	).Scan(&stmt.Balance.Total, &stmt.Balance.OverdraftLimit, &stmt.Balance.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Statement{}, ledger.ErrCustomerNotFound
		}
		return models.Statement{}, fmt.Errorf("customer read failed: %w", err)
	}

	// seq, not ts, is the recency key: it is assigned under the row
	// lock, so per customer it increases in exact acceptance order.
	rows, err := tx.Query(ctx,
		`SELECT id, value, type, description, ts
		 FROM transactions
		 WHERE customer_id = $1
		 ORDER BY seq DESC
		 LIMIT 10`,
		customerID,
	)
	if err != nil {
		return models.Statement{}, fmt.Errorf("transaction read failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.Value, &rec.Kind, &rec.Description, &rec.TS); err != nil {
			return models.Statement{}, fmt.Errorf("transaction scan failed: %w", err)
		}
		stmt.RecentTransactions = append(stmt.RecentTransactions, rec)
	}
	if err := rows.Err(); err != nil {
		return models.Statement{}, fmt.Errorf("transaction read failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Statement{}, fmt.Errorf("tx commit failed: %w", err)
	}

	return stmt, nil
}

var _ ledger.Store = (*PostgresLedger)(nil)
