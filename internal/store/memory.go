package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mstanton/ledgerd/internal/ledger"
	"github.com/mstanton/ledgerd/internal/models"
)

// MemoryLedger keeps the whole ledger in process memory. Each account
// carries its own lock, so writers for the same customer serialize on
// it while other customers proceed untouched, the in-memory analogue
// of the Postgres row lock. An optional WAL makes accepted transactions
// durable: the record is fsynced before the balance moves, and replayed
// over the seed set on startup.
type MemoryLedger struct {
	mu       sync.RWMutex
	accounts map[int64]*memAccount
	wal      WAL
	now      func() time.Time
}

type memAccount struct {
	mu      sync.RWMutex
	limit   int64
	balance int64
	log     []models.TransactionRecord
}

// WAL is the narrow slice of internal/wal the store needs; it keeps the
// WAL swappable in tests.
type WAL interface {
	Write(v any) error
	ReadAll(fn func(raw []byte) error) error
}

// walRecord is the durable form of one accepted transaction.
type walRecord struct {
	CustomerID  int64     `json:"customer_id"`
	ID          uuid.UUID `json:"id"`
	Value       int64     `json:"value"`
	Kind        string    `json:"type"`
	Description string    `json:"description"`
	TS          time.Time `json:"ts"`
}

// NewMemoryLedger seeds the ledger with the given customers and, when a
// WAL is supplied, replays it to recover balances and logs.
func NewMemoryLedger(customers []models.Customer, w WAL) (*MemoryLedger, error) {
	m := &MemoryLedger{
		accounts: make(map[int64]*memAccount, len(customers)),
		wal:      w,
		now:      time.Now,
	}
	for _, c := range customers {
		m.accounts[c.ID] = &memAccount{limit: c.OverdraftLimit, balance: c.Balance}
	}
	if w != nil {
		if err := m.recover(); err != nil {
			return nil, fmt.Errorf("wal recovery failed: %w", err)
		}
	}
	return m, nil
}

// recover replays the WAL in write order. Only accepted transactions
// were ever logged, so every record must apply cleanly.
func (m *MemoryLedger) recover() error {
	return m.wal.ReadAll(func(raw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		acct, ok := m.accounts[rec.CustomerID]
		if !ok {
			return fmt.Errorf("record for unknown customer %d", rec.CustomerID)
		}
		delta := rec.Value
		if rec.Kind == models.KindDebit {
			delta = -rec.Value
		}
		acct.balance += delta
		acct.log = append(acct.log, models.TransactionRecord{
			ID:          rec.ID,
			Value:       rec.Value,
			Kind:        rec.Kind,
			Description: rec.Description,
			TS:          rec.TS,
		})
		return nil
	})
}

func (m *MemoryLedger) account(id int64) *memAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[id]
}

// Apply checks the overdraft bound and commits the balance mutation
// together with the log append under the account's write lock. The WAL
// write happens inside the same critical section, before the mutation,
// so a crash can lose a rejected request but never an accepted one.
func (m *MemoryLedger) Apply(ctx context.Context, customerID int64, entry models.Entry) (models.AccountState, error) {
	acct := m.account(customerID)
	if acct == nil {
		return models.AccountState{}, ledger.ErrCustomerNotFound
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	candidate := acct.balance + entry.Delta
	if candidate < -acct.limit {
		return models.AccountState{}, ledger.ErrLimitExceeded
	}

	rec := models.TransactionRecord{
		ID:          uuid.New(),
		Value:       entry.Value,
		Kind:        entry.Kind,
		Description: entry.Description,
		TS:          m.now(),
	}

	if m.wal != nil {
		err := m.wal.Write(walRecord{
			CustomerID:  customerID,
			ID:          rec.ID,
			Value:       rec.Value,
			Kind:        rec.Kind,
			Description: rec.Description,
			TS:          rec.TS,
		})
		if err != nil {
			return models.AccountState{}, fmt.Errorf("wal write failed: %w", err)
		}
	}

	acct.balance = candidate
	acct.log = append(acct.log, rec)

	return models.AccountState{Balance: candidate, OverdraftLimit: acct.limit}, nil
}

// Statement reads the balance and the newest 10 records under the
// account's read lock, so the pair can never interleave with a write.
func (m *MemoryLedger) Statement(ctx context.Context, customerID int64) (models.Statement, error) {
	acct := m.account(customerID)
	if acct == nil {
		return models.Statement{}, ledger.ErrCustomerNotFound
	}

	acct.mu.RLock()
	defer acct.mu.RUnlock()

	stmt := models.Statement{
		Balance: models.Balance{
			Total:          acct.balance,
			Date:           m.now(),
			OverdraftLimit: acct.limit,
		},
	}

	// Newest first: the log is in acceptance order, so walk the tail.
	n := len(acct.log)
	limit := 10
	if n < limit {
		limit = n
	}
	for i := 0; i < limit; i++ {
		stmt.RecentTransactions = append(stmt.RecentTransactions, acct.log[n-1-i])
	}

	return stmt, nil
}

var _ ledger.Store = (*MemoryLedger)(nil)
