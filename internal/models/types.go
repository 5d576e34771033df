package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds as they appear on the wire.
const (
	KindCredit = "c"
	KindDebit  = "d"
)

// Customer represents one ledger account row. OverdraftLimit is the
// maximum amount Balance may go negative: Balance >= -OverdraftLimit
// holds at all times.
type Customer struct {
	ID             int64 `json:"id"`
	OverdraftLimit int64 `json:"overdraft_limit"`
	Balance        int64 `json:"balance"`
}

// TransactionRequest is the payload from the client. Value is a
// magnitude; the sign is conveyed by Kind.
type TransactionRequest struct {
	Value       int64  `json:"value"`
	Kind        string `json:"type"`
	Description string `json:"desc"`
}

// Entry is a validated mutation handed to a storage backend.
// Delta is the signed amount: +Value for a credit, -Value for a debit.
type Entry struct {
	Value       int64
	Kind        string
	Description string
	Delta       int64
}

// TransactionRecord is one committed entry in a customer's log. The ID
// is an external tracking handle; recency ordering is by TS with ties
// broken by insertion order, so the ID stays out of the wire shape.
type TransactionRecord struct {
	ID          uuid.UUID `json:"-"`
	Value       int64     `json:"value"`
	Kind        string    `json:"type"`
	Description string    `json:"description"`
	TS          time.Time `json:"ts"`
}

// AccountState is the response to an accepted transaction.
type AccountState struct {
	Balance        int64 `json:"balance"`
	OverdraftLimit int64 `json:"overdraft_limit"`
}

// Balance is the header of a statement snapshot. Date is the instant
// the snapshot was taken.
type Balance struct {
	Total          int64     `json:"total"`
	Date           time.Time `json:"date"`
	OverdraftLimit int64     `json:"overdraft_limit"`
}

// Statement is a consistent (balance, recent transactions) pair.
// RecentTransactions is nil when the customer has no transactions yet,
// which marshals as JSON null rather than an empty array.
type Statement struct {
	Balance            Balance             `json:"balance"`
	RecentTransactions []TransactionRecord `json:"recent_transactions"`
}
