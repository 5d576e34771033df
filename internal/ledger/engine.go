// Package ledger holds the transactional core: it validates incoming
// transactions, computes the signed delta, and drives a storage backend
// that applies the balance mutation and the log append as one atomic
// unit per customer.
package ledger

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/mstanton/ledgerd/internal/models"
)

// MaxDescriptionLen bounds the transaction description in characters,
// not bytes (1..10).
const MaxDescriptionLen = 10

// Store is the contract a storage backend must satisfy.
//
// Apply must behave as a per-customer exclusion region: resolve the
// customer, check candidate = balance + entry.Delta against the
// overdraft bound, and either commit the new balance together with the
// log append or change nothing and return ErrLimitExceeded. Two
// concurrent debits must never both pass a stale balance check.
//
// Statement must return the balance and the up-to-10 most recent
// records as of one consistent commit, never two unrelated reads.
type Store interface {
	Apply(ctx context.Context, customerID int64, entry models.Entry) (models.AccountState, error)
	Statement(ctx context.Context, customerID int64) (models.Statement, error)
}

// Engine is the ledger's public contract: ApplyTransaction and
// GetStatement, nothing else.
type Engine struct {
	store Store
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// ApplyTransaction validates req, then applies it atomically. On
// success exactly one balance mutation and one log append happened; on
// ErrInvalidInput, ErrCustomerNotFound or ErrLimitExceeded, none did.
// Storage failures propagate wrapped and are never folded into the
// domain errors.
func (e *Engine) ApplyTransaction(ctx context.Context, customerID int64, req models.TransactionRequest) (models.AccountState, error) {
	if err := validate(req); err != nil {
		return models.AccountState{}, err
	}

	delta := req.Value
	if req.Kind == models.KindDebit {
		delta = -req.Value
	}

	return e.store.Apply(ctx, customerID, models.Entry{
		Value:       req.Value,
		Kind:        req.Kind,
		Description: req.Description,
		Delta:       delta,
	})
}

// GetStatement returns the customer's balance and 10 most recent
// transactions as one consistent snapshot. Pure read path.
func (e *Engine) GetStatement(ctx context.Context, customerID int64) (models.Statement, error) {
	return e.store.Statement(ctx, customerID)
}

func validate(req models.TransactionRequest) error {
	if req.Value <= 0 {
		return fmt.Errorf("%w: value must be a positive integer", ErrInvalidInput)
	}
	if req.Kind != models.KindCredit && req.Kind != models.KindDebit {
		return fmt.Errorf("%w: type must be %q or %q", ErrInvalidInput, models.KindCredit, models.KindDebit)
	}
	if n := utf8.RuneCountInString(req.Description); n < 1 || n > MaxDescriptionLen {
		return fmt.Errorf("%w: desc must be 1 to %d characters", ErrInvalidInput, MaxDescriptionLen)
	}
	return nil
}
