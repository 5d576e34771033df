package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/mstanton/ledgerd/internal/ledger"
	"github.com/mstanton/ledgerd/internal/models"
	"github.com/mstanton/ledgerd/internal/store"
)

func newEngine(t *testing.T, customers ...models.Customer) *ledger.Engine {
	t.Helper()
	mem, err := store.NewMemoryLedger(customers, nil)
	if err != nil {
		t.Fatalf("NewMemoryLedger: %v", err)
	}
	return ledger.New(mem)
}

func credit(value int64) models.TransactionRequest {
	return models.TransactionRequest{Value: value, Kind: models.KindCredit, Description: "desc"}
}

func debit(value int64) models.TransactionRequest {
	return models.TransactionRequest{Value: value, Kind: models.KindDebit, Description: "desc"}
}

// TestScenario walks the canonical sequence: a credit of 1000 lands, a
// debit of 2001 would reach -1001 and is rejected without touching the
// ledger, and the statement reflects exactly the one accepted entry.
func TestScenario(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
	ctx := context.Background()

	state, err := e.ApplyTransaction(ctx, 1, credit(1000))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if state.Balance != 1000 || state.OverdraftLimit != 1000 {
		t.Fatalf("state=%+v want balance=1000 overdraft_limit=1000", state)
	}

	if _, err := e.ApplyTransaction(ctx, 1, debit(2001)); !errors.Is(err, ledger.ErrLimitExceeded) {
		t.Fatalf("want ErrLimitExceeded, got %v", err)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.Balance.Total != 1000 {
		t.Fatalf("balance total=%d want=1000", stmt.Balance.Total)
	}
	if len(stmt.RecentTransactions) != 1 {
		t.Fatalf("recent=%d want=1", len(stmt.RecentTransactions))
	}
}

// TestValidation checks every InvalidInput class is rejected before any
// state changes.
func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  models.TransactionRequest
	}{
		{"zero value", models.TransactionRequest{Value: 0, Kind: "c", Description: "desc"}},
		{"negative value", models.TransactionRequest{Value: -1000, Kind: "c", Description: "desc"}},
		{"unknown kind", models.TransactionRequest{Value: 100, Kind: "x", Description: "desc"}},
		{"empty kind", models.TransactionRequest{Value: 100, Kind: "", Description: "desc"}},
		{"empty description", models.TransactionRequest{Value: 100, Kind: "d", Description: ""}},
		{"long description", models.TransactionRequest{Value: 100, Kind: "d", Description: "elevenchars"}},
		{"eleven runes", models.TransactionRequest{Value: 100, Kind: "d", Description: "cafés geléa"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
			ctx := context.Background()

			if _, err := e.ApplyTransaction(ctx, 1, tc.req); !errors.Is(err, ledger.ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput, got %v", err)
			}

			stmt, err := e.GetStatement(ctx, 1)
			if err != nil {
				t.Fatalf("statement: %v", err)
			}
			if stmt.Balance.Total != 0 || stmt.RecentTransactions != nil {
				t.Fatalf("rejected request changed state: %+v", stmt)
			}
		})
	}
}

// TestMultiByteDescription: the 10-character bound counts characters,
// so a 10-rune description longer than 10 bytes is accepted.
func TestMultiByteDescription(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
	ctx := context.Background()

	state, err := e.ApplyTransaction(ctx, 1, models.TransactionRequest{
		Value: 100, Kind: models.KindCredit, Description: "caféumlaut",
	})
	if err != nil {
		t.Fatalf("10-rune description rejected: %v", err)
	}
	if state.Balance != 100 {
		t.Fatalf("balance=%d want=100", state.Balance)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(stmt.RecentTransactions) != 1 || stmt.RecentTransactions[0].Description != "caféumlaut" {
		t.Fatalf("recent=%+v", stmt.RecentTransactions)
	}
}

func TestCustomerNotFound(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
	ctx := context.Background()

	if _, err := e.ApplyTransaction(ctx, 6, credit(1000)); !errors.Is(err, ledger.ErrCustomerNotFound) {
		t.Fatalf("apply: want ErrCustomerNotFound, got %v", err)
	}
	if _, err := e.GetStatement(ctx, 6); !errors.Is(err, ledger.ErrCustomerNotFound) {
		t.Fatalf("statement: want ErrCustomerNotFound, got %v", err)
	}

	// Validation runs before customer resolution.
	if _, err := e.ApplyTransaction(ctx, 6, credit(-1)); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

// TestConservation verifies an accepted transaction moves the balance
// by exactly its signed delta and appends exactly one matching record.
func TestConservation(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000, Balance: 500})
	ctx := context.Background()

	state, err := e.ApplyTransaction(ctx, 1, models.TransactionRequest{
		Value: 300, Kind: models.KindDebit, Description: "groceries",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if state.Balance != 200 {
		t.Fatalf("balance=%d want=200", state.Balance)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(stmt.RecentTransactions) != 1 {
		t.Fatalf("recent=%d want=1", len(stmt.RecentTransactions))
	}
	rec := stmt.RecentTransactions[0]
	if rec.Value != 300 || rec.Kind != models.KindDebit || rec.Description != "groceries" {
		t.Fatalf("record=%+v", rec)
	}
}

// TestDebitToExactLimit: a balance of exactly -overdraft_limit is legal.
func TestDebitToExactLimit(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
	ctx := context.Background()

	state, err := e.ApplyTransaction(ctx, 1, debit(1000))
	if err != nil {
		t.Fatalf("debit to limit: %v", err)
	}
	if state.Balance != -1000 {
		t.Fatalf("balance=%d want=-1000", state.Balance)
	}

	if _, err := e.ApplyTransaction(ctx, 1, debit(1)); !errors.Is(err, ledger.ErrLimitExceeded) {
		t.Fatalf("want ErrLimitExceeded, got %v", err)
	}
}

// TestStatementOrdering: after N accepted transactions the statement
// holds min(N, 10) records in reverse acceptance order.
func TestStatementOrdering(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 0})
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		req := models.TransactionRequest{
			Value: int64(i), Kind: models.KindCredit, Description: fmt.Sprintf("t%d", i),
		}
		if _, err := e.ApplyTransaction(ctx, 1, req); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}

		stmt, err := e.GetStatement(ctx, 1)
		if err != nil {
			t.Fatalf("statement after %d: %v", i, err)
		}

		want := i
		if want > 10 {
			want = 10
		}
		if len(stmt.RecentTransactions) != want {
			t.Fatalf("after %d transactions: recent=%d want=%d", i, len(stmt.RecentTransactions), want)
		}
		for j, rec := range stmt.RecentTransactions {
			if wantDesc := fmt.Sprintf("t%d", i-j); rec.Description != wantDesc {
				t.Fatalf("position %d: desc=%q want=%q", j, rec.Description, wantDesc)
			}
		}
	}
}

// TestEmptyStatement: the no-transactions marker is nil, which the API
// serializes as null rather than an empty array.
func TestEmptyStatement(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})

	stmt, err := e.GetStatement(context.Background(), 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.RecentTransactions != nil {
		t.Fatalf("want nil recent transactions, got %v", stmt.RecentTransactions)
	}
	if stmt.Balance.Date.IsZero() {
		t.Fatal("statement date not set")
	}
}

// TestConcurrentOverdraftBoundary issues 1001 unit debits against a
// limit of 1000: exactly 1000 must land, exactly one must be rejected,
// and the final balance is exactly -1000.
func TestConcurrentOverdraftBoundary(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000})
	ctx := context.Background()

	var accepted, rejected int64
	var g errgroup.Group
	for i := 0; i < 1001; i++ {
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 1, debit(1))
			switch {
			case err == nil:
				atomic.AddInt64(&accepted, 1)
			case errors.Is(err, ledger.ErrLimitExceeded):
				atomic.AddInt64(&rejected, 1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if accepted != 1000 || rejected != 1 {
		t.Fatalf("accepted=%d rejected=%d want 1000/1", accepted, rejected)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.Balance.Total != -1000 {
		t.Fatalf("final balance=%d want=-1000", stmt.Balance.Total)
	}
}

// TestConcurrentZeroSum runs 1000 credits and 1000 debits of the same
// value; all must be accepted and the balance must come back to where
// it started. The limit is sized so no interleaving can reject a debit.
func TestConcurrentZeroSum(t *testing.T) {
	const value = 100
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 1000 * value, Balance: 777})
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 1000; i++ {
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 1, credit(value))
			return err
		})
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 1, debit(value))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.Balance.Total != 777 {
		t.Fatalf("final balance=%d want=777", stmt.Balance.Total)
	}
}

// TestTimestampOrderUnderContention: timestamps are assigned inside
// the per-customer exclusion region, so after concurrent applies the
// statement's newest-first records carry non-increasing timestamps in
// acceptance order.
func TestTimestampOrderUnderContention(t *testing.T) {
	e := newEngine(t, models.Customer{ID: 1, OverdraftLimit: 0})
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 1, credit(1))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt, err := e.GetStatement(ctx, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(stmt.RecentTransactions) != 10 {
		t.Fatalf("recent=%d want=10", len(stmt.RecentTransactions))
	}
	for i := 1; i < len(stmt.RecentTransactions); i++ {
		prev, cur := stmt.RecentTransactions[i-1].TS, stmt.RecentTransactions[i].TS
		if cur.After(prev) {
			t.Fatalf("position %d: ts %v newer than position %d: ts %v", i, cur, i-1, prev)
		}
	}
}

// TestCustomersIndependent: traffic on one customer never leaks into
// another's balance or log.
func TestCustomersIndependent(t *testing.T) {
	e := newEngine(t,
		models.Customer{ID: 1, OverdraftLimit: 1000},
		models.Customer{ID: 2, OverdraftLimit: 1000},
	)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 200; i++ {
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 1, credit(10))
			return err
		})
		g.Go(func() error {
			_, err := e.ApplyTransaction(ctx, 2, debit(5))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt1, _ := e.GetStatement(ctx, 1)
	stmt2, _ := e.GetStatement(ctx, 2)
	if stmt1.Balance.Total != 2000 {
		t.Fatalf("customer 1 balance=%d want=2000", stmt1.Balance.Total)
	}
	if stmt2.Balance.Total != -1000 {
		t.Fatalf("customer 2 balance=%d want=-1000", stmt2.Balance.Total)
	}
}
