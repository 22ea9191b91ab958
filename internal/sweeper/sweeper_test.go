package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/ekaradag/circulation/internal/clock"
	"github.com/ekaradag/circulation/internal/errs"
	"github.com/ekaradag/circulation/internal/model"
)

type fakeLoanStore struct {
	overdue   []model.Loan
	listErr   error
	panicList bool

	closeErrs map[uuid.UUID]error
	closed    []uuid.UUID
	lastNow   time.Time
}

func (f *fakeLoanStore) ListOverdue(_ context.Context, now time.Time) ([]model.Loan, error) {
	if f.panicList {
		panic("list boom")
	}
	f.lastNow = now
	return append([]model.Loan(nil), f.overdue...), f.listErr
}

func (f *fakeLoanStore) Close(_ context.Context, id uuid.UUID, _ time.Time) error {
	if err := f.closeErrs[id]; err != nil {
		return err
	}
	f.closed = append(f.closed, id)
	return nil
}

type fakeAccountStore struct {
	calls map[uuid.UUID]int
	errs  map[uuid.UUID]error
}

func (f *fakeAccountStore) PenalizeOverdue(_ context.Context, id uuid.UUID) (model.Account, bool, error) {
	if f.calls == nil {
		f.calls = map[uuid.UUID]int{}
	}
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return model.Account{}, false, err
	}
	return model.Account{ID: id, WarningCount: 1}, true, nil
}

func overdueLoan(t *testing.T, accountID uuid.UUID, due time.Time) model.Loan {
	t.Helper()
	return model.Loan{
		ID:        uuid.Must(uuid.NewV4()),
		ItemID:    uuid.Must(uuid.NewV4()),
		AccountID: accountID,
		DueAt:     due,
	}
}

func TestSweeper_Tick_OneWarningPerAccount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := uuid.Must(uuid.NewV4())

	loans := &fakeLoanStore{overdue: []model.Loan{
		overdueLoan(t, acc, now.Add(-3*time.Hour)),
		overdueLoan(t, acc, now.Add(-2*time.Hour)),
		overdueLoan(t, acc, now.Add(-time.Hour)),
	}}
	accounts := &fakeAccountStore{}
	s := New(loans, accounts, clock.Fixed{T: now}, time.Hour, zap.NewNop())

	s.tick(ctx)

	if len(loans.closed) != 3 {
		t.Fatalf("want 3 loans closed, got %d", len(loans.closed))
	}
	if !loans.lastNow.Equal(now) {
		t.Fatalf("listed with wrong now: %v", loans.lastNow)
	}
	if accounts.calls[acc] != 1 {
		t.Fatalf("want exactly 1 warning for the account, got %d", accounts.calls[acc])
	}
}

func TestSweeper_Tick_SkipsLoansLostToRace(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accA := uuid.Must(uuid.NewV4())
	accB := uuid.Must(uuid.NewV4())

	lost := overdueLoan(t, accA, now.Add(-time.Hour))
	requested := overdueLoan(t, accA, now.Add(-time.Hour))
	ok := overdueLoan(t, accB, now.Add(-time.Hour))

	loans := &fakeLoanStore{
		overdue: []model.Loan{lost, requested, ok},
		closeErrs: map[uuid.UUID]error{
			lost.ID:      errs.ErrAlreadyResolved,
			requested.ID: errs.ErrAlreadyPending,
		},
	}
	accounts := &fakeAccountStore{}
	s := New(loans, accounts, clock.Fixed{T: now}, time.Hour, zap.NewNop())

	s.tick(ctx)

	if accounts.calls[accA] != 0 {
		t.Fatalf("account losing both races must not be penalized, got %d calls", accounts.calls[accA])
	}
	if accounts.calls[accB] != 1 {
		t.Fatalf("want 1 warning for accB, got %d", accounts.calls[accB])
	}
}

func TestSweeper_Tick_IsolatesStoreFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accA := uuid.Must(uuid.NewV4())
	accB := uuid.Must(uuid.NewV4())

	bad := overdueLoan(t, accA, now.Add(-time.Hour))
	good := overdueLoan(t, accB, now.Add(-time.Hour))

	loans := &fakeLoanStore{
		overdue:   []model.Loan{bad, good},
		closeErrs: map[uuid.UUID]error{bad.ID: errors.New("connection reset")},
	}
	accounts := &fakeAccountStore{}
	s := New(loans, accounts, clock.Fixed{T: now}, time.Hour, zap.NewNop())

	s.tick(ctx)

	if len(loans.closed) != 1 || loans.closed[0] != good.ID {
		t.Fatalf("healthy loan must still close: %v", loans.closed)
	}
	if accounts.calls[accA] != 0 {
		t.Fatalf("failed close must not penalize, got %d calls", accounts.calls[accA])
	}
	if accounts.calls[accB] != 1 {
		t.Fatalf("want 1 warning for accB, got %d", accounts.calls[accB])
	}
}

func TestSweeper_Tick_PenalizeFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accA := uuid.Must(uuid.NewV4())
	accB := uuid.Must(uuid.NewV4())

	loans := &fakeLoanStore{overdue: []model.Loan{
		overdueLoan(t, accA, now.Add(-time.Hour)),
		overdueLoan(t, accB, now.Add(-time.Hour)),
	}}
	accounts := &fakeAccountStore{errs: map[uuid.UUID]error{accA: errors.New("deadlock")}}
	s := New(loans, accounts, clock.Fixed{T: now}, time.Hour, zap.NewNop())

	s.tick(ctx)

	if accounts.calls[accA] != 1 || accounts.calls[accB] != 1 {
		t.Fatalf("both accounts must be attempted: %v", accounts.calls)
	}
}

func TestSweeper_Tick_ListError(t *testing.T) {
	ctx := context.Background()

	loans := &fakeLoanStore{listErr: errors.New("timeout")}
	accounts := &fakeAccountStore{}
	s := New(loans, accounts, nil, time.Hour, zap.NewNop())

	s.tick(ctx)

	if len(loans.closed) != 0 || len(accounts.calls) != 0 {
		t.Fatalf("nothing may happen when listing fails")
	}
}

func TestSweeper_Tick_RecoversFromPanic(t *testing.T) {
	ctx := context.Background()

	loans := &fakeLoanStore{panicList: true}
	s := New(loans, &fakeAccountStore{}, nil, time.Hour, zap.NewNop())

	// Must not propagate the panic.
	s.tick(ctx)
}

func TestSweeper_SecondTickIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := uuid.Must(uuid.NewV4())

	loans := &fakeLoanStore{overdue: []model.Loan{overdueLoan(t, acc, now.Add(-time.Hour))}}
	accounts := &fakeAccountStore{}
	s := New(loans, accounts, clock.Fixed{T: now}, time.Hour, zap.NewNop())

	s.tick(ctx)

	// Everything overdue was closed; the next tick finds nothing.
	loans.overdue = nil
	s.tick(ctx)

	if accounts.calls[acc] != 1 {
		t.Fatalf("second sweep must not add warnings, got %d", accounts.calls[acc])
	}
	if len(loans.closed) != 1 {
		t.Fatalf("second sweep must not close anything, got %d", len(loans.closed))
	}
}

func TestSweeper_Run_StopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := New(&fakeLoanStore{}, &fakeAccountStore{}, nil, time.Hour, zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop promptly after cancellation")
	}
}
