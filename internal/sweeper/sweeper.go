// Package sweeper reconciles overdue loans on a fixed period: it closes them,
// releases their items, and applies at most one penalty warning per account
// per sweep.
package sweeper

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/ekaradag/circulation/internal/clock"
	"github.com/ekaradag/circulation/internal/errs"
	"github.com/ekaradag/circulation/internal/model"
)

// LoanStore is the slice of the loan repository the sweeper needs.
type LoanStore interface {
	ListOverdue(ctx context.Context, now time.Time) ([]model.Loan, error)
	Close(ctx context.Context, id uuid.UUID, returnedAt time.Time) error
}

// AccountStore is the slice of the account repository the sweeper needs.
type AccountStore interface {
	PenalizeOverdue(ctx context.Context, id uuid.UUID) (model.Account, bool, error)
}

// Sweeper is the single long-lived background task of the lending core.
type Sweeper struct {
	loans    LoanStore
	accounts AccountStore
	clk      clock.Clock
	interval time.Duration
	log      *zap.Logger
}

// New constructs a Sweeper with the given tick interval.
func New(loans LoanStore, accounts AccountStore, clk clock.Clock, interval time.Duration, log *zap.Logger) *Sweeper {
	if clk == nil {
		clk = clock.System{}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{loans: loans, accounts: accounts, clk: clk, interval: interval, log: log}
}

// Run ticks once immediately, then once per interval until ctx is cancelled.
// Cancellation interrupts the inter-tick wait promptly. No failure inside a
// tick stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started", zap.Duration("interval", s.interval))

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-t.C:
		}
	}
}

// tick runs one reconciliation pass. Every loan closes in its own store
// transaction, so one bad record cannot hold back the rest of the batch.
func (s *Sweeper) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	now := s.clk.Now()
	overdue, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		s.log.Error("list overdue loans", zap.Error(err))
		return
	}
	if len(overdue) == 0 {
		return
	}
	s.log.Info("overdue loans found", zap.Int("count", len(overdue)))

	// One warning per account per sweep, however many loans it has late.
	penalize := make(map[uuid.UUID]struct{})
	for _, ln := range overdue {
		err := s.loans.Close(ctx, ln.ID, now)
		switch {
		case err == nil:
			s.log.Info("loan auto-closed",
				zap.String("loan", ln.ID.String()),
				zap.String("item", ln.ItemID.String()),
				zap.Time("dueAt", ln.DueAt),
			)
			penalize[ln.AccountID] = struct{}{}
		case errors.Is(err, errs.ErrAlreadyResolved), errors.Is(err, errs.ErrAlreadyPending):
			// Lost the race to an interactive transition; nothing owed here.
		default:
			// Left for the next tick.
			s.log.Error("close overdue loan", zap.String("loan", ln.ID.String()), zap.Error(err))
		}
	}

	for accountID := range penalize {
		acct, applied, err := s.accounts.PenalizeOverdue(ctx, accountID)
		if err != nil {
			s.log.Error("penalize account", zap.String("account", accountID.String()), zap.Error(err))
			continue
		}
		if !applied {
			continue
		}
		s.log.Info("warning applied",
			zap.String("account", accountID.String()),
			zap.Int("warnings", acct.WarningCount),
		)
		if acct.Deactivated {
			s.log.Warn("account deactivated", zap.String("account", accountID.String()))
		} else if acct.Locked {
			s.log.Warn("account locked", zap.String("account", accountID.String()))
		}
	}
}
