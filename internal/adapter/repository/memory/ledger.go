package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

// ErrInsufficientFunds is returned when a transfer would overdraw its
// source balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is an in-memory budget ledger: envelope balances plus the
// unassigned cash pool. It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	envelopes map[uuid.UUID]domain.Envelope
	order     []uuid.UUID
	cash      decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{
		envelopes: make(map[uuid.UUID]domain.Envelope),
		cash:      decimal.Zero,
	}
}

// AddEnvelope registers an envelope. Existing IDs are overwritten.
func (l *Ledger) AddEnvelope(env domain.Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.envelopes[env.ID]; !ok {
		l.order = append(l.order, env.ID)
	}
	l.envelopes[env.ID] = env
}

// Deposit adds to the unassigned cash pool.
func (l *Ledger) Deposit(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = l.cash.Add(amount)
}

func (l *Ledger) Envelopes(_ context.Context) ([]domain.Envelope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Envelope, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.envelopes[id])
	}
	return out, nil
}

func (l *Ledger) UnassignedCash(_ context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash, nil
}

// TransferFunds moves amount between balances. UnassignedPool on either
// side addresses the cash pool. The whole transfer applies or none of it.
func (l *Ledger) TransferFunds(_ context.Context, from, to uuid.UUID, amount decimal.Decimal, _ string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBalance(from, amount); err != nil {
		return err
	}
	if to != domain.UnassignedPool {
		if _, ok := l.envelopes[to]; !ok {
			return fmt.Errorf("envelope %s not found", to)
		}
	}

	l.credit(from, amount.Neg())
	l.credit(to, amount)
	return nil
}

func (l *Ledger) checkBalance(id uuid.UUID, amount decimal.Decimal) error {
	if id == domain.UnassignedPool {
		if l.cash.LessThan(amount) {
			return fmt.Errorf("%w: unassigned pool holds %s, need %s", ErrInsufficientFunds, l.cash, amount)
		}
		return nil
	}

	env, ok := l.envelopes[id]
	if !ok {
		return fmt.Errorf("envelope %s not found", id)
	}
	if env.CurrentBalance.LessThan(amount) {
		return fmt.Errorf("%w: envelope %q holds %s, need %s", ErrInsufficientFunds, env.Name, env.CurrentBalance, amount)
	}
	return nil
}

func (l *Ledger) credit(id uuid.UUID, amount decimal.Decimal) {
	if id == domain.UnassignedPool {
		l.cash = l.cash.Add(amount)
		return
	}
	env := l.envelopes[id]
	env.CurrentBalance = env.CurrentBalance.Add(amount)
	l.envelopes[id] = env
}
