package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetSnapshot is the read-only view of budget state captured at run
// start. A run never observes concurrent external mutation; funding amounts
// are computed against UnassignedCash as a running balance maintained by
// the engine.
type BudgetSnapshot struct {
	Envelopes      []Envelope
	UnassignedCash decimal.Decimal
	Income         *IncomeEvent // set on income_detected runs
}

// ExecutionContext is the ephemeral input to condition evaluation and
// funding computation for one run. It is never persisted.
type ExecutionContext struct {
	Trigger     TriggerType
	CurrentDate time.Time
	Snapshot    BudgetSnapshot
}

// EnvelopeByID returns the snapshot envelope with the given ID, or nil.
func (c *ExecutionContext) EnvelopeByID(id uuid.UUID) *Envelope {
	for i := range c.Snapshot.Envelopes {
		if c.Snapshot.Envelopes[i].ID == id {
			return &c.Snapshot.Envelopes[i]
		}
	}
	return nil
}

// WithAvailableCash returns a copy of the context whose unassigned cash is
// replaced by the pool remaining after higher-priority rules drew it down.
func (c *ExecutionContext) WithAvailableCash(remaining decimal.Decimal) ExecutionContext {
	out := *c
	out.Snapshot.UnassignedCash = remaining
	return out
}
