package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnassignedPool is the reserved identifier for the unassigned cash pool.
// Transfers drawing from the pool use it as the source envelope ID.
var UnassignedPool = uuid.Nil

// Envelope represents a budget envelope as seen by the engine: a named
// bucket with a current balance and an optional funding target.
// The engine never mutates envelopes directly; balances change only through
// the BudgetLedger collaborator.
type Envelope struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	TargetAmount   decimal.Decimal `json:"targetAmount"` // zero when the envelope has no funding target
}

// IncomeEvent describes a detected income transaction that triggered a run.
type IncomeEvent struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}
