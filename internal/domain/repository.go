package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRuleNotFound is returned by rule repositories for unknown rule IDs.
var ErrRuleNotFound = errors.New("rule not found")

// ErrExecutionNotFound is returned by execution log repositories for
// unknown record IDs.
var ErrExecutionNotFound = errors.New("execution not found")

// RuleRepository defines the interface for rule persistence operations
type RuleRepository interface {
	// Add creates a new rule
	Add(ctx context.Context, rule *Rule) error

	// Get retrieves a rule by its ID
	Get(ctx context.Context, id uuid.UUID) (*Rule, error)

	// List retrieves all rules ordered by priority, then creation time
	List(ctx context.Context) ([]*Rule, error)

	// Update replaces an existing rule
	Update(ctx context.Context, rule *Rule) error

	// Delete removes a rule
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionLogRepository defines the interface for execution record
// persistence. The log is append-only from the engine's point of view;
// Delete and Clear exist for explicit history management only.
type ExecutionLogRepository interface {
	// Append stores a new execution record
	Append(ctx context.Context, record *ExecutionRecord) error

	// List retrieves records newest-first. limit <= 0 returns all records.
	List(ctx context.Context, limit int) ([]*ExecutionRecord, error)

	// Get retrieves a record by its ID
	Get(ctx context.Context, id uuid.UUID) (*ExecutionRecord, error)

	// Delete removes a single record
	Delete(ctx context.Context, id uuid.UUID) error

	// Clear removes all records
	Clear(ctx context.Context) error
}

// BudgetLedger is the external collaborator holding envelope balances and
// the unassigned cash pool. The engine is its sole writer during a run.
type BudgetLedger interface {
	// Envelopes returns all envelopes with current balances
	Envelopes(ctx context.Context) ([]Envelope, error)

	// UnassignedCash returns the current unassigned cash pool balance
	UnassignedCash(ctx context.Context) (decimal.Decimal, error)

	// TransferFunds moves amount from one envelope (or the unassigned pool)
	// to another. It returns an error on insufficient funds or invalid IDs.
	TransferFunds(ctx context.Context, from, to uuid.UUID, amount decimal.Decimal, description string) error
}
