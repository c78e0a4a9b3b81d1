package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is a single planned or executed movement of funds. The source is
// UnassignedPool when the rule draws from the unassigned cash pool.
type Transfer struct {
	FromEnvelopeID uuid.UUID       `json:"fromEnvelopeId"`
	ToEnvelopeID   uuid.UUID       `json:"toEnvelopeId"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
}

// RuleExecutionResult is the outcome of attempting one rule within a run.
type RuleExecutionResult struct {
	RuleID          uuid.UUID       `json:"ruleId"`
	RuleName        string          `json:"ruleName"`
	Success         bool            `json:"success"`
	Amount          decimal.Decimal `json:"amount"`
	Transfers       int             `json:"transfers"`
	TargetEnvelopes []uuid.UUID     `json:"targetEnvelopes,omitempty"`
	Error           string          `json:"error,omitempty"`
	ExecutedAt      time.Time       `json:"executedAt"`
}

// ExecutionRecord is the immutable log entry for one full run. Records are
// append-only: an undo creates a new record with IsUndo set rather than
// mutating the original.
type ExecutionRecord struct {
	ID                  uuid.UUID             `json:"id"`
	Trigger             TriggerType           `json:"trigger"`
	ExecutedAt          time.Time             `json:"executedAt"`
	RulesExecuted       int                   `json:"rulesExecuted"`
	TotalFunded         decimal.Decimal       `json:"totalFunded"`
	Results             []RuleExecutionResult `json:"results"`
	RemainingCash       decimal.Decimal       `json:"remainingCash"`
	InitialCash         decimal.Decimal       `json:"initialCash"`
	IsUndo              bool                  `json:"isUndo"`
	OriginalExecutionID *uuid.UUID            `json:"originalExecutionId,omitempty"`
}

// Undoable reports whether the record can be reversed: undo records and
// runs that moved no money cannot.
func (r *ExecutionRecord) Undoable() bool {
	return !r.IsUndo && r.TotalFunded.IsPositive()
}

// SuccessfulResults returns the results of rules that moved funds.
func (r *ExecutionRecord) SuccessfulResults() []RuleExecutionResult {
	out := make([]RuleExecutionResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Success {
			out = append(out, res)
		}
	}
	return out
}
