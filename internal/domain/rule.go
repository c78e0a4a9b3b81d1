package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType determines how a rule's funding amount is computed
type RuleType string

const (
	RuleTypeFixedAmount    RuleType = "fixed_amount"    // "Move $200 to Rent"
	RuleTypePercentage     RuleType = "percentage"      // "Move 30% to Savings"
	RuleTypeConditional    RuleType = "conditional"     // "If balance < $50, move $100"
	RuleTypeSplitRemainder RuleType = "split_remainder" // "Split leftover funds evenly"
	RuleTypePriorityFill   RuleType = "priority_fill"   // "Fill Rent up to its target"
)

// TriggerType determines when a rule is eligible to run
type TriggerType string

const (
	TriggerManual         TriggerType = "manual"
	TriggerIncomeDetected TriggerType = "income_detected"
	TriggerMonthly        TriggerType = "monthly"
	TriggerWeekly         TriggerType = "weekly"
	TriggerBiweekly       TriggerType = "biweekly"
	TriggerPayday         TriggerType = "payday"

	// TriggerManualUndo marks synthetic undo records in the execution log.
	// It is never a valid rule trigger.
	TriggerManualUndo TriggerType = "manual_undo"
)

// ConditionType represents the kind of check a conditional rule performs
type ConditionType string

const (
	ConditionBalanceLessThan    ConditionType = "balance_less_than"
	ConditionBalanceGreaterThan ConditionType = "balance_greater_than"
	ConditionUnassignedAbove    ConditionType = "unassigned_above"
	ConditionDateRange          ConditionType = "date_range"
	ConditionIncomeAmount       ConditionType = "income_amount"
)

// ConditionOperator applies to income_amount conditions
type ConditionOperator string

const (
	OperatorGreaterThan    ConditionOperator = "greater_than"
	OperatorLessThan       ConditionOperator = "less_than"
	OperatorEquals         ConditionOperator = "equals"
	OperatorGreaterOrEqual ConditionOperator = "greater_than_or_equal"
	OperatorLessOrEqual    ConditionOperator = "less_than_or_equal"
)

// Condition is a single check attached to a conditional rule.
// All of a rule's conditions must hold for the rule to execute.
type Condition struct {
	Type       ConditionType     `json:"type"`
	EnvelopeID *uuid.UUID        `json:"envelopeId,omitempty"` // nil scopes balance checks to the unassigned pool
	Value      decimal.Decimal   `json:"value"`
	Operator   ConditionOperator `json:"operator,omitempty"` // income_amount only
	StartDate  *time.Time        `json:"startDate,omitempty"`
	EndDate    *time.Time        `json:"endDate,omitempty"`
}

// Validate ensures the condition adheres to domain rules
func (c *Condition) Validate() error {
	switch c.Type {
	case ConditionBalanceLessThan, ConditionBalanceGreaterThan, ConditionUnassignedAbove:
		if c.Value.IsNegative() {
			return errors.New("balance conditions require a non-negative value")
		}
	case ConditionDateRange:
		if c.StartDate == nil || c.EndDate == nil {
			return errors.New("date range conditions require both start and end dates")
		}
		if !c.StartDate.Before(*c.EndDate) {
			return errors.New("date range start must be before end")
		}
	case ConditionIncomeAmount:
		switch c.Operator {
		case OperatorGreaterThan, OperatorLessThan, OperatorEquals, OperatorGreaterOrEqual, OperatorLessOrEqual:
		default:
			return fmt.Errorf("income amount conditions require a valid operator, got %q", c.Operator)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

// RuleConfig is the variant payload of a rule. Which fields are required
// depends on the rule type; Rule.Validate enforces the pairing.
type RuleConfig struct {
	Amount     decimal.Decimal `json:"amount"`               // fixed_amount, conditional
	Percentage decimal.Decimal `json:"percentage"`           // percentage, 0-100
	TargetID   uuid.UUID       `json:"targetId"`             // single-target types
	TargetIDs  []uuid.UUID     `json:"targetIds,omitempty"`  // split_remainder
	Conditions []Condition     `json:"conditions,omitempty"` // conditional
}

// Rule is the unit of automation: it moves unassigned cash into envelopes
// when its trigger fires and its conditions hold.
type Rule struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Type           RuleType    `json:"type"`
	Trigger        TriggerType `json:"trigger"`
	Priority       int         `json:"priority"` // lower executes first
	Enabled        bool        `json:"enabled"`
	Config         RuleConfig  `json:"config"`
	ExecutionCount int         `json:"executionCount"`
	LastExecuted   *time.Time  `json:"lastExecuted,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Validate ensures the rule's config matches its type's required fields.
// Invalid rules are rejected at the store boundary and are never eligible
// to execute.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}

	switch r.Trigger {
	case TriggerManual, TriggerIncomeDetected, TriggerMonthly, TriggerWeekly, TriggerBiweekly, TriggerPayday:
	default:
		return fmt.Errorf("invalid rule trigger %q", r.Trigger)
	}

	switch r.Type {
	case RuleTypeFixedAmount:
		if !r.Config.Amount.IsPositive() {
			return errors.New("fixed amount rules require a positive amount")
		}
		return r.validateSingleTarget()

	case RuleTypePercentage:
		if !r.Config.Percentage.IsPositive() || r.Config.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("percentage rules require a percentage between 0 and 100")
		}
		return r.validateSingleTarget()

	case RuleTypeConditional:
		if !r.Config.Amount.IsPositive() {
			return errors.New("conditional rules require a positive amount")
		}
		if len(r.Config.Conditions) == 0 {
			return errors.New("conditional rules require at least one condition")
		}
		for i := range r.Config.Conditions {
			if err := r.Config.Conditions[i].Validate(); err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}
		}
		return r.validateSingleTarget()

	case RuleTypeSplitRemainder:
		if len(r.Config.TargetIDs) == 0 {
			return errors.New("split remainder rules require at least one target envelope")
		}
		for _, id := range r.Config.TargetIDs {
			if id == UnassignedPool {
				return errors.New("split remainder targets must be envelopes, not the unassigned pool")
			}
		}
		return nil

	case RuleTypePriorityFill:
		return r.validateSingleTarget()

	default:
		return fmt.Errorf("invalid rule type %q", r.Type)
	}
}

func (r *Rule) validateSingleTarget() error {
	if r.Config.TargetID == UnassignedPool {
		return fmt.Errorf("%s rules require a target envelope", r.Type)
	}
	return nil
}
