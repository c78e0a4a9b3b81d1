package conditions

import (
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

// DefaultIncomeThreshold is the minimum transaction amount treated as
// income when no threshold is configured.
var DefaultIncomeThreshold = decimal.NewFromInt(100)

// Evaluator decides whether rules are eligible to run for a given context.
// All methods are pure and safe for concurrent use.
type Evaluator struct {
	// IncomeThreshold gates income_detected runs: the detected amount must
	// be positive and at least this large to qualify.
	IncomeThreshold decimal.Decimal
}

// NewEvaluator creates an evaluator with the default income threshold.
func NewEvaluator() Evaluator {
	return Evaluator{IncomeThreshold: DefaultIncomeThreshold}
}

// ShouldExecute reports whether a rule is eligible to run in this context.
// Disabled rules never execute. A rule's trigger must equal the run's
// trigger; calendar triggers involve no date arithmetic here, the caller is
// responsible for invoking the engine at the right cadence.
func (e Evaluator) ShouldExecute(rule *domain.Rule, ctx *domain.ExecutionContext) bool {
	if !rule.Enabled {
		return false
	}

	// A rule whose config does not match its type is never eligible.
	if err := rule.Validate(); err != nil {
		return false
	}

	if rule.Trigger != ctx.Trigger {
		return false
	}

	if rule.Trigger == domain.TriggerIncomeDetected && !e.QualifiesAsIncome(ctx.Snapshot.Income) {
		return false
	}

	if rule.Type == domain.RuleTypeConditional {
		return EvaluateConditions(rule.Config.Conditions, ctx)
	}

	return true
}

// QualifiesAsIncome reports whether an income event meets the threshold.
func (e Evaluator) QualifiesAsIncome(income *domain.IncomeEvent) bool {
	if income == nil {
		return false
	}
	return income.Amount.IsPositive() && income.Amount.GreaterThanOrEqual(e.IncomeThreshold)
}

// EvaluateConditions reports whether every condition holds for the context.
// An empty condition list holds trivially.
func EvaluateConditions(conds []domain.Condition, ctx *domain.ExecutionContext) bool {
	for i := range conds {
		if !evaluateCondition(&conds[i], ctx) {
			return false
		}
	}
	return true
}

func evaluateCondition(cond *domain.Condition, ctx *domain.ExecutionContext) bool {
	switch cond.Type {
	case domain.ConditionBalanceLessThan:
		return scopedBalance(cond, ctx).LessThan(cond.Value)

	case domain.ConditionBalanceGreaterThan:
		return scopedBalance(cond, ctx).GreaterThan(cond.Value)

	case domain.ConditionUnassignedAbove:
		return ctx.Snapshot.UnassignedCash.GreaterThan(cond.Value)

	case domain.ConditionDateRange:
		if cond.StartDate == nil || cond.EndDate == nil {
			return true
		}
		return !ctx.CurrentDate.Before(*cond.StartDate) && !ctx.CurrentDate.After(*cond.EndDate)

	case domain.ConditionIncomeAmount:
		return evaluateIncomeAmount(cond, ctx.Snapshot.Income)

	default:
		// Unknown condition types are permissive, matching validation being
		// the place where bad conditions get rejected.
		return true
	}
}

// scopedBalance resolves the balance a condition checks: a named envelope,
// or the unassigned pool when no envelope is set. A missing envelope
// resolves to a failing comparison via zero... except zero can satisfy
// less_than, so missing envelopes are handled explicitly.
func scopedBalance(cond *domain.Condition, ctx *domain.ExecutionContext) decimal.Decimal {
	if cond.EnvelopeID == nil {
		return ctx.Snapshot.UnassignedCash
	}
	if env := ctx.EnvelopeByID(*cond.EnvelopeID); env != nil {
		return env.CurrentBalance
	}
	// Unknown envelope: comparisons against its "balance" should not fire
	// the rule. Returning the condition value makes both strict comparisons
	// false.
	return cond.Value
}

func evaluateIncomeAmount(cond *domain.Condition, income *domain.IncomeEvent) bool {
	if income == nil {
		return false
	}

	switch cond.Operator {
	case domain.OperatorGreaterThan:
		return income.Amount.GreaterThan(cond.Value)
	case domain.OperatorLessThan:
		return income.Amount.LessThan(cond.Value)
	case domain.OperatorEquals:
		return income.Amount.Sub(cond.Value).Abs().LessThan(decimal.NewFromFloat(0.01))
	case domain.OperatorGreaterOrEqual:
		return income.Amount.GreaterThanOrEqual(cond.Value)
	case domain.OperatorLessOrEqual:
		return income.Amount.LessThanOrEqual(cond.Value)
	default:
		return true
	}
}
