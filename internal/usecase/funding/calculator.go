package funding

import (
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeAmount calculates how much money a rule would move given the
// context. The context's unassigned cash is the pool *remaining* after
// higher-priority rules in the same run have drawn it down, which is what
// gives priority-ordered rules first claim on the cash.
//
// The result is never negative. Zero means the rule produces no transfers
// this run; it is not an error.
func ComputeAmount(rule *domain.Rule, ctx *domain.ExecutionContext) decimal.Decimal {
	available := ctx.Snapshot.UnassignedCash
	if !available.IsPositive() {
		return decimal.Zero
	}

	switch rule.Type {
	case domain.RuleTypeFixedAmount, domain.RuleTypeConditional:
		// Conditional rules carry fixed-amount semantics; their conditions
		// were already checked during eligibility filtering.
		return decimal.Min(rule.Config.Amount, available)

	case domain.RuleTypePercentage:
		amount := available.Mul(rule.Config.Percentage).Div(hundred).Round(2)
		return decimal.Min(amount, available)

	case domain.RuleTypeSplitRemainder:
		// The whole remaining pool; the planner divides it across targets.
		return available

	case domain.RuleTypePriorityFill:
		return priorityFillAmount(rule, ctx, available)

	default:
		return decimal.Zero
	}
}

// priorityFillAmount tops the target envelope up to its target amount,
// capped by the available pool.
func priorityFillAmount(rule *domain.Rule, ctx *domain.ExecutionContext, available decimal.Decimal) decimal.Decimal {
	target := ctx.EnvelopeByID(rule.Config.TargetID)
	if target == nil {
		return decimal.Zero
	}

	needed := target.TargetAmount.Sub(target.CurrentBalance)
	if !needed.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(needed, available)
}
