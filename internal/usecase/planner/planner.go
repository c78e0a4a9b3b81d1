package planner

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/conditions"
)

// PlanTransfers expands a rule's computed funding amount into one or more
// concrete transfers out of the unassigned pool. The transfers always sum
// to exactly the funding amount.
func PlanTransfers(rule *domain.Rule, amount decimal.Decimal) []domain.Transfer {
	if !amount.IsPositive() {
		return nil
	}

	switch rule.Type {
	case domain.RuleTypeFixedAmount, domain.RuleTypePercentage, domain.RuleTypeConditional, domain.RuleTypePriorityFill:
		return []domain.Transfer{{
			FromEnvelopeID: domain.UnassignedPool,
			ToEnvelopeID:   rule.Config.TargetID,
			Amount:         amount,
			Description:    "Auto-funding: " + rule.Name,
		}}

	case domain.RuleTypeSplitRemainder:
		return planSplit(rule, amount)

	default:
		return nil
	}
}

// planSplit divides the amount evenly across the rule's targets at
// integer-cent precision. Any leftover cents go to the first target so the
// transfers sum to the amount exactly. Targets whose share rounds down to
// zero get no transfer; every planned transfer carries a positive amount.
func planSplit(rule *domain.Rule, amount decimal.Decimal) []domain.Transfer {
	targets := rule.Config.TargetIDs
	if len(targets) == 0 {
		return nil
	}

	n := decimal.NewFromInt(int64(len(targets)))
	share := amount.Div(n).RoundDown(2)
	first := amount.Sub(share.Mul(decimal.NewFromInt(int64(len(targets) - 1))))

	transfers := make([]domain.Transfer, 0, len(targets))
	for i, target := range targets {
		a := share
		if i == 0 {
			a = first
		}
		if !a.IsPositive() {
			continue
		}
		transfers = append(transfers, domain.Transfer{
			FromEnvelopeID: domain.UnassignedPool,
			ToEnvelopeID:   target,
			Amount:         a,
			Description:    "Auto-funding (split): " + rule.Name,
		})
	}
	return transfers
}

// ExecutableRules filters rules eligible for the context and sorts them by
// ascending priority. The sort is stable; equal priorities keep storage
// order, then older rules run first.
func ExecutableRules(rules []*domain.Rule, ctx *domain.ExecutionContext, eval conditions.Evaluator) []*domain.Rule {
	executable := make([]*domain.Rule, 0, len(rules))
	for _, rule := range rules {
		if eval.ShouldExecute(rule, ctx) {
			executable = append(executable, rule)
		}
	}

	sort.SliceStable(executable, func(i, j int) bool {
		if executable[i].Priority != executable[j].Priority {
			return executable[i].Priority < executable[j].Priority
		}
		return executable[i].CreatedAt.Before(executable[j].CreatedAt)
	})

	return executable
}
