package planner

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/conditions"
	"github.com/mleite/autofund-backend/internal/usecase/funding"
)

// Failure reasons shared with the execution engine so simulated and real
// runs report identically.
const (
	ReasonNoFunds    = "no funds available"
	ReasonZeroAmount = "amount calculated as zero"
)

// RuleSimulation is the dry-run outcome of a single rule.
type RuleSimulation struct {
	RuleID           uuid.UUID         `json:"ruleId"`
	RuleName         string            `json:"ruleName"`
	Success          bool              `json:"success"`
	Amount           decimal.Decimal   `json:"amount"`
	PlannedTransfers []domain.Transfer `json:"plannedTransfers"`
	TargetEnvelopes  []uuid.UUID       `json:"targetEnvelopes,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// RuleError pairs a rule with the reason it could not produce transfers.
type RuleError struct {
	RuleID   uuid.UUID `json:"ruleId"`
	RuleName string    `json:"ruleName"`
	Error    string    `json:"error"`
}

// Simulation is a read-only projection of a run: same filtering, ordering
// and running-balance arithmetic as a real execution, no ledger calls.
type Simulation struct {
	TotalPlanned     decimal.Decimal   `json:"totalPlanned"`
	RulesExecuted    int               `json:"rulesExecuted"`
	PlannedTransfers []domain.Transfer `json:"plannedTransfers"`
	RuleResults      []RuleSimulation  `json:"ruleResults"`
	RemainingCash    decimal.Decimal   `json:"remainingCash"`
	InitialCash      decimal.Decimal   `json:"initialCash"`
	Errors           []RuleError       `json:"errors"`
}

// Simulate projects what a run would do in the given context.
func Simulate(rules []*domain.Rule, ctx *domain.ExecutionContext, eval conditions.Evaluator) *Simulation {
	sim := &Simulation{
		TotalPlanned:  decimal.Zero,
		RemainingCash: ctx.Snapshot.UnassignedCash,
		InitialCash:   ctx.Snapshot.UnassignedCash,
		Errors:        []RuleError{},
	}

	available := ctx.Snapshot.UnassignedCash
	for _, rule := range ExecutableRules(rules, ctx, eval) {
		result := SimulateRule(rule, ctx, available)
		sim.RuleResults = append(sim.RuleResults, result)

		if result.Success {
			sim.PlannedTransfers = append(sim.PlannedTransfers, result.PlannedTransfers...)
			sim.TotalPlanned = sim.TotalPlanned.Add(result.Amount)
			sim.RulesExecuted++
			available = available.Sub(result.Amount)
		} else if result.Error != "" {
			sim.Errors = append(sim.Errors, RuleError{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    result.Error,
			})
		}
	}

	sim.RemainingCash = decimal.Max(decimal.Zero, available)
	return sim
}

// SimulateRule projects a single rule against the remaining pool.
func SimulateRule(rule *domain.Rule, ctx *domain.ExecutionContext, available decimal.Decimal) RuleSimulation {
	ruleCtx := ctx.WithAvailableCash(available)
	amount := funding.ComputeAmount(rule, &ruleCtx)

	if !amount.IsPositive() {
		reason := ReasonZeroAmount
		if !available.IsPositive() {
			reason = ReasonNoFunds
		}
		return RuleSimulation{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Success:  false,
			Amount:   decimal.Zero,
			Error:    reason,
		}
	}

	transfers := PlanTransfers(rule, amount)
	targets := make([]uuid.UUID, 0, len(transfers))
	for _, t := range transfers {
		targets = append(targets, t.ToEnvelopeID)
	}

	return RuleSimulation{
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		Success:          true,
		Amount:           amount,
		PlannedTransfers: transfers,
		TargetEnvelopes:  targets,
	}
}

// Warning flags a potential issue with an execution plan.
type Warning struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Plan is a detailed pre-execution report for preview and confirmation.
type Plan struct {
	PlannedAt       time.Time          `json:"plannedAt"`
	Trigger         domain.TriggerType `json:"trigger"`
	InitialCash     decimal.Decimal    `json:"initialCash"`
	FinalCash       decimal.Decimal    `json:"finalCash"`
	TotalToTransfer decimal.Decimal    `json:"totalToTransfer"`
	RulesCount      int                `json:"rulesCount"`
	TransfersCount  int                `json:"transfersCount"`
	Rules           []RuleSimulation   `json:"rules"`
	Transfers       []domain.Transfer  `json:"transfers"`
	Errors          []RuleError        `json:"errors"`
	Warnings        []Warning          `json:"warnings"`
}

// BuildPlan simulates a run and wraps the result with warnings.
func BuildPlan(rules []*domain.Rule, ctx *domain.ExecutionContext, eval conditions.Evaluator) *Plan {
	sim := Simulate(rules, ctx, eval)

	successful := make([]RuleSimulation, 0, len(sim.RuleResults))
	for _, r := range sim.RuleResults {
		if r.Success {
			successful = append(successful, r)
		}
	}

	return &Plan{
		PlannedAt:       time.Now(),
		Trigger:         ctx.Trigger,
		InitialCash:     ctx.Snapshot.UnassignedCash,
		FinalCash:       sim.RemainingCash,
		TotalToTransfer: sim.TotalPlanned,
		RulesCount:      sim.RulesExecuted,
		TransfersCount:  len(sim.PlannedTransfers),
		Rules:           successful,
		Transfers:       sim.PlannedTransfers,
		Errors:          sim.Errors,
		Warnings:        planWarnings(sim, ctx),
	}
}

func planWarnings(sim *Simulation, ctx *domain.ExecutionContext) []Warning {
	warnings := []Warning{}

	for _, e := range sim.Errors {
		if e.Error == ReasonNoFunds {
			warnings = append(warnings, Warning{
				Type:     "insufficient_funds",
				Message:  "Some rules cannot execute due to insufficient unassigned cash",
				Severity: "high",
			})
			break
		}
	}

	if sim.RulesExecuted == 0 {
		warnings = append(warnings, Warning{
			Type:     "no_execution",
			Message:  "No rules will execute with current conditions",
			Severity: "medium",
		})
	}

	initial := ctx.Snapshot.UnassignedCash
	if initial.IsPositive() && sim.RemainingCash.IsPositive() {
		remainingPct := sim.RemainingCash.Div(initial).Mul(decimal.NewFromInt(100))
		if remainingPct.LessThan(decimal.NewFromInt(5)) {
			warnings = append(warnings, Warning{
				Type:     "low_remaining_cash",
				Message:  "Only $" + sim.RemainingCash.StringFixed(2) + " will remain unassigned",
				Severity: "low",
			})
		}
	}

	return warnings
}

// TransferIssue describes why a planned transfer is infeasible.
type TransferIssue struct {
	TransferIndex int    `json:"transferIndex"`
	Error         string `json:"error"`
}

// ValidationResult is the outcome of checking planned transfers against
// the budget snapshot.
type ValidationResult struct {
	IsValid     bool            `json:"isValid"`
	Errors      []TransferIssue `json:"errors"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// ValidateTransfers checks that every planned transfer targets a known
// envelope with a positive amount and that the total fits the pool.
func ValidateTransfers(transfers []domain.Transfer, ctx *domain.ExecutionContext) ValidationResult {
	result := ValidationResult{Errors: []TransferIssue{}, TotalAmount: decimal.Zero}

	for i, t := range transfers {
		if t.ToEnvelopeID != domain.UnassignedPool && ctx.EnvelopeByID(t.ToEnvelopeID) == nil {
			result.Errors = append(result.Errors, TransferIssue{
				TransferIndex: i,
				Error:         "target envelope " + t.ToEnvelopeID.String() + " not found",
			})
		}
		if !t.Amount.IsPositive() {
			result.Errors = append(result.Errors, TransferIssue{
				TransferIndex: i,
				Error:         "transfer amount must be positive",
			})
		}
		result.TotalAmount = result.TotalAmount.Add(t.Amount)
	}

	if result.TotalAmount.GreaterThan(ctx.Snapshot.UnassignedCash) {
		result.Errors = append(result.Errors, TransferIssue{
			TransferIndex: -1,
			Error:         "total transfers exceed available cash",
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// EnvelopeImpact projects one envelope's balance after planned transfers.
type EnvelopeImpact struct {
	ID                uuid.UUID       `json:"id"`
	CurrentBalance    decimal.Decimal `json:"currentBalance"`
	Change            decimal.Decimal `json:"change"`
	NewBalance        decimal.Decimal `json:"newBalance"`
	FillPercentage    decimal.Decimal `json:"fillPercentage"`
	NewFillPercentage decimal.Decimal `json:"newFillPercentage"`
}

// Impact summarizes how planned transfers would move balances.
type Impact struct {
	Envelopes        map[uuid.UUID]EnvelopeImpact `json:"envelopes"`
	UnassignedChange decimal.Decimal              `json:"unassignedChange"`
	TotalTransferred decimal.Decimal              `json:"totalTransferred"`
}

// TransferImpact computes projected balances and fill percentages for the
// envelopes touched by the planned transfers.
func TransferImpact(transfers []domain.Transfer, ctx *domain.ExecutionContext) Impact {
	impact := Impact{
		Envelopes:        make(map[uuid.UUID]EnvelopeImpact, len(ctx.Snapshot.Envelopes)),
		UnassignedChange: decimal.Zero,
		TotalTransferred: decimal.Zero,
	}

	for _, env := range ctx.Snapshot.Envelopes {
		fill := decimal.Zero
		if env.TargetAmount.IsPositive() {
			fill = env.CurrentBalance.Div(env.TargetAmount).Mul(decimal.NewFromInt(100))
		}
		impact.Envelopes[env.ID] = EnvelopeImpact{
			ID:             env.ID,
			CurrentBalance: env.CurrentBalance,
			Change:         decimal.Zero,
			NewBalance:     env.CurrentBalance,
			FillPercentage: fill,
		}
	}

	for _, t := range transfers {
		impact.TotalTransferred = impact.TotalTransferred.Add(t.Amount)

		ei, ok := impact.Envelopes[t.ToEnvelopeID]
		if !ok {
			continue
		}
		ei.Change = ei.Change.Add(t.Amount)
		ei.NewBalance = ei.CurrentBalance.Add(ei.Change)
		impact.Envelopes[t.ToEnvelopeID] = ei
	}

	for id, ei := range impact.Envelopes {
		env := ctx.EnvelopeByID(id)
		if env != nil && env.TargetAmount.IsPositive() {
			ei.NewFillPercentage = ei.NewBalance.Div(env.TargetAmount).Mul(decimal.NewFromInt(100))
		}
		impact.Envelopes[id] = ei
	}

	impact.UnassignedChange = impact.TotalTransferred.Neg()
	return impact
}
