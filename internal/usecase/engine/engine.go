package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/conditions"
	"github.com/mleite/autofund-backend/internal/usecase/funding"
	"github.com/mleite/autofund-backend/internal/usecase/planner"
)

// ErrExecutionInProgress is returned when a run is requested while another
// run holds the engine.
var ErrExecutionInProgress = errors.New("execution already in progress")

// Recorder receives finished execution records.
type Recorder interface {
	Add(ctx context.Context, record *domain.ExecutionRecord) error
}

// TriggerData carries optional event payload for a run, currently the
// detected income for income_detected triggers.
type TriggerData struct {
	IncomeAmount      decimal.Decimal
	IncomeDescription string
}

// Engine runs funding rules against the budget ledger. At most one run is
// in flight at a time; concurrent attempts fail fast with
// ErrExecutionInProgress and leave the ledger untouched.
type Engine struct {
	ledger   domain.BudgetLedger
	rules    domain.RuleRepository
	recorder Recorder
	eval     conditions.Evaluator
	logger   *slog.Logger

	running atomic.Bool
}

func New(ledger domain.BudgetLedger, rules domain.RuleRepository, recorder Recorder, eval conditions.Evaluator, logger *slog.Logger) *Engine {
	return &Engine{
		ledger:   ledger,
		rules:    rules,
		recorder: recorder,
		eval:     eval,
		logger:   logger,
	}
}

// Running reports whether a run is currently in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Execute runs all eligible rules for the trigger, in priority order,
// against a shrinking pool of unassigned cash. Individual rule failures do
// not abort the run; they are captured in the record and execution
// continues with the next rule.
func (e *Engine) Execute(ctx context.Context, trigger domain.TriggerType, data *TriggerData) (*domain.ExecutionRecord, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrExecutionInProgress
	}
	defer e.running.Store(false)

	execCtx, rules, err := e.liveContext(ctx, trigger, data)
	if err != nil {
		return nil, err
	}

	record := &domain.ExecutionRecord{
		ID:            uuid.New(),
		Trigger:       trigger,
		ExecutedAt:    execCtx.CurrentDate,
		TotalFunded:   decimal.Zero,
		Results:       []domain.RuleExecutionResult{},
		InitialCash:   execCtx.Snapshot.UnassignedCash,
		RemainingCash: execCtx.Snapshot.UnassignedCash,
	}

	eligible := planner.ExecutableRules(rules, execCtx, e.eval)
	e.logger.Info("execution started",
		"trigger", trigger,
		"eligibleRules", len(eligible),
		"unassignedCash", execCtx.Snapshot.UnassignedCash)

	available := execCtx.Snapshot.UnassignedCash
	for _, rule := range eligible {
		result := e.executeRule(ctx, rule, execCtx, available)
		record.Results = append(record.Results, result)

		if result.Success {
			record.RulesExecuted++
			record.TotalFunded = record.TotalFunded.Add(result.Amount)
			available = available.Sub(result.Amount)
		} else {
			e.logger.Warn("rule skipped", "rule", rule.Name, "reason", result.Error)
		}
	}
	record.RemainingCash = available

	if err := e.recorder.Add(ctx, record); err != nil {
		e.logger.Warn("failed to record execution", "error", err)
	}

	e.bumpRuleStats(ctx, rules, record)

	e.logger.Info("execution finished",
		"executionId", record.ID,
		"rulesExecuted", record.RulesExecuted,
		"totalFunded", record.TotalFunded,
		"remainingCash", record.RemainingCash)

	return record, nil
}

func (e *Engine) executeRule(ctx context.Context, rule *domain.Rule, execCtx *domain.ExecutionContext, available decimal.Decimal) domain.RuleExecutionResult {
	result := domain.RuleExecutionResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Amount:     decimal.Zero,
		ExecutedAt: time.Now(),
	}

	ruleCtx := execCtx.WithAvailableCash(available)
	amount := funding.ComputeAmount(rule, &ruleCtx)
	if !amount.IsPositive() {
		result.Error = planner.ReasonZeroAmount
		if !available.IsPositive() {
			result.Error = planner.ReasonNoFunds
		}
		return result
	}

	transfers := planner.PlanTransfers(rule, amount)
	for _, t := range transfers {
		if err := e.ledger.TransferFunds(ctx, t.FromEnvelopeID, t.ToEnvelopeID, t.Amount, t.Description); err != nil {
			result.Error = fmt.Sprintf("transfer failed: %v", err)
			return result
		}
		result.Transfers++
		result.TargetEnvelopes = append(result.TargetEnvelopes, t.ToEnvelopeID)
	}

	result.Success = true
	result.Amount = amount
	return result
}

// bumpRuleStats updates execution counters on the rules that moved money.
func (e *Engine) bumpRuleStats(ctx context.Context, rules []*domain.Rule, record *domain.ExecutionRecord) {
	byID := make(map[uuid.UUID]*domain.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	for _, result := range record.SuccessfulResults() {
		rule, ok := byID[result.RuleID]
		if !ok {
			continue
		}
		rule.ExecutionCount++
		executed := record.ExecutedAt
		rule.LastExecuted = &executed
		rule.UpdatedAt = time.Now()

		if err := e.rules.Update(ctx, rule); err != nil {
			e.logger.Warn("failed to update rule stats", "rule", rule.Name, "error", err)
		}
	}
}

// RuleSummary identifies an executable rule in a readiness report.
type RuleSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Priority int       `json:"priority"`
}

// Readiness describes whether and what a run would execute right now.
type Readiness struct {
	CanExecute      bool            `json:"canExecute"`
	Running         bool            `json:"running"`
	ExecutableCount int             `json:"executableCount"`
	TotalRules      int             `json:"totalRules"`
	AvailableCash   decimal.Decimal `json:"availableCash"`
	ExecutableRules []RuleSummary   `json:"executableRules"`
}

// CanExecute reports what a run with the given trigger would pick up.
func (e *Engine) CanExecute(ctx context.Context, trigger domain.TriggerType, data *TriggerData) (*Readiness, error) {
	execCtx, rules, err := e.liveContext(ctx, trigger, data)
	if err != nil {
		return nil, err
	}

	eligible := planner.ExecutableRules(rules, execCtx, e.eval)
	summaries := make([]RuleSummary, 0, len(eligible))
	for _, r := range eligible {
		summaries = append(summaries, RuleSummary{ID: r.ID, Name: r.Name, Priority: r.Priority})
	}

	running := e.running.Load()
	return &Readiness{
		CanExecute:      !running && len(eligible) > 0,
		Running:         running,
		ExecutableCount: len(eligible),
		TotalRules:      len(rules),
		AvailableCash:   execCtx.Snapshot.UnassignedCash,
		ExecutableRules: summaries,
	}, nil
}

// SimulateExecution dry-runs the trigger against live budget state without
// moving funds or recording history.
func (e *Engine) SimulateExecution(ctx context.Context, trigger domain.TriggerType, data *TriggerData) (*planner.Simulation, error) {
	execCtx, rules, err := e.liveContext(ctx, trigger, data)
	if err != nil {
		return nil, err
	}
	return planner.Simulate(rules, execCtx, e.eval), nil
}

// BuildPlan produces a detailed pre-execution report for the trigger.
func (e *Engine) BuildPlan(ctx context.Context, trigger domain.TriggerType, data *TriggerData) (*planner.Plan, error) {
	execCtx, rules, err := e.liveContext(ctx, trigger, data)
	if err != nil {
		return nil, err
	}
	return planner.BuildPlan(rules, execCtx, e.eval), nil
}

// HandleTransactionAdded is the income-detection entry point. Inflows that
// qualify as income kick off an income_detected run; everything else is a
// no-op.
func (e *Engine) HandleTransactionAdded(ctx context.Context, amount decimal.Decimal, description string) (*domain.ExecutionRecord, error) {
	income := &domain.IncomeEvent{Amount: amount, Description: description}
	if !e.eval.QualifiesAsIncome(income) {
		return nil, nil
	}

	e.logger.Info("income detected", "amount", amount, "description", description)
	return e.Execute(ctx, domain.TriggerIncomeDetected, &TriggerData{
		IncomeAmount:      amount,
		IncomeDescription: description,
	})
}

// liveContext snapshots the ledger and loads all rules for a run.
func (e *Engine) liveContext(ctx context.Context, trigger domain.TriggerType, data *TriggerData) (*domain.ExecutionContext, []*domain.Rule, error) {
	envelopes, err := e.ledger.Envelopes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot envelopes: %w", err)
	}
	cash, err := e.ledger.UnassignedCash(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot unassigned cash: %w", err)
	}
	rules, err := e.rules.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list rules: %w", err)
	}

	execCtx := &domain.ExecutionContext{
		Trigger:     trigger,
		CurrentDate: time.Now(),
		Snapshot: domain.BudgetSnapshot{
			Envelopes:      envelopes,
			UnassignedCash: cash,
		},
	}
	if data != nil && trigger == domain.TriggerIncomeDetected {
		execCtx.Snapshot.Income = &domain.IncomeEvent{
			Amount:      data.IncomeAmount,
			Description: data.IncomeDescription,
		}
	}
	return execCtx, rules, nil
}
