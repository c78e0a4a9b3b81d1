package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

var (
	// ErrNoBudgetAccess is returned when an undo is requested but the
	// service was built without a ledger to reverse transfers against.
	ErrNoBudgetAccess = errors.New("budget operations not available")

	// ErrNothingToUndo is returned when the log holds no undoable records.
	ErrNothingToUndo = errors.New("no undoable executions")

	// ErrNotUndoable is returned for records that cannot be reversed.
	ErrNotUndoable = errors.New("execution cannot be undone")

	// ErrAlreadyUndone is returned when the record already has an undo
	// record pointing at it.
	ErrAlreadyUndone = errors.New("execution already undone")
)

// Service manages the append-only execution log: reads, statistics,
// exports and undo. The ledger is optional; without it the service is
// read-only and undo fails with ErrNoBudgetAccess.
type Service struct {
	log    domain.ExecutionLogRepository
	ledger domain.BudgetLedger
	logger *slog.Logger
}

func NewService(log domain.ExecutionLogRepository, ledger domain.BudgetLedger, logger *slog.Logger) *Service {
	return &Service{log: log, ledger: ledger, logger: logger}
}

// Add appends a record to the log. It satisfies the engine's Recorder.
func (s *Service) Add(ctx context.Context, record *domain.ExecutionRecord) error {
	return s.log.Append(ctx, record)
}

// History returns records newest-first. limit <= 0 returns everything.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	return s.log.List(ctx, limit)
}

// ExecutionByID returns a single record.
func (s *Service) ExecutionByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	return s.log.Get(ctx, id)
}

// DeleteExecution removes one record from the log.
func (s *Service) DeleteExecution(ctx context.Context, id uuid.UUID) error {
	return s.log.Delete(ctx, id)
}

// ClearHistory wipes the log.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.log.Clear(ctx)
}

// UndoExecution reverses a past run by moving the funded amounts from the
// target envelopes back to the unassigned pool, then appends a synthetic
// undo record. The original record is never modified.
func (s *Service) UndoExecution(ctx context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	record, err := s.log.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.undo(ctx, record)
}

// UndoLastExecution reverses the most recent undoable run.
func (s *Service) UndoLastExecution(ctx context.Context) (*domain.ExecutionRecord, error) {
	records, err := s.log.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	undone := undoneOriginals(records)
	for _, record := range records {
		if record.Undoable() && !undone[record.ID] {
			return s.undo(ctx, record)
		}
	}
	return nil, ErrNothingToUndo
}

func (s *Service) undo(ctx context.Context, record *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
	if !record.Undoable() {
		return nil, ErrNotUndoable
	}
	if s.ledger == nil {
		return nil, ErrNoBudgetAccess
	}

	records, err := s.log.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	if undoneOriginals(records)[record.ID] {
		return nil, ErrAlreadyUndone
	}

	undoRecord := &domain.ExecutionRecord{
		ID:                  uuid.New(),
		Trigger:             domain.TriggerManualUndo,
		ExecutedAt:          time.Now(),
		TotalFunded:         decimal.Zero,
		Results:             []domain.RuleExecutionResult{},
		IsUndo:              true,
		OriginalExecutionID: &record.ID,
	}

	for _, result := range record.SuccessfulResults() {
		reversed, err := s.reverseResult(ctx, record, result)
		if err != nil {
			s.logger.Warn("undo transfer failed",
				"executionId", record.ID, "rule", result.RuleName, "error", err)
			reversed.Success = false
			reversed.Error = err.Error()
		} else {
			undoRecord.RulesExecuted++
			undoRecord.TotalFunded = undoRecord.TotalFunded.Sub(result.Amount)
		}
		undoRecord.Results = append(undoRecord.Results, reversed)
	}

	if err := s.log.Append(ctx, undoRecord); err != nil {
		return nil, fmt.Errorf("record undo: %w", err)
	}

	s.logger.Info("execution undone",
		"originalId", record.ID,
		"undoId", undoRecord.ID,
		"returned", undoRecord.TotalFunded.Neg())
	return undoRecord, nil
}

// reverseResult moves a rule's funded amount back to the pool, split evenly
// across the envelopes it funded.
func (s *Service) reverseResult(ctx context.Context, record *domain.ExecutionRecord, result domain.RuleExecutionResult) (domain.RuleExecutionResult, error) {
	reversed := domain.RuleExecutionResult{
		RuleID:          result.RuleID,
		RuleName:        result.RuleName,
		Success:         true,
		Amount:          result.Amount.Neg(),
		TargetEnvelopes: result.TargetEnvelopes,
		ExecutedAt:      time.Now(),
	}

	targets := result.TargetEnvelopes
	if len(targets) == 0 {
		return reversed, fmt.Errorf("rule %q has no recorded target envelopes", result.RuleName)
	}

	count := decimal.NewFromInt(int64(len(targets)))
	share := result.Amount.Div(count).RoundDown(2)
	first := result.Amount.Sub(share.Mul(count.Sub(decimal.NewFromInt(1))))

	description := fmt.Sprintf("Undo: %s (execution %s)", result.RuleName, record.ID)
	for i, target := range targets {
		amount := share
		if i == 0 {
			amount = first
		}
		// A target whose share rounds to zero received nothing worth
		// reversing; skip it rather than issue a zero transfer.
		if !amount.IsPositive() {
			continue
		}
		if err := s.ledger.TransferFunds(ctx, target, domain.UnassignedPool, amount, description); err != nil {
			return reversed, err
		}
		reversed.Transfers++
	}
	return reversed, nil
}

func undoneOriginals(records []*domain.ExecutionRecord) map[uuid.UUID]bool {
	undone := make(map[uuid.UUID]bool)
	for _, r := range records {
		if r.IsUndo && r.OriginalExecutionID != nil {
			undone[*r.OriginalExecutionID] = true
		}
	}
	return undone
}

// RuleActivity counts how often one rule moved money.
type RuleActivity struct {
	RuleID   uuid.UUID `json:"ruleId"`
	RuleName string    `json:"ruleName"`
	Count    int       `json:"count"`
}

// Statistics aggregates the execution log. Undo records count toward
// TotalExecutions and UndoCount but not toward funding totals.
type Statistics struct {
	TotalExecutions      int                        `json:"totalExecutions"`
	SuccessfulExecutions int                        `json:"successfulExecutions"`
	FailedExecutions     int                        `json:"failedExecutions"`
	UndoCount            int                        `json:"undoCount"`
	TotalRulesExecuted   int                        `json:"totalRulesExecuted"`
	TotalFunded          decimal.Decimal            `json:"totalFunded"`
	TotalReversed        decimal.Decimal            `json:"totalReversed"`
	NetFunded            decimal.Decimal            `json:"netFunded"`
	AverageFunded        decimal.Decimal            `json:"averageFunded"`
	Last30DaysCount      int                        `json:"last30DaysCount"`
	ExecutionsByTrigger  map[domain.TriggerType]int `json:"executionsByTrigger"`
	MostActiveRule       *RuleActivity              `json:"mostActiveRule,omitempty"`
	LastExecutedAt       *time.Time                 `json:"lastExecutedAt,omitempty"`
}

// Statistics computes aggregates over the whole log.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	records, err := s.log.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalFunded:         decimal.Zero,
		TotalReversed:       decimal.Zero,
		NetFunded:           decimal.Zero,
		AverageFunded:       decimal.Zero,
		ExecutionsByTrigger: make(map[domain.TriggerType]int),
	}

	activity := make(map[uuid.UUID]*RuleActivity)
	cutoff := time.Now().AddDate(0, 0, -30)
	funded := 0
	for _, record := range records {
		stats.TotalExecutions++
		stats.ExecutionsByTrigger[record.Trigger]++

		// Failed runs never persist a record, so every logged record counts
		// as successful and the failed count stays zero.
		stats.SuccessfulExecutions++

		if record.ExecutedAt.After(cutoff) {
			stats.Last30DaysCount++
		}

		if stats.LastExecutedAt == nil || record.ExecutedAt.After(*stats.LastExecutedAt) {
			executed := record.ExecutedAt
			stats.LastExecutedAt = &executed
		}

		if record.IsUndo {
			stats.UndoCount++
			stats.TotalReversed = stats.TotalReversed.Add(record.TotalFunded.Neg())
			continue
		}

		stats.TotalRulesExecuted += record.RulesExecuted
		stats.TotalFunded = stats.TotalFunded.Add(record.TotalFunded)
		funded++

		for _, result := range record.SuccessfulResults() {
			a, ok := activity[result.RuleID]
			if !ok {
				a = &RuleActivity{RuleID: result.RuleID, RuleName: result.RuleName}
				activity[result.RuleID] = a
			}
			a.Count++
		}
	}

	stats.NetFunded = stats.TotalFunded.Sub(stats.TotalReversed)
	if funded > 0 {
		stats.AverageFunded = stats.TotalFunded.Div(decimal.NewFromInt(int64(funded))).Round(2)
	}

	for _, a := range activity {
		if stats.MostActiveRule == nil || a.Count > stats.MostActiveRule.Count {
			stats.MostActiveRule = a
		}
	}
	return stats, nil
}
