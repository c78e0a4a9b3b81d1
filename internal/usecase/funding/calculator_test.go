package funding

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mleite/autofund-backend/internal/domain"
)

func contextWithCash(cash int64) *domain.ExecutionContext {
	return &domain.ExecutionContext{
		Trigger: domain.TriggerManual,
		Snapshot: domain.BudgetSnapshot{
			UnassignedCash: decimal.NewFromInt(cash),
		},
	}
}

func TestComputeAmount_FixedAmountCappedByAvailableCash(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypeFixedAmount,
		Config: domain.RuleConfig{Amount: decimal.NewFromInt(200), TargetID: uuid.New()},
	}

	amount := ComputeAmount(rule, contextWithCash(500))
	assert.True(t, amount.Equal(decimal.NewFromInt(200)))

	amount = ComputeAmount(rule, contextWithCash(150))
	assert.True(t, amount.Equal(decimal.NewFromInt(150)), "capped at available cash")
}

func TestComputeAmount_ZeroWhenNoCash(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypeFixedAmount,
		Config: domain.RuleConfig{Amount: decimal.NewFromInt(200), TargetID: uuid.New()},
	}

	assert.True(t, ComputeAmount(rule, contextWithCash(0)).IsZero())
	assert.True(t, ComputeAmount(rule, contextWithCash(-50)).IsZero(), "never negative")
}

func TestComputeAmount_PercentageOfAvailableCash(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypePercentage,
		Config: domain.RuleConfig{Percentage: decimal.NewFromInt(30), TargetID: uuid.New()},
	}

	amount := ComputeAmount(rule, contextWithCash(500))
	assert.True(t, amount.Equal(decimal.NewFromInt(150)))
}

func TestComputeAmount_PercentageRoundsToCents(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypePercentage,
		Config: domain.RuleConfig{Percentage: decimal.NewFromInt(33), TargetID: uuid.New()},
	}

	ctx := &domain.ExecutionContext{
		Snapshot: domain.BudgetSnapshot{UnassignedCash: decimal.NewFromFloat(100.10)},
	}

	amount := ComputeAmount(rule, ctx)
	assert.True(t, amount.Equal(decimal.NewFromFloat(33.03)), "got %s", amount)
}

func TestComputeAmount_SplitRemainderReturnsWholePool(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypeSplitRemainder,
		Config: domain.RuleConfig{TargetIDs: []uuid.UUID{uuid.New(), uuid.New()}},
	}

	amount := ComputeAmount(rule, contextWithCash(475))
	assert.True(t, amount.Equal(decimal.NewFromInt(475)))
}

func TestComputeAmount_PriorityFillTopsUpToTarget(t *testing.T) {
	envID := uuid.New()
	rule := &domain.Rule{
		Type:   domain.RuleTypePriorityFill,
		Config: domain.RuleConfig{TargetID: envID},
	}

	ctx := contextWithCash(500)
	ctx.Snapshot.Envelopes = []domain.Envelope{{
		ID:             envID,
		CurrentBalance: decimal.NewFromInt(120),
		TargetAmount:   decimal.NewFromInt(400),
	}}

	amount := ComputeAmount(rule, ctx)
	assert.True(t, amount.Equal(decimal.NewFromInt(280)))
}

func TestComputeAmount_PriorityFillCappedByPool(t *testing.T) {
	envID := uuid.New()
	rule := &domain.Rule{
		Type:   domain.RuleTypePriorityFill,
		Config: domain.RuleConfig{TargetID: envID},
	}

	ctx := contextWithCash(100)
	ctx.Snapshot.Envelopes = []domain.Envelope{{
		ID:           envID,
		TargetAmount: decimal.NewFromInt(400),
	}}

	amount := ComputeAmount(rule, ctx)
	assert.True(t, amount.Equal(decimal.NewFromInt(100)))
}

func TestComputeAmount_PriorityFillAlreadyFull(t *testing.T) {
	envID := uuid.New()
	rule := &domain.Rule{
		Type:   domain.RuleTypePriorityFill,
		Config: domain.RuleConfig{TargetID: envID},
	}

	ctx := contextWithCash(500)
	ctx.Snapshot.Envelopes = []domain.Envelope{{
		ID:             envID,
		CurrentBalance: decimal.NewFromInt(450),
		TargetAmount:   decimal.NewFromInt(400),
	}}

	assert.True(t, ComputeAmount(rule, ctx).IsZero(), "overfunded envelope needs nothing")
}

func TestComputeAmount_PriorityFillUnknownEnvelope(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypePriorityFill,
		Config: domain.RuleConfig{TargetID: uuid.New()},
	}

	assert.True(t, ComputeAmount(rule, contextWithCash(500)).IsZero())
}

func TestComputeAmount_ConditionalUsesFixedAmount(t *testing.T) {
	rule := &domain.Rule{
		Type:   domain.RuleTypeConditional,
		Config: domain.RuleConfig{Amount: decimal.NewFromInt(100), TargetID: uuid.New()},
	}

	amount := ComputeAmount(rule, contextWithCash(500))
	assert.True(t, amount.Equal(decimal.NewFromInt(100)))
}

func TestComputeAmount_UnknownTypeIsZero(t *testing.T) {
	rule := &domain.Rule{Type: "mystery"}
	assert.True(t, ComputeAmount(rule, contextWithCash(500)).IsZero())
}
