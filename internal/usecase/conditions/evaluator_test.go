package conditions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mleite/autofund-backend/internal/domain"
)

func manualContext(cash int64) *domain.ExecutionContext {
	return &domain.ExecutionContext{
		Trigger:     domain.TriggerManual,
		CurrentDate: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		Snapshot: domain.BudgetSnapshot{
			UnassignedCash: decimal.NewFromInt(cash),
		},
	}
}

func TestShouldExecute_DisabledRuleNeverExecutes(t *testing.T) {
	e := NewEvaluator()
	rule := &domain.Rule{
		Name:    "disabled",
		Enabled: false,
		Type:    domain.RuleTypeFixedAmount,
		Trigger: domain.TriggerManual,
		Config:  domain.RuleConfig{Amount: decimal.NewFromInt(10), TargetID: uuid.New()},
	}

	assert.False(t, e.ShouldExecute(rule, manualContext(500)))
}

func TestShouldExecute_TriggerMustMatchRun(t *testing.T) {
	e := NewEvaluator()
	rule := &domain.Rule{
		Name:    "monthly",
		Enabled: true,
		Type:    domain.RuleTypeFixedAmount,
		Trigger: domain.TriggerMonthly,
		Config:  domain.RuleConfig{Amount: decimal.NewFromInt(10), TargetID: uuid.New()},
	}

	ctx := manualContext(500)
	assert.False(t, e.ShouldExecute(rule, ctx), "monthly rule must not run on a manual trigger")

	ctx.Trigger = domain.TriggerMonthly
	assert.True(t, e.ShouldExecute(rule, ctx))
}

func TestShouldExecute_ManualRuleOnlyOnManualRuns(t *testing.T) {
	e := NewEvaluator()
	rule := &domain.Rule{
		Name:    "manual",
		Enabled: true,
		Type:    domain.RuleTypeFixedAmount,
		Trigger: domain.TriggerManual,
		Config:  domain.RuleConfig{Amount: decimal.NewFromInt(10), TargetID: uuid.New()},
	}

	ctx := manualContext(500)
	ctx.Trigger = domain.TriggerWeekly
	assert.False(t, e.ShouldExecute(rule, ctx))

	ctx.Trigger = domain.TriggerManual
	assert.True(t, e.ShouldExecute(rule, ctx))
}

func TestShouldExecute_IncomeDetectedRequiresQualifyingIncome(t *testing.T) {
	e := NewEvaluator()
	rule := &domain.Rule{
		Name:    "income split",
		Enabled: true,
		Type:    domain.RuleTypePercentage,
		Trigger: domain.TriggerIncomeDetected,
		Config:  domain.RuleConfig{Percentage: decimal.NewFromInt(30), TargetID: uuid.New()},
	}

	ctx := manualContext(500)
	ctx.Trigger = domain.TriggerIncomeDetected
	assert.False(t, e.ShouldExecute(rule, ctx), "no income event in context")

	ctx.Snapshot.Income = &domain.IncomeEvent{Amount: decimal.NewFromInt(50)}
	assert.False(t, e.ShouldExecute(rule, ctx), "below threshold")

	ctx.Snapshot.Income = &domain.IncomeEvent{Amount: decimal.NewFromInt(1500)}
	assert.True(t, e.ShouldExecute(rule, ctx))
}

func TestShouldExecute_ConfigurableIncomeThreshold(t *testing.T) {
	e := Evaluator{IncomeThreshold: decimal.NewFromInt(1000)}
	rule := &domain.Rule{
		Name:    "income split",
		Enabled: true,
		Type:    domain.RuleTypePercentage,
		Trigger: domain.TriggerIncomeDetected,
		Config:  domain.RuleConfig{Percentage: decimal.NewFromInt(30), TargetID: uuid.New()},
	}

	ctx := manualContext(500)
	ctx.Trigger = domain.TriggerIncomeDetected
	ctx.Snapshot.Income = &domain.IncomeEvent{Amount: decimal.NewFromInt(500)}

	assert.False(t, e.ShouldExecute(rule, ctx))

	ctx.Snapshot.Income = &domain.IncomeEvent{Amount: decimal.NewFromInt(1000)}
	assert.True(t, e.ShouldExecute(rule, ctx))
}

func TestShouldExecute_ConditionalRuleGatesOnConditions(t *testing.T) {
	e := NewEvaluator()
	envID := uuid.New()
	rule := &domain.Rule{
		Name:    "top up groceries",
		Enabled: true,
		Type:    domain.RuleTypeConditional,
		Trigger: domain.TriggerManual,
		Config: domain.RuleConfig{
			Amount:   decimal.NewFromInt(100),
			TargetID: uuid.New(),
			Conditions: []domain.Condition{
				{Type: domain.ConditionBalanceLessThan, EnvelopeID: &envID, Value: decimal.NewFromInt(50)},
			},
		},
	}

	ctx := manualContext(500)
	ctx.Snapshot.Envelopes = []domain.Envelope{
		{ID: envID, Name: "Groceries", CurrentBalance: decimal.NewFromInt(20)},
	}
	assert.True(t, e.ShouldExecute(rule, ctx))

	ctx.Snapshot.Envelopes[0].CurrentBalance = decimal.NewFromInt(80)
	assert.False(t, e.ShouldExecute(rule, ctx))
}

func TestEvaluateConditions_EmptyListHolds(t *testing.T) {
	assert.True(t, EvaluateConditions(nil, manualContext(0)))
}

func TestEvaluateConditions_AllMustHold(t *testing.T) {
	ctx := manualContext(200)
	conds := []domain.Condition{
		{Type: domain.ConditionUnassignedAbove, Value: decimal.NewFromInt(100)},
		{Type: domain.ConditionUnassignedAbove, Value: decimal.NewFromInt(300)},
	}

	assert.False(t, EvaluateConditions(conds, ctx))

	ctx.Snapshot.UnassignedCash = decimal.NewFromInt(400)
	assert.True(t, EvaluateConditions(conds, ctx))
}

func TestEvaluateConditions_PoolScopedBalance(t *testing.T) {
	ctx := manualContext(30)
	conds := []domain.Condition{
		{Type: domain.ConditionBalanceLessThan, Value: decimal.NewFromInt(50)},
	}

	assert.True(t, EvaluateConditions(conds, ctx), "no envelope ID scopes the check to the pool")
}

func TestEvaluateConditions_UnknownEnvelopeNeverFires(t *testing.T) {
	ctx := manualContext(500)
	missing := uuid.New()
	less := []domain.Condition{
		{Type: domain.ConditionBalanceLessThan, EnvelopeID: &missing, Value: decimal.NewFromInt(50)},
	}
	greater := []domain.Condition{
		{Type: domain.ConditionBalanceGreaterThan, EnvelopeID: &missing, Value: decimal.NewFromInt(50)},
	}

	assert.False(t, EvaluateConditions(less, ctx))
	assert.False(t, EvaluateConditions(greater, ctx))
}

func TestEvaluateConditions_DateRange(t *testing.T) {
	ctx := manualContext(500)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	conds := []domain.Condition{
		{Type: domain.ConditionDateRange, StartDate: &start, EndDate: &end},
	}

	assert.True(t, EvaluateConditions(conds, ctx))

	ctx.CurrentDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, EvaluateConditions(conds, ctx))
}

func TestEvaluateConditions_IncomeAmountOperators(t *testing.T) {
	ctx := manualContext(0)
	ctx.Snapshot.Income = &domain.IncomeEvent{Amount: decimal.NewFromInt(1500)}

	cases := []struct {
		operator domain.ConditionOperator
		value    int64
		expected bool
	}{
		{domain.OperatorGreaterThan, 1000, true},
		{domain.OperatorGreaterThan, 1500, false},
		{domain.OperatorGreaterOrEqual, 1500, true},
		{domain.OperatorLessThan, 2000, true},
		{domain.OperatorLessOrEqual, 1499, false},
		{domain.OperatorEquals, 1500, true},
	}

	for _, tc := range cases {
		conds := []domain.Condition{{
			Type:     domain.ConditionIncomeAmount,
			Operator: tc.operator,
			Value:    decimal.NewFromInt(tc.value),
		}}
		assert.Equal(t, tc.expected, EvaluateConditions(conds, ctx),
			"operator %s value %d", tc.operator, tc.value)
	}
}

func TestEvaluateConditions_IncomeAmountWithoutIncomeFails(t *testing.T) {
	conds := []domain.Condition{{
		Type:     domain.ConditionIncomeAmount,
		Operator: domain.OperatorGreaterThan,
		Value:    decimal.NewFromInt(100),
	}}

	assert.False(t, EvaluateConditions(conds, manualContext(500)))
}
