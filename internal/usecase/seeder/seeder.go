package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

// Fixed UUIDs for the template rules so re-seeding is idempotent.
var (
	TemplateSaveIncome    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	TemplateMonthlyBudget = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// TemplateSeeder ensures a fresh install has example rules to start from.
// Templates are created disabled and with no target envelope bound, so
// they never run until the user edits them.
type TemplateSeeder struct {
	rules domain.RuleRepository
}

// NewTemplateSeeder creates a new TemplateSeeder instance
func NewTemplateSeeder(rules domain.RuleRepository) *TemplateSeeder {
	return &TemplateSeeder{rules: rules}
}

// Seed creates the template rules that don't exist yet. Existing rules,
// template or not, are left untouched.
func (s *TemplateSeeder) Seed(ctx context.Context) error {
	now := time.Now()
	templates := []*domain.Rule{
		{
			ID:          TemplateSaveIncome,
			Name:        "Save 20% of income",
			Description: "Example: move a fifth of every detected paycheck into savings. Pick a target envelope and enable.",
			Type:        domain.RuleTypePercentage,
			Trigger:     domain.TriggerIncomeDetected,
			Priority:    10,
			Enabled:     false,
			Config:      domain.RuleConfig{Percentage: decimal.NewFromInt(20)},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          TemplateMonthlyBudget,
			Name:        "Monthly fixed budget",
			Description: "Example: fund a fixed amount on the monthly run. Pick a target envelope and enable.",
			Type:        domain.RuleTypeFixedAmount,
			Trigger:     domain.TriggerMonthly,
			Priority:    20,
			Enabled:     false,
			Config:      domain.RuleConfig{Amount: decimal.NewFromInt(100)},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	for _, template := range templates {
		_, err := s.rules.Get(ctx, template.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrRuleNotFound) {
			return fmt.Errorf("failed to check template rule %s: %w", template.ID, err)
		}

		if err := s.rules.Add(ctx, template); err != nil {
			return err
		}
	}

	return nil
}
