package rulemgmt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mleite/autofund-backend/internal/domain"
)

// Service is the validating CRUD layer over the rule store. Every write
// passes domain validation before it reaches the repository.
type Service struct {
	rules  domain.RuleRepository
	logger *slog.Logger
}

func NewService(rules domain.RuleRepository, logger *slog.Logger) *Service {
	return &Service{rules: rules, logger: logger}
}

// CreateRule validates and stores a new rule, assigning identity and
// timestamps. Rules default to enabled unless explicitly disabled.
func (s *Service) CreateRule(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	rule.ID = uuid.New()
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.ExecutionCount = 0
	rule.LastExecuted = nil

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	if err := s.rules.Add(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("rule created", "ruleId", rule.ID, "name", rule.Name, "type", rule.Type)
	return rule, nil
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	return s.rules.Get(ctx, id)
}

// ListRules returns all rules in priority order.
func (s *Service) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return s.rules.List(ctx)
}

// UpdateRule applies changes to an existing rule. Identity, creation time
// and execution stats are preserved from the stored rule.
func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, updated *domain.Rule) (*domain.Rule, error) {
	existing, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.ExecutionCount = existing.ExecutionCount
	updated.LastExecuted = existing.LastExecuted
	updated.UpdatedAt = time.Now()

	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	if err := s.rules.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("rule deleted", "ruleId", id)
	return nil
}

// ToggleRule flips a rule's enabled flag and returns the new state.
func (s *Service) ToggleRule(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	rule, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Enabled = !rule.Enabled
	rule.UpdatedAt = time.Now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DuplicateRule copies a rule under a new identity with reset execution
// stats. The copy starts disabled so it cannot run before review.
func (s *Service) DuplicateRule(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	original, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	copied := *original
	copied.ID = uuid.New()
	copied.Name = original.Name + " (copy)"
	copied.Enabled = false
	copied.ExecutionCount = 0
	copied.LastExecuted = nil
	now := time.Now()
	copied.CreatedAt = now
	copied.UpdatedAt = now

	if err := s.rules.Add(ctx, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}

// BulkToggle sets the enabled flag on multiple rules. Unknown IDs are
// skipped and reported in the returned count.
func (s *Service) BulkToggle(ctx context.Context, ids []uuid.UUID, enabled bool) (int, error) {
	updated := 0
	for _, id := range ids {
		rule, err := s.rules.Get(ctx, id)
		if err != nil {
			s.logger.Warn("bulk toggle skipped unknown rule", "ruleId", id)
			continue
		}
		rule.Enabled = enabled
		rule.UpdatedAt = time.Now()
		if err := s.rules.Update(ctx, rule); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// BulkDelete removes multiple rules, skipping unknown IDs.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.rules.Delete(ctx, id); err != nil {
			s.logger.Warn("bulk delete skipped rule", "ruleId", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// BulkSetPriority reassigns priorities for the given rules in one pass.
func (s *Service) BulkSetPriority(ctx context.Context, priorities map[uuid.UUID]int) (int, error) {
	updated := 0
	for id, priority := range priorities {
		rule, err := s.rules.Get(ctx, id)
		if err != nil {
			continue
		}
		rule.Priority = priority
		rule.UpdatedAt = time.Now()
		if err := s.rules.Update(ctx, rule); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Filter narrows a rule listing. Zero values match everything.
type Filter struct {
	Enabled *bool
	Type    domain.RuleType
	Trigger domain.TriggerType
	Search  string
}

// FilterRules returns the rules matching every set filter field. Search
// matches case-insensitively against name and description.
func (s *Service) FilterRules(ctx context.Context, filter Filter) ([]*domain.Rule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.Rule, 0, len(rules))
	for _, rule := range rules {
		if filter.Enabled != nil && rule.Enabled != *filter.Enabled {
			continue
		}
		if filter.Type != "" && rule.Type != filter.Type {
			continue
		}
		if filter.Trigger != "" && rule.Trigger != filter.Trigger {
			continue
		}
		if filter.Search != "" && !matchesSearch(rule, filter.Search) {
			continue
		}
		matched = append(matched, rule)
	}
	return matched, nil
}

func matchesSearch(rule *domain.Rule, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(rule.Name), needle) ||
		strings.Contains(strings.ToLower(rule.Description), needle)
}

// RuleStatistics summarizes the rule store.
type RuleStatistics struct {
	TotalRules     int                        `json:"totalRules"`
	EnabledRules   int                        `json:"enabledRules"`
	RulesByType    map[domain.RuleType]int    `json:"rulesByType"`
	RulesByTrigger map[domain.TriggerType]int `json:"rulesByTrigger"`
	TotalRuns      int                        `json:"totalRuns"`
}

// Statistics aggregates counts over all stored rules.
func (s *Service) Statistics(ctx context.Context) (*RuleStatistics, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RuleStatistics{
		RulesByType:    make(map[domain.RuleType]int),
		RulesByTrigger: make(map[domain.TriggerType]int),
	}
	for _, rule := range rules {
		stats.TotalRules++
		if rule.Enabled {
			stats.EnabledRules++
		}
		stats.RulesByType[rule.Type]++
		stats.RulesByTrigger[rule.Trigger]++
		stats.TotalRuns += rule.ExecutionCount
	}
	return stats, nil
}
