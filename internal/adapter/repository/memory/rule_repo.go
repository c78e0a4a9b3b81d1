package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mleite/autofund-backend/internal/domain"
)

// RuleRepository is a thread-safe in-memory rule store. It backs tests and
// single-process deployments that do not need Postgres.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]domain.Rule
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{rules: make(map[uuid.UUID]domain.Rule)}
}

func (r *RuleRepository) Add(_ context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *RuleRepository) Get(_ context.Context, id uuid.UUID) (*domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return &rule, nil
}

func (r *RuleRepository) List(_ context.Context) ([]*domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Rule, 0, len(r.rules))
	for id := range r.rules {
		rule := r.rules[id]
		out = append(out, &rule)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *RuleRepository) Update(_ context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[rule.ID]; !ok {
		return domain.ErrRuleNotFound
	}
	r.rules[rule.ID] = *rule
	return nil
}

func (r *RuleRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}
