package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mleite/autofund-backend/internal/adapter/repository/memory"
	"github.com/mleite/autofund-backend/internal/domain"
)

func TestSeed_CreatesDisabledTemplates(t *testing.T) {
	repo := memory.NewRuleRepository()
	s := NewTemplateSeeder(repo)

	require.NoError(t, s.Seed(context.Background()))

	rules, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)

	for _, rule := range rules {
		assert.False(t, rule.Enabled, "templates must not run before review")
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	repo := memory.NewRuleRepository()
	s := NewTemplateSeeder(repo)

	require.NoError(t, s.Seed(context.Background()))
	require.NoError(t, s.Seed(context.Background()))

	rules, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

// flakyRuleRepo fails lookups with a non-sentinel error.
type flakyRuleRepo struct {
	*memory.RuleRepository
	adds int
}

func (f *flakyRuleRepo) Get(context.Context, uuid.UUID) (*domain.Rule, error) {
	return nil, errors.New("connection reset")
}

func (f *flakyRuleRepo) Add(ctx context.Context, rule *domain.Rule) error {
	f.adds++
	return f.RuleRepository.Add(ctx, rule)
}

func TestSeed_StopsOnLookupErrors(t *testing.T) {
	repo := &flakyRuleRepo{RuleRepository: memory.NewRuleRepository()}
	s := NewTemplateSeeder(repo)

	err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, repo.adds, "transport errors must not look like missing templates")
}

func TestSeed_LeavesEditedTemplatesAlone(t *testing.T) {
	repo := memory.NewRuleRepository()
	s := NewTemplateSeeder(repo)
	require.NoError(t, s.Seed(context.Background()))

	rule, err := repo.Get(context.Background(), TemplateSaveIncome)
	require.NoError(t, err)
	rule.Name = "My savings rule"
	require.NoError(t, repo.Update(context.Background(), rule))

	require.NoError(t, s.Seed(context.Background()))

	got, err := repo.Get(context.Background(), TemplateSaveIncome)
	require.NoError(t, err)
	assert.Equal(t, "My savings rule", got.Name)
}
