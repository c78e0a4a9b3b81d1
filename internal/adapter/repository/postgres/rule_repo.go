package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mleite/autofund-backend/internal/domain"
)

// ruleRepository implements domain.RuleRepository
type ruleRepository struct {
	db *DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *DB) domain.RuleRepository {
	return &ruleRepository{db: db}
}

// Add creates a new rule
func (r *ruleRepository) Add(ctx context.Context, rule *domain.Rule) error {
	query := `
		INSERT INTO funding_rules (id, name, description, rule_type, trigger_type, priority, enabled, config, execution_count, last_executed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	config, err := json.Marshal(rule.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal rule config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		string(rule.Type),
		string(rule.Trigger),
		rule.Priority,
		rule.Enabled,
		config,
		rule.ExecutionCount,
		rule.LastExecuted,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by its ID
func (r *ruleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	query := `
		SELECT id, name, description, rule_type, trigger_type, priority, enabled, config, execution_count, last_executed, created_at, updated_at
		FROM funding_rules
		WHERE id = $1
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule by ID: %w", err)
	}
	return rule, nil
}

// List retrieves all rules ordered by priority, then creation time
func (r *ruleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT id, name, description, rule_type, trigger_type, priority, enabled, config, execution_count, last_executed, created_at, updated_at
		FROM funding_rules
		ORDER BY priority ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// Update replaces an existing rule
func (r *ruleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	query := `
		UPDATE funding_rules
		SET name = $2, description = $3, rule_type = $4, trigger_type = $5, priority = $6, enabled = $7, config = $8, execution_count = $9, last_executed = $10, updated_at = $11
		WHERE id = $1
	`

	config, err := json.Marshal(rule.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal rule config: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		string(rule.Type),
		string(rule.Trigger),
		rule.Priority,
		rule.Enabled,
		config,
		rule.ExecutionCount,
		rule.LastExecuted,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// Delete removes a rule
func (r *ruleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM funding_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var ruleType, triggerType string
	var config []byte
	var lastExecuted sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&ruleType,
		&triggerType,
		&rule.Priority,
		&rule.Enabled,
		&config,
		&rule.ExecutionCount,
		&lastExecuted,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Type = domain.RuleType(ruleType)
	rule.Trigger = domain.TriggerType(triggerType)

	if lastExecuted.Valid {
		executed := lastExecuted.Time.UTC()
		rule.LastExecuted = &executed
	}

	if err := json.Unmarshal(config, &rule.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule config: %w", err)
	}

	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()

	return &rule, nil
}
