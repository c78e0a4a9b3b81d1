package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

// executionLogRepository implements domain.ExecutionLogRepository
type executionLogRepository struct {
	db *DB
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *DB) domain.ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

// Append stores a new execution record
func (r *executionLogRepository) Append(ctx context.Context, record *domain.ExecutionRecord) error {
	query := `
		INSERT INTO execution_log (id, trigger_type, executed_at, rules_executed, total_funded, results, remaining_cash, initial_cash, is_undo, original_execution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal execution results: %w", err)
	}

	var originalID interface{}
	if record.OriginalExecutionID != nil {
		originalID = *record.OriginalExecutionID
	}

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		string(record.Trigger),
		record.ExecutedAt,
		record.RulesExecuted,
		record.TotalFunded.String(),
		results,
		record.RemainingCash.String(),
		record.InitialCash.String(),
		record.IsUndo,
		originalID,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution record: %w", err)
	}

	return nil
}

// List retrieves records newest-first. limit <= 0 returns all records.
func (r *executionLogRepository) List(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT id, trigger_type, executed_at, rules_executed, total_funded, results, remaining_cash, initial_cash, is_undo, original_execution_id
		FROM execution_log
		ORDER BY executed_at DESC
	`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}
	defer rows.Close()

	var records []*domain.ExecutionRecord
	for rows.Next() {
		record, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution records: %w", err)
	}

	return records, nil
}

// Get retrieves a record by its ID
func (r *executionLogRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	query := `
		SELECT id, trigger_type, executed_at, rules_executed, total_funded, results, remaining_cash, initial_cash, is_undo, original_execution_id
		FROM execution_log
		WHERE id = $1
	`

	record, err := scanExecutionRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}
	return record, nil
}

// Delete removes a single record
func (r *executionLogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM execution_log WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrExecutionNotFound
	}

	return nil
}

// Clear removes all records
func (r *executionLogRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM execution_log`); err != nil {
		return fmt.Errorf("failed to clear execution log: %w", err)
	}
	return nil
}

func scanExecutionRecord(row rowScanner) (*domain.ExecutionRecord, error) {
	var record domain.ExecutionRecord
	var trigger string
	var totalFunded, remainingCash, initialCash string
	var results []byte
	var originalID sql.NullString

	err := row.Scan(
		&record.ID,
		&trigger,
		&record.ExecutedAt,
		&record.RulesExecuted,
		&totalFunded,
		&results,
		&remainingCash,
		&initialCash,
		&record.IsUndo,
		&originalID,
	)
	if err != nil {
		return nil, err
	}

	record.Trigger = domain.TriggerType(trigger)
	record.ExecutedAt = record.ExecutedAt.UTC()

	record.TotalFunded, err = decimal.NewFromString(totalFunded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_funded: %w", err)
	}
	record.RemainingCash, err = decimal.NewFromString(remainingCash)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remaining_cash: %w", err)
	}
	record.InitialCash, err = decimal.NewFromString(initialCash)
	if err != nil {
		return nil, fmt.Errorf("failed to parse initial_cash: %w", err)
	}

	if err := json.Unmarshal(results, &record.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution results: %w", err)
	}

	if originalID.Valid {
		parsed, err := uuid.Parse(originalID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse original_execution_id: %w", err)
		}
		record.OriginalExecutionID = &parsed
	}

	return &record, nil
}
