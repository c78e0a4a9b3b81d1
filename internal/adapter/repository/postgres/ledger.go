package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
)

// ErrInsufficientFunds is returned when a transfer would overdraw its
// source balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ledger implements domain.BudgetLedger over the envelopes and
// budget_state tables. Every transfer is applied atomically and journaled
// into funding_transfers.
type ledger struct {
	db *DB
}

// NewLedger creates a new Postgres-backed budget ledger
func NewLedger(db *DB) domain.BudgetLedger {
	return &ledger{db: db}
}

// Envelopes returns all envelopes with current balances
func (l *ledger) Envelopes(ctx context.Context) ([]domain.Envelope, error) {
	query := `
		SELECT id, name, current_balance, target_amount
		FROM envelopes
		ORDER BY name ASC
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		var env domain.Envelope
		var balanceStr, targetStr string

		if err := rows.Scan(&env.ID, &env.Name, &balanceStr, &targetStr); err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}

		env.CurrentBalance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current_balance: %w", err)
		}
		env.TargetAmount, err = decimal.NewFromString(targetStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target_amount: %w", err)
		}

		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate envelopes: %w", err)
	}

	return envelopes, nil
}

// UnassignedCash returns the current unassigned cash pool balance
func (l *ledger) UnassignedCash(ctx context.Context) (decimal.Decimal, error) {
	var cashStr string
	err := l.db.QueryRowContext(ctx, `SELECT unassigned_cash FROM budget_state WHERE id = 1`).Scan(&cashStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get unassigned cash: %w", err)
	}

	cash, err := decimal.NewFromString(cashStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse unassigned_cash: %w", err)
	}
	return cash, nil
}

// TransferFunds moves amount between an envelope (or the unassigned pool)
// and another, atomically, and records the movement.
func (l *ledger) TransferFunds(ctx context.Context, from, to uuid.UUID, amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	dbTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := debit(ctx, dbTx, from, amount); err != nil {
		return err
	}
	if err := credit(ctx, dbTx, to, amount); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO funding_transfers (id, from_envelope_id, to_envelope_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := dbTx.ExecContext(ctx, insertQuery, uuid.New(), from, to, amount.String(), description); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	return nil
}

func debit(ctx context.Context, dbTx *sql.Tx, id uuid.UUID, amount decimal.Decimal) error {
	if id == domain.UnassignedPool {
		query := `
			UPDATE budget_state
			SET unassigned_cash = unassigned_cash - $1
			WHERE id = 1 AND unassigned_cash >= $1
		`
		return applyBalanceChange(ctx, dbTx, query, amount, "unassigned pool")
	}

	query := `
		UPDATE envelopes
		SET current_balance = current_balance - $1
		WHERE id = $2 AND current_balance >= $1
	`
	result, err := dbTx.ExecContext(ctx, query, amount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to debit envelope: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check debit result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w or envelope %s not found", ErrInsufficientFunds, id)
	}
	return nil
}

func credit(ctx context.Context, dbTx *sql.Tx, id uuid.UUID, amount decimal.Decimal) error {
	if id == domain.UnassignedPool {
		query := `
			UPDATE budget_state
			SET unassigned_cash = unassigned_cash + $1
			WHERE id = 1
		`
		if _, err := dbTx.ExecContext(ctx, query, amount.String()); err != nil {
			return fmt.Errorf("failed to credit unassigned pool: %w", err)
		}
		return nil
	}

	result, err := dbTx.ExecContext(ctx,
		`UPDATE envelopes SET current_balance = current_balance + $1 WHERE id = $2`,
		amount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to credit envelope: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check credit result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("envelope %s not found", id)
	}
	return nil
}

func applyBalanceChange(ctx context.Context, dbTx *sql.Tx, query string, amount decimal.Decimal, name string) error {
	result, err := dbTx.ExecContext(ctx, query, amount.String())
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s update: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w in %s", ErrInsufficientFunds, name)
	}
	return nil
}
