/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the SQL for client and transfer persistence plus the two critical
 * write paths that enforce the rolling-window cap atomically.
 *
 * Serialization strategy: every write that turns a transfer `completed` takes a
 * transaction-scoped advisory lock keyed on the client's document number
 * (pg_advisory_xact_lock over hashtext), recomputes the window aggregate
 * server-side, and only then inserts or updates. Two concurrent sends for the
 * same client therefore serialize at the database, and a verdict computed by an
 * earlier read-side check is never trusted.
 *
 * Monetary columns are NUMERIC. Values cross the driver boundary as text and are
 * parsed into shopspring decimals, so no binary float ever touches an amount.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact monetary values.
 * - internal/domain, internal/engine: Domain models and the shared window logic.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/engine"
)

var (
	ErrClientNotFound          = errors.New("client not found")
	ErrTransferNotFound        = errors.New("transfer not found")
	ErrCapExceeded             = errors.New("rolling-window cap exceeded")
	ErrInvalidStatusTransition = errors.New("invalid transfer status transition")
)

const transferColumns = `id, tenant_id, document_number, amount::text, status, transfer_date, destination, created_at, updated_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var amount string
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.DocumentNumber,
		&amount,
		&t.Status,
		&t.TransferDate,
		&t.Destination,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse transfer amount %q: %w", amount, err)
	}
	return &t, nil
}

// CompletedTransfersSince returns completed transfers for a document number
// across all tenants, ascending by transfer date. This is the one deliberately
// unscoped query in the repository; it exists solely to feed the aggregator.
func (r *PostgresRepository) CompletedTransfersSince(ctx context.Context, documentNumber string, since time.Time) ([]domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE document_number = $1
		  AND status = 'completed'
		  AND transfer_date >= $2
		ORDER BY transfer_date ASC
	`
	rows, err := r.db.Query(ctx, query, documentNumber, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// UpsertClient inserts a client or refreshes identity attributes for an already
// known document number. Tenants share client identity records.
func (r *PostgresRepository) UpsertClient(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (document_number, full_name, nationality, date_of_birth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (document_number)
		DO UPDATE SET
			full_name = EXCLUDED.full_name,
			nationality = EXCLUDED.nationality,
			date_of_birth = EXCLUDED.date_of_birth,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		client.DocumentNumber,
		client.FullName,
		client.Nationality,
		client.DateOfBirth,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
}

// FindClientByDocumentNumber retrieves a client identity record.
func (r *PostgresRepository) FindClientByDocumentNumber(ctx context.Context, documentNumber string) (*domain.Client, error) {
	var client domain.Client
	query := `
		SELECT document_number, full_name, nationality, date_of_birth, created_at, updated_at
		FROM clients
		WHERE document_number = $1
	`
	err := r.db.QueryRow(ctx, query, documentNumber).Scan(
		&client.DocumentNumber,
		&client.FullName,
		&client.Nationality,
		&client.DateOfBirth,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// FindTransferByID retrieves one of the tenant's own transfers.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE id = $1 AND tenant_id = $2
	`
	t, err := scanTransfer(r.db.QueryRow(ctx, query, transferID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListTenantTransfers lists the tenant's own transfers, newest first.
func (r *PostgresRepository) ListTenantTransfers(ctx context.Context, tenantID uuid.UUID, opts domain.TransferListOptions) ([]domain.Transfer, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE tenant_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY transfer_date DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, tenantID, opts.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// CreatePendingTransfer inserts a pending transfer. No cap check happens here:
// pending rows do not count toward any window until completed.
func (r *PostgresRepository) CreatePendingTransfer(ctx context.Context, transfer *domain.Transfer) error {
	transfer.Status = domain.TransferStatusPending
	query := `
		INSERT INTO transfers (id, tenant_id, document_number, amount, status, transfer_date, destination, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		transfer.ID,
		transfer.TenantID,
		transfer.DocumentNumber,
		transfer.Amount.String(),
		transfer.Status,
		transfer.TransferDate,
		transfer.Destination,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
}

// RecordTransferAtomic records an executed send as a completed transfer. The
// window aggregate is recomputed inside the transaction, under a per-document
// advisory lock, and the insert happens only if the fresh verdict allows it.
func (r *PostgresRepository) RecordTransferAtomic(ctx context.Context, transfer *domain.Transfer, asOf time.Time, limits engine.Limits) (domain.Verdict, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, transfer.DocumentNumber); err != nil {
		return domain.Verdict{}, err
	}

	agg, err := windowAggregateTx(ctx, tx, transfer.DocumentNumber, engine.WindowStart(asOf, limits.PeriodDays))
	if err != nil {
		return domain.Verdict{}, err
	}

	verdict := engine.Evaluate(agg, transfer.Amount, asOf, limits)
	if !verdict.Allowed {
		return verdict, ErrCapExceeded
	}

	transfer.Status = domain.TransferStatusCompleted
	transfer.TransferDate = asOf
	insertQuery := `
		INSERT INTO transfers (id, tenant_id, document_number, amount, status, transfer_date, destination, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		transfer.ID,
		transfer.TenantID,
		transfer.DocumentNumber,
		transfer.Amount.String(),
		transfer.Status,
		transfer.TransferDate,
		transfer.Destination,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to insert transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return verdict, nil
}

// CompleteTransferAtomic transitions one of the tenant's pending transfers to
// completed, re-validating the cap under the same lock discipline as
// RecordTransferAtomic. The transfer date is reset to the completion instant,
// since that is when the row starts counting toward the window.
func (r *PostgresRepository) CompleteTransferAtomic(ctx context.Context, tenantID, transferID uuid.UUID, asOf time.Time, limits engine.Limits) (*domain.Transfer, domain.Verdict, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, domain.Verdict{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockRowQuery := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`
	current, err := scanTransfer(tx.QueryRow(ctx, lockRowQuery, transferID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Verdict{}, ErrTransferNotFound
		}
		return nil, domain.Verdict{}, err
	}
	if current.Status != domain.TransferStatusPending {
		return nil, domain.Verdict{}, ErrInvalidStatusTransition
	}

	if err := lockDocument(ctx, tx, current.DocumentNumber); err != nil {
		return nil, domain.Verdict{}, err
	}

	agg, err := windowAggregateTx(ctx, tx, current.DocumentNumber, engine.WindowStart(asOf, limits.PeriodDays))
	if err != nil {
		return nil, domain.Verdict{}, err
	}

	verdict := engine.Evaluate(agg, current.Amount, asOf, limits)
	if !verdict.Allowed {
		return nil, verdict, ErrCapExceeded
	}

	updateQuery := `
		UPDATE transfers
		SET status = 'completed', transfer_date = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + transferColumns + `
	`
	updated, err := scanTransfer(tx.QueryRow(ctx, updateQuery, transferID, tenantID, asOf))
	if err != nil {
		return nil, domain.Verdict{}, fmt.Errorf("failed to complete transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Verdict{}, fmt.Errorf("failed to commit completion: %w", err)
	}
	return updated, verdict, nil
}

// CancelTransfer transitions pending -> cancelled. Completed rows are immutable.
func (r *PostgresRepository) CancelTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error) {
	query := `
		UPDATE transfers
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'
		RETURNING ` + transferColumns + `
	`
	t, err := scanTransfer(r.db.QueryRow(ctx, query, transferID, tenantID))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Distinguish "no such transfer" from "exists but not pending".
	if _, findErr := r.FindTransferByID(ctx, tenantID, transferID); findErr != nil {
		return nil, findErr
	}
	return nil, ErrInvalidStatusTransition
}

// lockDocument serializes writers per client document number for the lifetime
// of the surrounding transaction.
func lockDocument(ctx context.Context, tx pgx.Tx, documentNumber string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, documentNumber); err != nil {
		return fmt.Errorf("failed to acquire document lock: %w", err)
	}
	return nil
}

// windowAggregateTx recomputes the rolling-window aggregate inside the caller's
// transaction. The SUM/MIN pair mirrors what the read-side aggregator computes
// from individual rows.
func windowAggregateTx(ctx context.Context, tx pgx.Tx, documentNumber string, since time.Time) (domain.WindowAggregate, error) {
	var usedText string
	var oldest *time.Time
	query := `
		SELECT COALESCE(SUM(amount), 0)::text, MIN(transfer_date)
		FROM transfers
		WHERE document_number = $1
		  AND status = 'completed'
		  AND transfer_date >= $2
	`
	if err := tx.QueryRow(ctx, query, documentNumber, since).Scan(&usedText, &oldest); err != nil {
		return domain.WindowAggregate{}, fmt.Errorf("failed to compute window aggregate: %w", err)
	}
	used, err := decimal.NewFromString(usedText)
	if err != nil {
		return domain.WindowAggregate{}, fmt.Errorf("parse window total %q: %w", usedText, err)
	}
	return domain.WindowAggregate{AmountUsed: used, OldestTransferDate: oldest}, nil
}
