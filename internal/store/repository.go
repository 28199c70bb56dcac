/**
 * @description
 * This file defines the repository contracts for the compliance-service. The data
 * access surface is split by capability on purpose: `HistoryReader` is the only
 * interface allowed to see transfers across tenant boundaries (it powers the
 * window aggregation), while every other method is tenant-scoped. The privacy
 * invariant that a tenant sees verdicts, never another tenant's rows, is
 * enforced by this boundary rather than by ad-hoc query filters.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Transfer and tenant identifiers.
 * - internal/domain, internal/engine: Domain models and the injected limits.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/engine"
)

// HistoryReader is the cross-tenant read capability consumed by the window
// aggregator: completed transfers for a document number, any tenant, on or
// after `since`, ascending by transfer date.
type HistoryReader interface {
	CompletedTransfersSince(ctx context.Context, documentNumber string, since time.Time) ([]domain.Transfer, error)
}

// Repository is the full data access contract. All transfer mutation is
// tenant-scoped and cap enforcement happens inside the database transaction
// that makes a transfer `completed`, never against a verdict computed earlier.
type Repository interface {
	HistoryReader

	// Client methods. Clients are keyed by document number, shared across tenants.
	UpsertClient(ctx context.Context, client *domain.Client) error
	FindClientByDocumentNumber(ctx context.Context, documentNumber string) (*domain.Client, error)

	// Tenant-scoped transfer reads.
	FindTransferByID(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error)
	ListTenantTransfers(ctx context.Context, tenantID uuid.UUID, opts domain.TransferListOptions) ([]domain.Transfer, error)

	// RecordTransferAtomic inserts a completed transfer after recomputing the
	// rolling-window aggregate under a per-document advisory lock. The returned
	// verdict reflects the state observed inside the transaction; on a cap
	// breach the insert is abandoned and ErrCapExceeded is returned alongside
	// the blocking verdict.
	RecordTransferAtomic(ctx context.Context, transfer *domain.Transfer, asOf time.Time, limits engine.Limits) (domain.Verdict, error)

	// CreatePendingTransfer inserts a pending transfer. Pending rows do not
	// count toward any window until completed.
	CreatePendingTransfer(ctx context.Context, transfer *domain.Transfer) error

	// CompleteTransferAtomic transitions pending -> completed, re-running the
	// same window check under the same advisory lock. A stale eligibility
	// verdict from check time is never trusted here.
	CompleteTransferAtomic(ctx context.Context, tenantID, transferID uuid.UUID, asOf time.Time, limits engine.Limits) (*domain.Transfer, domain.Verdict, error)

	// CancelTransfer transitions pending -> cancelled. Completed transfers are
	// immutable and are never deleted (regulatory retention).
	CancelTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error)
}
