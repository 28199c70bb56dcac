/**
 * @description
 * This file contains the core business logic for the compliance-service. The
 * `Service` struct orchestrates eligibility checks and transfer lifecycle
 * operations, coordinating the window aggregator, the repository's atomic write
 * paths, and the message broker.
 *
 * Key features:
 * - Read-side eligibility checks: aggregate the rolling window, evaluate, return
 *   a verdict. On a history-store failure the error propagates so callers fail
 *   closed; an unreadable window is never treated as an empty one.
 * - Write-side enforcement: transfer recording and completion delegate to the
 *   repository's advisory-locked transactions, which re-run the same window
 *   logic. The service never passes a read-side verdict to the write path.
 * - Publishes transfer lifecycle events to RabbitMQ for downstream consumers.
 *
 * @dependencies
 * - github.com/google/uuid: Transfer identifiers.
 * - github.com/shopspring/decimal: Monetary values.
 * - internal/domain, internal/engine, internal/store: Models, window logic, data access.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/engine"
	"github.com/remitta/compliance-service/internal/store"
	"github.com/remitta/compliance-service/pkg/rabbitmq"
)

var (
	ErrInvalidDocumentNumber = errors.New("invalid client document number")
	ErrInvalidTransferAmount = errors.New("transfer amount must be positive with at most two decimal places")
	ErrInvalidDestination    = errors.New("transfer destination is required")
	ErrInvalidClientName     = errors.New("client full name is required")
	ErrRateLimited           = errors.New("eligibility check rate limit reached")
)

// RateLimiter is the distributed limiter consumed for eligibility checks.
// A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for compliance checks and transfers.
type Service struct {
	repo       store.Repository
	aggregator *engine.Aggregator
	limits     engine.Limits
	publisher  rabbitmq.Publisher

	rateLimiter         RateLimiter
	checkLimitPerMinute int

	now func() time.Time
}

// NewService creates a new compliance service instance.
func NewService(repo store.Repository, publisher rabbitmq.Publisher, limits engine.Limits) *Service {
	return &Service{
		repo:       repo,
		aggregator: engine.NewAggregator(repo, limits),
		limits:     limits,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEligibilityRateLimiter wires a distributed limiter for check endpoints.
func (s *Service) SetEligibilityRateLimiter(limiter RateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.checkLimitPerMinute = perMinute
}

// SetClock overrides the evaluation clock. Used by tests to pin asOf.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Limits returns the injected regulatory thresholds.
func (s *Service) Limits() engine.Limits {
	return s.limits
}

// CheckEligibility computes a fresh verdict for a requested amount. The verdict
// is advisory: the authoritative check re-runs inside the write transaction.
func (s *Service) CheckEligibility(ctx context.Context, tenantID uuid.UUID, req domain.EligibilityCheckRequest) (*domain.Verdict, int, error) {
	documentNumber, err := normalizeDocumentNumber(req.DocumentNumber)
	if err != nil {
		return nil, 0, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, 0, err
	}

	if s.rateLimiter != nil && s.checkLimitPerMinute > 0 {
		count, retryAfter, limiterErr := s.rateLimiter.ConsumeRateLimit(ctx, "eligibility_check", tenantID.String(), s.checkLimitPerMinute, time.Minute)
		if limiterErr != nil {
			// Limiter outages must not block compliance checks; the cap itself
			// is enforced elsewhere.
			log.Printf("level=warn component=app msg=\"rate limiter unavailable; continuing\" tenant_id=%s err=%v", tenantID, limiterErr)
		} else if count > s.checkLimitPerMinute {
			return nil, retryAfter, ErrRateLimited
		}
	}

	asOf := s.now()
	agg, err := s.aggregator.Aggregate(ctx, documentNumber, asOf)
	if err != nil {
		// Propagated unchanged: the caller must fail closed, never fail open.
		return nil, 0, fmt.Errorf("eligibility aggregation failed: %w", err)
	}

	verdict := engine.Evaluate(agg, req.Amount, asOf, s.limits)
	return &verdict, 0, nil
}

// CreateTransfer records a send for the tenant. When req.Deferred is false the
// transfer is executed immediately: the repository recomputes the window under
// the per-document lock and inserts the completed row only if the cap holds.
// On a breach the blocking verdict is returned alongside store.ErrCapExceeded.
func (s *Service) CreateTransfer(ctx context.Context, tenantID uuid.UUID, req domain.CreateTransferRequest) (*domain.Transfer, *domain.Verdict, error) {
	documentNumber, err := normalizeDocumentNumber(req.DocumentNumber)
	if err != nil {
		return nil, nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, nil, err
	}
	destination, err := normalizeDestination(req.Destination)
	if err != nil {
		return nil, nil, err
	}

	transfer := &domain.Transfer{
		ID:             uuid.New(),
		TenantID:       tenantID,
		DocumentNumber: documentNumber,
		Amount:         req.Amount,
		Destination:    destination,
		TransferDate:   s.now(),
	}

	verdict, err := s.repo.RecordTransferAtomic(ctx, transfer, s.now(), s.limits)
	if err != nil {
		if errors.Is(err, store.ErrCapExceeded) {
			log.Printf("level=info component=app op=create_transfer outcome=blocked tenant_id=%s reason=%s", tenantID, verdict.ReasonCode)
			return nil, &verdict, err
		}
		return nil, nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	s.publishTransferEvent(ctx, rabbitmq.RoutingKeyTransferRecorded, transfer)
	log.Printf("level=info component=app op=create_transfer outcome=recorded tenant_id=%s transfer_id=%s", tenantID, transfer.ID)
	return transfer, &verdict, nil
}

// CreateDeferredTransfer captures a send for later settlement. Pending rows do
// not consume window capacity; the cap is enforced on completion.
func (s *Service) CreateDeferredTransfer(ctx context.Context, tenantID uuid.UUID, req domain.CreateTransferRequest) (*domain.Transfer, error) {
	documentNumber, err := normalizeDocumentNumber(req.DocumentNumber)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	destination, err := normalizeDestination(req.Destination)
	if err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{
		ID:             uuid.New(),
		TenantID:       tenantID,
		DocumentNumber: documentNumber,
		Amount:         req.Amount,
		Destination:    destination,
		TransferDate:   s.now(),
	}
	if err := s.repo.CreatePendingTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create pending transfer: %w", err)
	}
	return transfer, nil
}

// CompleteTransfer settles a pending transfer. The cap check re-runs inside the
// database transaction; a verdict from check time is never trusted here.
func (s *Service) CompleteTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, *domain.Verdict, error) {
	transfer, verdict, err := s.repo.CompleteTransferAtomic(ctx, tenantID, transferID, s.now(), s.limits)
	if err != nil {
		if errors.Is(err, store.ErrCapExceeded) {
			return nil, &verdict, err
		}
		return nil, nil, err
	}

	s.publishTransferEvent(ctx, rabbitmq.RoutingKeyTransferCompleted, transfer)
	return transfer, &verdict, nil
}

// CancelTransfer voids a pending transfer. Completed transfers are immutable.
func (s *Service) CancelTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.repo.CancelTransfer(ctx, tenantID, transferID)
	if err != nil {
		return nil, err
	}

	s.publishTransferEvent(ctx, rabbitmq.RoutingKeyTransferCancelled, transfer)
	return transfer, nil
}

// RegisterClient creates or refreshes a client identity record.
func (s *Service) RegisterClient(ctx context.Context, req domain.RegisterClientRequest) (*domain.Client, error) {
	documentNumber, err := normalizeDocumentNumber(req.DocumentNumber)
	if err != nil {
		return nil, err
	}
	fullName, err := normalizeRequiredText(req.FullName)
	if err != nil {
		return nil, ErrInvalidClientName
	}

	client := &domain.Client{
		DocumentNumber: documentNumber,
		FullName:       fullName,
		Nationality:    normalizeOptionalText(req.Nationality),
		DateOfBirth:    req.DateOfBirth,
	}
	if err := s.repo.UpsertClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to upsert client: %w", err)
	}
	return client, nil
}

// FindClient returns a client identity record by document number.
func (s *Service) FindClient(ctx context.Context, documentNumber string) (*domain.Client, error) {
	normalized, err := normalizeDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	return s.repo.FindClientByDocumentNumber(ctx, normalized)
}

// ListTransfers returns the tenant's own transfers. No path through this
// service exposes another tenant's rows; cross-tenant data surfaces only as
// aggregate verdict fields.
func (s *Service) ListTransfers(ctx context.Context, tenantID uuid.UUID, opts domain.TransferListOptions) ([]domain.Transfer, error) {
	return s.repo.ListTenantTransfers(ctx, tenantID, opts)
}

func (s *Service) publishTransferEvent(ctx context.Context, routingKey string, transfer *domain.Transfer) {
	if s.publisher == nil {
		return
	}
	event := rabbitmq.TransferEvent{
		TransferID:     transfer.ID,
		TenantID:       transfer.TenantID,
		DocumentNumber: transfer.DocumentNumber,
		Amount:         transfer.Amount.String(),
		Status:         transfer.Status,
		TransferDate:   transfer.TransferDate,
		Timestamp:      s.now(),
	}
	if err := s.publisher.PublishTransferEvent(ctx, routingKey, event); err != nil {
		// Event delivery is best effort; the ledger row is the source of truth.
		log.Printf("level=warn component=app msg=\"transfer event publish failed\" routing_key=%s transfer_id=%s err=%v", routingKey, transfer.ID, err)
	}
}
