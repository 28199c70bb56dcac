/**
 * @description
 * This file defines the core domain models for the compliance-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and verdict payloads
 *   keeps the privacy boundary explicit: a tenant only ever sees verdict fields,
 *   never the contributing transfer rows of other tenants.
 * - Amounts use shopspring/decimal. The regulatory cap comparison must hold at the
 *   cent level, so monetary values are never represented as binary floats.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer statuses. Only completed transfers count toward the rolling window.
const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusCancelled = "cancelled"
)

// Verdict reason codes surfaced to tenants.
const (
	ReasonEligible        = "eligible"
	ReasonBlockedWaitDays = "blocked_wait_days"
	ReasonLimitExceeded   = "limit_exceeded"
)

// Client is a natural person identified by a government-issued document number.
// The document number, not any per-tenant id, is the join key for eligibility:
// the same person may be known to several independent tenants.
type Client struct {
	DocumentNumber string     `json:"document_number"`
	FullName       string     `json:"full_name"`
	Nationality    string     `json:"nationality"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Transfer is a single money-movement record. Rows are immutable once completed
// (status transitions excepted) and are never deleted, for regulatory retention.
type Transfer struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	DocumentNumber string          `json:"document_number"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	TransferDate   time.Time       `json:"transfer_date"`
	Destination    string          `json:"destination"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WindowAggregate is the reduction of a client's completed transfers inside the
// rolling window: total spent plus the earliest contributing timestamp.
// OldestTransferDate is nil when the window is empty.
type WindowAggregate struct {
	AmountUsed         decimal.Decimal
	OldestTransferDate *time.Time
}

// Verdict is the outcome of evaluating a requested transfer against the rolling
// cap. It is ephemeral: produced and consumed within one request, never persisted.
type Verdict struct {
	Allowed            bool             `json:"allowed"`
	AmountUsed         decimal.Decimal  `json:"amount_used"`
	AmountAvailable    decimal.Decimal  `json:"amount_available"`
	DaysRemaining      int              `json:"days_remaining"`
	OldestTransferDate *time.Time       `json:"oldest_transfer_date,omitempty"`
	ResetDate          *time.Time       `json:"reset_date,omitempty"`
	ReasonCode         string           `json:"reason_code"`
}

// EligibilityCheckRequest is the DTO for incoming eligibility check API requests.
type EligibilityCheckRequest struct {
	DocumentNumber string          `json:"document_number"`
	Amount         decimal.Decimal `json:"amount"`
}

// CreateTransferRequest is the DTO for recording a new transfer.
type CreateTransferRequest struct {
	DocumentNumber string          `json:"document_number"`
	Amount         decimal.Decimal `json:"amount"`
	Destination    string          `json:"destination"`
}

// RegisterClientRequest is the DTO for registering or refreshing a client record.
type RegisterClientRequest struct {
	DocumentNumber string     `json:"document_number"`
	FullName       string     `json:"full_name"`
	Nationality    string     `json:"nationality"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
}

// TransferListOptions controls pagination for a tenant's own transfer history.
type TransferListOptions struct {
	Limit  int
	Offset int
	Status string
}
