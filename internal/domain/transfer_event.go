package domain

import "time"

// TransferIngestEvent is the message a tenant's channel system publishes when a
// send was executed outside the HTTP API and must be recorded against the
// client's rolling window. Amount is a decimal string in euros.
type TransferIngestEvent struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	DocumentNumber string    `json:"document_number"`
	Amount         string    `json:"amount"`
	Destination    string    `json:"destination"`
	Currency       string    `json:"currency"`
	OccurredAt     time.Time `json:"occurred_at"`
}
