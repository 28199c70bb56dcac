package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/store"
)

// TransferIngestConsumer records sends that tenant channel systems execute
// outside the HTTP API. Messages run through the same atomic record path as
// API-created transfers, so the rolling window stays complete regardless of
// which surface a send came through.
type TransferIngestConsumer struct {
	service *Service
}

func NewTransferIngestConsumer(service *Service) *TransferIngestConsumer {
	return &TransferIngestConsumer{service: service}
}

// HandleMessage processes one ingestion event. The returned bool is the ack
// decision: true acknowledges, false re-queues. Malformed or invalid payloads
// are acknowledged to drop, since redelivery cannot fix them. A blocked verdict
// is terminal too; the send already happened upstream, so the block is logged
// as a violation rather than retried.
func (c *TransferIngestConsumer) HandleMessage(body []byte) bool {
	var event domain.TransferIngestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=ingest_consumer msg=\"unmarshal failed, dropping\" err=%v", err)
		return true
	}

	tenantID, err := uuid.Parse(strings.TrimSpace(event.TenantID))
	if err != nil {
		log.Printf("level=warn component=ingest_consumer msg=\"invalid tenant id, dropping\" event_id=%s err=%v", event.EventID, err)
		return true
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(event.Amount))
	if err != nil {
		log.Printf("level=warn component=ingest_consumer msg=\"invalid amount, dropping\" event_id=%s err=%v", event.EventID, err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, verdict, err := c.service.CreateTransfer(ctx, tenantID, domain.CreateTransferRequest{
		DocumentNumber: event.DocumentNumber,
		Amount:         amount,
		Destination:    event.Destination,
	})
	if err != nil {
		if errors.Is(err, store.ErrCapExceeded) {
			log.Printf("level=error component=ingest_consumer msg=\"executed send exceeds window cap\" event_id=%s tenant_id=%s reason=%s",
				event.EventID, tenantID, verdict.ReasonCode)
			return true
		}
		if isIngestValidationError(err) {
			log.Printf("level=warn component=ingest_consumer msg=\"invalid event, dropping\" event_id=%s err=%v", event.EventID, err)
			return true
		}
		log.Printf("level=error component=ingest_consumer msg=\"record failed, re-queuing\" event_id=%s err=%v", event.EventID, err)
		return false
	}

	log.Printf("level=info component=ingest_consumer msg=\"transfer recorded\" event_id=%s tenant_id=%s", event.EventID, tenantID)
	return true
}

func isIngestValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDocumentNumber) ||
		errors.Is(err, ErrInvalidTransferAmount) ||
		errors.Is(err, ErrInvalidDestination)
}
