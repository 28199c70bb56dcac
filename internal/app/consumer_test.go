package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/engine"
	"github.com/remitta/compliance-service/pkg/rabbitmq"
)

func ingestBody(t *testing.T, event domain.TransferIngestEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestIngestRecordsExecutedSend(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher, engine.DefaultLimits())
	svc.SetClock(fixedClock(asOf))
	consumer := NewTransferIngestConsumer(svc)

	tenant := uuid.New()
	ack := consumer.HandleMessage(ingestBody(t, domain.TransferIngestEvent{
		EventID:        "evt-1",
		TenantID:       tenant.String(),
		DocumentNumber: " it-ab123 ",
		Amount:         "120.50",
		Destination:    "Tirana, AL",
	}))
	if !ack {
		t.Fatal("expected message to be acknowledged")
	}

	if len(repo.transfers) != 1 {
		t.Fatalf("expected one recorded transfer, got %d", len(repo.transfers))
	}
	recorded := repo.transfers[0]
	if recorded.DocumentNumber != "IT-AB123" {
		t.Fatalf("expected normalized document number, got %q", recorded.DocumentNumber)
	}
	if recorded.Status != domain.TransferStatusCompleted {
		t.Fatalf("expected completed status, got %q", recorded.Status)
	}
	if len(publisher.keys) != 1 || publisher.keys[0] != rabbitmq.RoutingKeyTransferRecorded {
		t.Fatalf("expected one recorded event, got %v", publisher.keys)
	}
}

func TestIngestDropsUnusableMessages(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil, engine.DefaultLimits())
	consumer := NewTransferIngestConsumer(svc)

	tests := []struct {
		name string
		body []byte
	}{
		{name: "malformed json", body: []byte(`{"tenant_id":`)},
		{name: "missing tenant", body: ingestBody(t, domain.TransferIngestEvent{Amount: "10", DocumentNumber: "IT-AB123", Destination: "Lagos, NG"})},
		{name: "unparsable amount", body: ingestBody(t, domain.TransferIngestEvent{TenantID: uuid.NewString(), Amount: "ten", DocumentNumber: "IT-AB123", Destination: "Lagos, NG"})},
		{name: "invalid document number", body: ingestBody(t, domain.TransferIngestEvent{TenantID: uuid.NewString(), Amount: "10", DocumentNumber: "AB", Destination: "Lagos, NG"})},
		{name: "non-positive amount", body: ingestBody(t, domain.TransferIngestEvent{TenantID: uuid.NewString(), Amount: "0", DocumentNumber: "IT-AB123", Destination: "Lagos, NG"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !consumer.HandleMessage(tt.body) {
				t.Fatal("unusable message must be acknowledged, not re-queued")
			}
		})
	}

	if len(repo.transfers) != 0 {
		t.Fatalf("expected no recorded transfers, got %d", len(repo.transfers))
	}
}

func TestIngestAcksCapBreachWithoutRecording(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	seedCompleted(repo, "IT-AB123", "999", asOf.Add(-24*time.Hour), uuid.New())
	svc := NewService(repo, nil, engine.DefaultLimits())
	svc.SetClock(fixedClock(asOf))
	consumer := NewTransferIngestConsumer(svc)

	ack := consumer.HandleMessage(ingestBody(t, domain.TransferIngestEvent{
		EventID:        "evt-2",
		TenantID:       uuid.NewString(),
		DocumentNumber: "IT-AB123",
		Amount:         "1",
		Destination:    "Quito, EC",
	}))
	if !ack {
		t.Fatal("a cap breach is terminal; redelivery cannot change the verdict")
	}
	if len(repo.transfers) != 1 {
		t.Fatalf("expected no row appended, got %d rows", len(repo.transfers))
	}
}

func TestIngestRequeuesOnStoreFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.recordErr = errors.New("connection reset")
	svc := NewService(repo, nil, engine.DefaultLimits())
	consumer := NewTransferIngestConsumer(svc)

	ack := consumer.HandleMessage(ingestBody(t, domain.TransferIngestEvent{
		EventID:        "evt-3",
		TenantID:       uuid.NewString(),
		DocumentNumber: "IT-AB123",
		Amount:         "10",
		Destination:    "Dakar, SN",
	}))
	if ack {
		t.Fatal("store failures must re-queue the message")
	}
}
