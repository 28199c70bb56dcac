/**
 * @description
 * This file contains the HTTP handlers for the compliance-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Privacy boundary: responses expose verdict fields and the tenant's own rows
 * only. No handler ever returns another tenant's transfers, and internal query
 * errors surface as generic messages with details kept to the server log.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/remitta/compliance-service/internal/app"
	"github.com/remitta/compliance-service/internal/domain"
	"github.com/remitta/compliance-service/internal/store"
)

// ComplianceHandlers holds the application service that handlers will use.
type ComplianceHandlers struct {
	service *app.Service
}

// NewComplianceHandlers creates a new instance of ComplianceHandlers.
func NewComplianceHandlers(service *app.Service) *ComplianceHandlers {
	return &ComplianceHandlers{service: service}
}

// createTransferPayload is the request body for recording a send. Deferred
// captures the transfer as pending for later settlement instead of executing
// it immediately.
type createTransferPayload struct {
	domain.CreateTransferRequest
	Deferred bool `json:"deferred,omitempty"`
}

// transferResponse pairs a transfer with the verdict observed inside the write
// transaction. Verdict is nil for deferred creations, which skip the cap check.
type transferResponse struct {
	Transfer *domain.Transfer `json:"transfer"`
	Verdict  *domain.Verdict  `json:"verdict,omitempty"`
}

func (h *ComplianceHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *ComplianceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *ComplianceHandlers) authenticatedTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := GetTenantID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get tenant ID from context")
		return uuid.Nil, false
	}
	return tenantID, true
}

func isValidationError(err error) bool {
	return errors.Is(err, app.ErrInvalidDocumentNumber) ||
		errors.Is(err, app.ErrInvalidTransferAmount) ||
		errors.Is(err, app.ErrInvalidDestination) ||
		errors.Is(err, app.ErrInvalidClientName)
}

// CheckEligibilityHandler computes an advisory verdict for a prospective
// transfer. A history-store failure maps to 503: the caller must treat the
// check as blocked, never as eligible.
func (h *ComplianceHandlers) CheckEligibilityHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authenticatedTenant(w, r)
	if !ok {
		return
	}

	var req domain.EligibilityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	verdict, retryAfter, err := h.service.CheckEligibility(r.Context(), tenantID, req)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, app.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many eligibility checks. Please retry later.")
			return
		}
		log.Printf("level=error component=api endpoint=eligibility_check outcome=failed tenant_id=%s err=%v", tenantID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Eligibility could not be verified. The transfer must not proceed.")
		return
	}

	log.Printf("level=info component=api endpoint=eligibility_check outcome=%s tenant_id=%s reason=%s", verdictOutcome(verdict), tenantID, verdict.ReasonCode)
	h.writeJSON(w, http.StatusOK, verdict)
}

func verdictOutcome(v *domain.Verdict) string {
	if v.Allowed {
		return "allowed"
	}
	return "blocked"
}

// CreateTransferHandler records a send for the authenticated tenant.
func (h *ComplianceHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authenticatedTenant(w, r)
	if !ok {
		return
	}

	var payload createTransferPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if payload.Deferred {
		transfer, err := h.service.CreateDeferredTransfer(r.Context(), tenantID, payload.CreateTransferRequest)
		if err != nil {
			if isValidationError(err) {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("level=error component=api endpoint=create_transfer outcome=failed tenant_id=%s err=%v", tenantID, err)
			h.writeError(w, http.StatusInternalServerError, "Could not create transfer.")
			return
		}
		h.writeJSON(w, http.StatusCreated, transferResponse{Transfer: transfer})
		return
	}

	transfer, verdict, err := h.service.CreateTransfer(r.Context(), tenantID, payload.CreateTransferRequest)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, store.ErrCapExceeded) {
			// The blocking verdict is the full story the tenant is allowed to
			// see: amounts available and the wait, never the contributing rows.
			h.writeJSON(w, http.StatusUnprocessableEntity, transferResponse{Verdict: verdict})
			return
		}
		log.Printf("level=error component=api endpoint=create_transfer outcome=failed tenant_id=%s err=%v", tenantID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Transfer could not be recorded. The send must not proceed.")
		return
	}

	h.writeJSON(w, http.StatusCreated, transferResponse{Transfer: transfer, Verdict: verdict})
}

func (h *ComplianceHandlers) transferIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return uuid.Nil, false
	}
	return transferID, true
}

// CompleteTransferHandler settles a pending transfer, re-running the cap check
// atomically.
func (h *ComplianceHandlers) CompleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authenticatedTenant(w, r)
	if !ok {
		return
	}
	transferID, ok := h.transferIDFromPath(w, r)
	if !ok {
		return
	}

	transfer, verdict, err := h.service.CompleteTransfer(r.Context(), tenantID, transferID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransferNotFound):
			h.writeError(w, http.StatusNotFound, "Transfer not found.")
		case errors.Is(err, store.ErrInvalidStatusTransition):
			h.writeError(w, http.StatusConflict, "Only pending transfers can be completed.")
		case errors.Is(err, store.ErrCapExceeded):
			h.writeJSON(w, http.StatusUnprocessableEntity, transferResponse{Verdict: verdict})
		default:
			log.Printf("level=error component=api endpoint=complete_transfer outcome=failed tenant_id=%s transfer_id=%s err=%v", tenantID, transferID, err)
			h.writeError(w, http.StatusServiceUnavailable, "Transfer could not be completed. The send must not proceed.")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, transferResponse{Transfer: transfer, Verdict: verdict})
}

// CancelTransferHandler voids a pending transfer.
func (h *ComplianceHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authenticatedTenant(w, r)
	if !ok {
		return
	}
	transferID, ok := h.transferIDFromPath(w, r)
	if !ok {
		return
	}

	transfer, err := h.service.CancelTransfer(r.Context(), tenantID, transferID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransferNotFound):
			h.writeError(w, http.StatusNotFound, "Transfer not found.")
		case errors.Is(err, store.ErrInvalidStatusTransition):
			h.writeError(w, http.StatusConflict, "Only pending transfers can be cancelled.")
		default:
			log.Printf("level=error component=api endpoint=cancel_transfer outcome=failed tenant_id=%s transfer_id=%s err=%v", tenantID, transferID, err)
			h.writeError(w, http.StatusInternalServerError, "Could not cancel transfer.")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, transferResponse{Transfer: transfer})
}

// ListTransfersHandler returns the tenant's own transfers.
func (h *ComplianceHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authenticatedTenant(w, r)
	if !ok {
		return
	}

	limit, err := parseOptionalPositiveInt(r.URL.Query().Get("limit"), 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalPositiveInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	transfers, err := h.service.ListTransfers(r.Context(), tenantID, domain.TransferListOptions{
		Limit:  limit,
		Offset: offset,
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	})
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transfers outcome=failed tenant_id=%s err=%v", tenantID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve transfers.")
		return
	}

	h.writeJSON(w, http.StatusOK, transfers)
}

// RegisterClientHandler creates or refreshes a client identity record.
func (h *ComplianceHandlers) RegisterClientHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedTenant(w, r); !ok {
		return
	}

	var req domain.RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	client, err := h.service.RegisterClient(r.Context(), req)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=register_client outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not register client.")
		return
	}

	h.writeJSON(w, http.StatusCreated, client)
}

// GetClientHandler returns a client identity record.
func (h *ComplianceHandlers) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedTenant(w, r); !ok {
		return
	}

	client, err := h.service.FindClient(r.Context(), chi.URLParam(r, "documentNumber"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidDocumentNumber):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrClientNotFound):
			h.writeError(w, http.StatusNotFound, "Client not found.")
		default:
			log.Printf("level=error component=api endpoint=get_client outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Could not retrieve client.")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, client)
}

func parseOptionalPositiveInt(raw string, fallback int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return value, nil
}
