package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"opsboard-backend/internal/cache"
	"opsboard-backend/internal/documents"
	"opsboard-backend/internal/models"
	"opsboard-backend/internal/realtime"
	"opsboard-backend/internal/services"
	"opsboard-backend/pkg/utils"
)

type TransferHandler struct {
	Service *services.TransferService
	Hub     *realtime.Hub
	ListTTL time.Duration
}

func NewTransferHandler(service *services.TransferService, hub *realtime.Hub, listTTL time.Duration) *TransferHandler {
	return &TransferHandler{Service: service, Hub: hub, ListTTL: listTTL}
}

// CreateTransfer handles POST /transfers
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req models.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.Service.RequestTransfer(r.Context(), projectID, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, t)
}

// ListTransfers handles GET /transfers?tab=&status=&search=
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	tab := q.Get("tab")
	status := models.TransferStatus(q.Get("status"))
	search := strings.TrimSpace(q.Get("search"))

	key := cache.TransferListKey(projectID, actor, tab, string(status), search)
	if data, hit := cache.GetCached(r.Context(), key); hit {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Write(data)
		return
	}

	resp, err := h.Service.List(r.Context(), projectID, tab, status, search, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if resp.Transfers == nil {
		resp.Transfers = []models.Transfer{}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.ListTTL > 0 {
		cache.SetCached(r.Context(), key, data, h.ListTTL)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// GetTransfer handles GET /transfers/{id}
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	detail, err := h.Service.Detail(r.Context(), projectID, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, detail)
}

// GetHistory handles GET /transfers/{id}/history
func (h *TransferHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	entries, err := h.Service.History(r.Context(), projectID, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.StatusLogEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

// Approve handles POST /transfers/{id}/approve
func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.Service.Decide(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, t)
}

// ChangeStatus handles PATCH /transfers/{id}/status
func (h *TransferHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.Service.ChangeStatus(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, t)
}

// DispatchNote handles GET /transfers/{id}/dispatch-note.pdf
func (h *TransferHandler) DispatchNote(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	detail, err := h.Service.Detail(r.Context(), projectID, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	pdf, err := documents.RenderDispatchNote(detail)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", detail.Transfer.TransferNumber))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	if _, err := w.Write(pdf); err != nil {
		log.Printf("[API] Failed to write dispatch note %s: %v", detail.Transfer.TransferNumber, err)
	}
}

// Stream handles GET /transfers/ws
func (h *TransferHandler) Stream(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	h.Hub.ServeWS(w, r, projectID)
}
