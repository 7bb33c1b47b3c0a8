package handlers

import (
	"encoding/json"
	"net/http"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/services"
	"opsboard-backend/pkg/utils"
)

type PackingHandler struct {
	Service *services.PackingService
}

func NewPackingHandler(service *services.PackingService) *PackingHandler {
	return &PackingHandler{Service: service}
}

// AssignPacking handles POST /transfers/{id}/packing
func (h *PackingHandler) AssignPacking(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.AssignPackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.Service.AssignPacking(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, task)
}

// UpdatePacking handles PATCH /transfers/{id}/packing
func (h *PackingHandler) UpdatePacking(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.UpdatePackingTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.Service.UpdatePackingTask(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, task)
}
