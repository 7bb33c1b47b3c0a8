package handlers

import (
	"encoding/json"
	"net/http"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/services"
	"opsboard-backend/pkg/utils"
)

type DeliveryHandler struct {
	Service *services.DeliveryService
}

func NewDeliveryHandler(service *services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{Service: service}
}

// AssignDelivery handles POST /transfers/{id}/delivery
func (h *DeliveryHandler) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.AssignDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.Service.AssignDelivery(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, a)
}

// UpdateDelivery handles PATCH /transfers/{id}/delivery
func (h *DeliveryHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	var req models.UpdateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.Service.UpdateDeliveryStatus(r.Context(), projectID, id, req, actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, a)
}
