package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/services"
	"opsboard-backend/pkg/utils"
)

// ReferenceHandler serves the locations, products, role grants and user
// lookups behind the transfer settings screens.
type ReferenceHandler struct {
	Service *services.ReferenceService
}

func NewReferenceHandler(service *services.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{Service: service}
}

// ListLocations handles GET /transfers/locations?type=&active=
func (h *ReferenceHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := models.LocationFilter{
		ProjectID:  projectID,
		ActiveOnly: q.Get("active") == "true",
		Type:       models.LocationType(q.Get("type")),
	}

	locations, err := h.Service.ListLocations(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if locations == nil {
		locations = []models.Location{}
	}
	utils.RespondJSON(w, http.StatusOK, locations)
}

// GetLocation handles GET /transfers/locations/{id}
func (h *ReferenceHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid location ID")
		return
	}
	l, err := h.Service.GetLocation(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, l)
}

// CreateLocation handles POST /transfers/locations
func (h *ReferenceHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	var req models.CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	l, err := h.Service.CreateLocation(r.Context(), projectID, req, actor, getIPAddress(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, l)
}

// SetLocationActive handles PATCH /transfers/locations/{id}
func (h *ReferenceHandler) SetLocationActive(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid location ID")
		return
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		utils.RespondFieldError(w, http.StatusBadRequest, "is_active", "is_active is required")
		return
	}

	if err := h.Service.SetLocationActive(r.Context(), id, *req.IsActive, actor, getIPAddress(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	l, err := h.Service.GetLocation(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, l)
}

// ListProducts handles GET /transfers/products?search=
func (h *ReferenceHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	products, err := h.Service.ListProducts(r.Context(), models.ProductFilter{
		ProjectID: projectID,
		Search:    r.URL.Query().Get("search"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.RespondJSON(w, http.StatusOK, products)
}

// CreateProduct handles POST /transfers/products
func (h *ReferenceHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := requestContext(w, r)
	if !ok {
		return
	}
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.Service.CreateProduct(r.Context(), projectID, req, actor, getIPAddress(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, p)
}

// ListRoles handles GET /transfers/roles?user_id=&location_id=
func (h *ReferenceHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.RoleAssignmentFilter
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			utils.RespondFieldError(w, http.StatusBadRequest, "user_id", "user_id must be an integer")
			return
		}
		filter.UserID = id
	}
	if v := q.Get("location_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			utils.RespondFieldError(w, http.StatusBadRequest, "location_id", "location_id must be an integer")
			return
		}
		filter.LocationID = id
	}

	roles, err := h.Service.ListRoleAssignments(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if roles == nil {
		roles = []models.RoleAssignment{}
	}
	utils.RespondJSON(w, http.StatusOK, roles)
}

// GrantRole handles POST /transfers/roles
func (h *ReferenceHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := requestContext(w, r)
	if !ok {
		return
	}
	var req models.CreateRoleAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.Service.GrantRole(r.Context(), req, actor, getIPAddress(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, a)
}

// RevokeRole handles DELETE /transfers/roles/{id}
func (h *ReferenceHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := requestContext(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid role assignment ID")
		return
	}
	if err := h.Service.RevokeRole(r.Context(), id, actor, getIPAddress(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles GET /transfers/users
func (h *ReferenceHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

// ListActionLogs handles GET /transfers/action-logs?limit=
func (h *ReferenceHandler) ListActionLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	logs, err := h.Service.ListActionLogs(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.AdminActionLog{}
	}
	utils.RespondJSON(w, http.StatusOK, logs)
}
