package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"opsboard-backend/internal/documents"
	"opsboard-backend/internal/middleware"
	"opsboard-backend/internal/services"
	"opsboard-backend/pkg/utils"
)

// ProjectHeader carries the project scope when the query string does not.
const ProjectHeader = "X-Project-ID"

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Unexpected failures are logged and answered with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondFieldError(w, http.StatusBadRequest, verr.Field, verr.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		utils.RespondError(w, http.StatusForbidden, "You are not permitted to perform this action")
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, documents.ErrNotPacked):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[API] %s %s [%s] failed: %v", r.Method, r.URL.Path, middleware.RequestIDFromContext(r.Context()), err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// projectScope reads project_id from the query string or the X-Project-ID
// header. No value means no project scoping.
func projectScope(r *http.Request) (*int, bool) {
	raw := r.URL.Query().Get("project_id")
	if raw == "" {
		raw = r.Header.Get(ProjectHeader)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requestContext pulls the actor and project scope every transfer
// endpoint needs. It writes the error response itself when ok is false.
func requestContext(w http.ResponseWriter, r *http.Request) (actor int, projectID *int, ok bool) {
	actor, ok = middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, nil, false
	}
	projectID, ok = projectScope(r)
	if !ok {
		utils.RespondFieldError(w, http.StatusBadRequest, "project_id", "project_id must be a positive integer")
		return 0, nil, false
	}
	return actor, projectID, true
}

// getIPAddress extracts the real IP address from the request
func getIPAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
