package http

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsboard-backend/internal/handlers"
	"opsboard-backend/internal/middleware"
)

func NewRouter(
	transferHandler *handlers.TransferHandler,
	packingHandler *handlers.PackingHandler,
	deliveryHandler *handlers.DeliveryHandler,
	referenceHandler *handlers.ReferenceHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/transfers").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Reference data
	api.HandleFunc("/locations", referenceHandler.ListLocations).Methods("GET")
	api.HandleFunc("/locations", referenceHandler.CreateLocation).Methods("POST")
	api.HandleFunc("/locations/{id:[0-9]+}", referenceHandler.GetLocation).Methods("GET")
	api.HandleFunc("/locations/{id:[0-9]+}", referenceHandler.SetLocationActive).Methods("PATCH")
	api.HandleFunc("/products", referenceHandler.ListProducts).Methods("GET")
	api.HandleFunc("/products", referenceHandler.CreateProduct).Methods("POST")
	api.HandleFunc("/roles", referenceHandler.ListRoles).Methods("GET")
	api.HandleFunc("/roles", referenceHandler.GrantRole).Methods("POST")
	api.HandleFunc("/roles/{id:[0-9]+}", referenceHandler.RevokeRole).Methods("DELETE")
	api.HandleFunc("/users", referenceHandler.ListUsers).Methods("GET")
	api.HandleFunc("/action-logs", referenceHandler.ListActionLogs).Methods("GET")

	// Realtime feed
	api.HandleFunc("/ws", transferHandler.Stream).Methods("GET")

	// Transfers
	api.HandleFunc("", transferHandler.CreateTransfer).Methods("POST")
	api.HandleFunc("", transferHandler.ListTransfers).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}", transferHandler.GetTransfer).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}/history", transferHandler.GetHistory).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}/approve", transferHandler.Approve).Methods("POST")
	api.HandleFunc("/{id:[0-9]+}/status", transferHandler.ChangeStatus).Methods("PATCH")
	api.HandleFunc("/{id:[0-9]+}/dispatch-note.pdf", transferHandler.DispatchNote).Methods("GET")

	// Packing and delivery
	api.HandleFunc("/{id:[0-9]+}/packing", packingHandler.AssignPacking).Methods("POST")
	api.HandleFunc("/{id:[0-9]+}/packing", packingHandler.UpdatePacking).Methods("PATCH")
	api.HandleFunc("/{id:[0-9]+}/delivery", deliveryHandler.AssignDelivery).Methods("POST")
	api.HandleFunc("/{id:[0-9]+}/delivery", deliveryHandler.UpdateDelivery).Methods("PATCH")

	return r
}
