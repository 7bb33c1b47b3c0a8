package services

import (
	"context"

	"opsboard-backend/internal/models"
)

// LocationRegistry is the read side of the location reference data.
type LocationRegistry interface {
	GetLocation(ctx context.Context, id int) (*models.Location, error)
}

// ProductCatalog resolves product references on transfer items.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int) (*models.Product, error)
}

// RoleDirectory looks up role assignments.
type RoleDirectory interface {
	RolesAt(ctx context.Context, userID, locationID int) ([]models.Role, error)
	ListRoleAssignments(ctx context.Context, f models.RoleAssignmentFilter) ([]models.RoleAssignment, error)
}

// IdentityDirectory resolves users managed by the identity provider.
type IdentityDirectory interface {
	ResolveUser(ctx context.Context, id int) (*models.User, error)
}

// TransitionListener is notified after a status change has been committed.
// Listeners run synchronously on the request goroutine and must not block.
type TransitionListener func(ctx context.Context, ev models.TransitionEvent)
