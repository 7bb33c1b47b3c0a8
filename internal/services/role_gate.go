package services

import (
	"context"
	"fmt"

	"opsboard-backend/internal/models"
)

// Side says which end of a transfer a role must be held at.
type Side int

const (
	AtSource Side = iota
	AtDestination
	AtEither
)

// Transition is a (from, to) status pair. From is empty for creation.
type Transition struct {
	From models.TransferStatus
	To   models.TransferStatus
}

func (t Transition) String() string {
	from := string(t.From)
	if from == "" {
		from = "(new)"
	}
	return from + " -> " + string(t.To)
}

type transitionRule struct {
	Transition
	Roles         []models.Role
	At            Side
	AllowSystem   bool
	RequesterOnly bool
}

// creation is the pseudo transition guarding new requests.
var creation = Transition{To: models.TransferStatusRequested}

var transitionRules = []transitionRule{
	{Transition: creation,
		Roles: []models.Role{models.RoleLineman, models.RoleStoreManager}, At: AtSource},
	{Transition: Transition{models.TransferStatusRequested, models.TransferStatusStoreApproved},
		Roles: []models.Role{models.RoleStoreManager}, At: AtSource},
	{Transition: Transition{models.TransferStatusRequested, models.TransferStatusRejected},
		Roles: []models.Role{models.RoleStoreManager, models.RoleWarehouseManager}, At: AtEither},
	{Transition: Transition{models.TransferStatusRequested, models.TransferStatusCancelled},
		RequesterOnly: true},
	{Transition: Transition{models.TransferStatusStoreApproved, models.TransferStatusWarehouseApproved},
		Roles: []models.Role{models.RoleWarehouseManager}, At: AtDestination},
	{Transition: Transition{models.TransferStatusStoreApproved, models.TransferStatusRejected},
		Roles: []models.Role{models.RoleWarehouseManager}, At: AtDestination},
	{Transition: Transition{models.TransferStatusWarehouseApproved, models.TransferStatusPacking},
		AllowSystem: true},
	{Transition: Transition{models.TransferStatusPacking, models.TransferStatusPacked},
		AllowSystem: true},
	{Transition: Transition{models.TransferStatusPacked, models.TransferStatusDispatched},
		Roles: []models.Role{models.RoleLogisticsManager, models.RolePackingTeam}, At: AtEither, AllowSystem: true},
	{Transition: Transition{models.TransferStatusDispatched, models.TransferStatusInTransit},
		Roles: []models.Role{models.RoleLogisticsTeam}, At: AtEither, AllowSystem: true},
	{Transition: Transition{models.TransferStatusInTransit, models.TransferStatusDelivered},
		Roles: []models.Role{models.RoleLogisticsTeam}, At: AtEither, AllowSystem: true},
}

func lookupRule(from, to models.TransferStatus) (transitionRule, bool) {
	for _, r := range transitionRules {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return transitionRule{}, false
}

// IsLegalTransition reports whether (from, to) is in the transition table,
// regardless of who performs it.
func IsLegalTransition(from, to models.TransferStatus) bool {
	if from == "" {
		return false
	}
	_, ok := lookupRule(from, to)
	return ok
}

// roleFitsLocation limits the store-side roles to stores and the
// warehouse manager to warehouses. Packing and logistics roles may sit at
// either kind of location.
func roleFitsLocation(role models.Role, lt models.LocationType) bool {
	switch role {
	case models.RoleLineman, models.RoleStoreManager:
		return lt == models.LocationTypeStore
	case models.RoleWarehouseManager:
		return lt == models.LocationTypeWarehouse
	}
	return role.IsValid()
}

// PermittedTransitions returns every transition a holder of role at a
// location of type lt may perform there. Requester-only and system-only
// transitions are never included.
func PermittedTransitions(role models.Role, lt models.LocationType) map[Transition]bool {
	out := map[Transition]bool{}
	if !roleFitsLocation(role, lt) {
		return out
	}
	for _, r := range transitionRules {
		for _, allowed := range r.Roles {
			if allowed == role {
				out[r.Transition] = true
				break
			}
		}
	}
	return out
}

// RoleGate answers authorization questions against the role assignment store.
type RoleGate struct {
	Locations LocationRegistry
	Roles     RoleDirectory
}

func NewRoleGate(locations LocationRegistry, roles RoleDirectory) *RoleGate {
	return &RoleGate{Locations: locations, Roles: roles}
}

// Authorize reports whether userID holds any of required at locationID.
func (g *RoleGate) Authorize(ctx context.Context, userID, locationID int, required ...models.Role) (bool, error) {
	roles, err := g.Roles.RolesAt(ctx, userID, locationID)
	if err != nil {
		return false, fmt.Errorf("failed to load roles: %w", err)
	}
	for _, held := range roles {
		for _, want := range required {
			if held == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// AuthorizeEitherEnd is Authorize against the source or the destination.
func (g *RoleGate) AuthorizeEitherEnd(ctx context.Context, userID int, t *models.Transfer, required ...models.Role) (bool, error) {
	for _, locationID := range []int{t.SourceLocationID, t.DestinationLocationID} {
		ok, err := g.Authorize(ctx, userID, locationID, required...)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// CanTransition checks whether actor may move t along tr. The pair must
// already be known to be legal.
func (g *RoleGate) CanTransition(ctx context.Context, actor int, t *models.Transfer, tr Transition) (bool, error) {
	rule, ok := lookupRule(tr.From, tr.To)
	if !ok {
		return false, nil
	}
	if actor == models.SystemUserID {
		return rule.AllowSystem, nil
	}
	if rule.RequesterOnly {
		return actor == t.RequestedBy, nil
	}

	var locationIDs []int
	switch rule.At {
	case AtSource:
		locationIDs = []int{t.SourceLocationID}
	case AtDestination:
		locationIDs = []int{t.DestinationLocationID}
	default:
		locationIDs = []int{t.SourceLocationID, t.DestinationLocationID}
	}

	for _, locationID := range locationIDs {
		loc, err := g.Locations.GetLocation(ctx, locationID)
		if err != nil {
			return false, translateStoreError(err, "location")
		}
		roles, err := g.Roles.RolesAt(ctx, actor, locationID)
		if err != nil {
			return false, fmt.Errorf("failed to load roles: %w", err)
		}
		for _, role := range roles {
			if PermittedTransitions(role, loc.LocationType)[tr] {
				return true, nil
			}
		}
	}
	return false, nil
}
