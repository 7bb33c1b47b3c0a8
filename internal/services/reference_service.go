package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
)

type LocationStore interface {
	LocationRegistry
	ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error)
	CreateLocation(ctx context.Context, l *models.Location) error
	SetLocationActive(ctx context.Context, id int, active bool) error
}

type ProductStore interface {
	ProductCatalog
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
}

type RoleStore interface {
	RoleDirectory
	CreateRoleAssignment(ctx context.Context, a *models.RoleAssignment) error
	DeleteRoleAssignment(ctx context.Context, id int) error
}

type UserDirectory interface {
	IdentityDirectory
	ListUsers(ctx context.Context) ([]models.User, error)
}

type ActionLogStore interface {
	CreateActionLog(ctx context.Context, log *models.AdminActionLog) error
	ListActionLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error)
}

// ReferenceService manages the locations, products and role grants the
// transfer workflow consults. Every change is written to the action log.
type ReferenceService struct {
	Locations  LocationStore
	Products   ProductStore
	Roles      RoleStore
	Users      UserDirectory
	ActionLogs ActionLogStore

	roleListeners []func(ctx context.Context)
}

func NewReferenceService(locations LocationStore, products ProductStore, roles RoleStore, users UserDirectory, actionLogs ActionLogStore) *ReferenceService {
	return &ReferenceService{
		Locations:  locations,
		Products:   products,
		Roles:      roles,
		Users:      users,
		ActionLogs: actionLogs,
	}
}

// OnRoleChange registers fn to run after a role is granted or revoked.
// Role grants decide which transfers show up in the approvals tab.
func (s *ReferenceService) OnRoleChange(fn func(ctx context.Context)) {
	s.roleListeners = append(s.roleListeners, fn)
}

func (s *ReferenceService) rolesChanged(ctx context.Context) {
	for _, fn := range s.roleListeners {
		fn(ctx)
	}
}

// audit writes an action log entry. A logging failure never fails the change.
func (s *ReferenceService) audit(ctx context.Context, actor int, action, targetType string, targetID int, ip, description string) {
	entry := &models.AdminActionLog{
		AdminUserID: actor,
		ActionType:  action,
		TargetType:  targetType,
		TargetID:    &targetID,
		Description: description,
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if err := s.ActionLogs.CreateActionLog(ctx, entry); err != nil {
		log.Printf("[Reference] Failed to write action log: %v", err)
	}
}

func (s *ReferenceService) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	l, err := s.Locations.GetLocation(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "location")
	}
	return l, nil
}

func (s *ReferenceService) ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error) {
	if f.Type != "" && !f.Type.IsValid() {
		return nil, invalid("type", "must be store or warehouse")
	}
	return s.Locations.ListLocations(ctx, f)
}

func (s *ReferenceService) CreateLocation(ctx context.Context, projectID *int, req models.CreateLocationRequest, actor int, ip string) (*models.Location, error) {
	l := &models.Location{
		ProjectID:    projectID,
		LocationName: strings.TrimSpace(req.LocationName),
		LocationCode: strings.ToUpper(strings.TrimSpace(req.LocationCode)),
		LocationType: req.LocationType,
		Address:      strings.TrimSpace(req.Address),
		IsActive:     true,
	}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}
	if l.LocationName == "" {
		return nil, invalid("location_name", "is required")
	}
	if l.LocationCode == "" {
		return nil, invalid("location_code", "is required")
	}
	if !l.LocationType.IsValid() {
		return nil, invalid("location_type", "must be store or warehouse")
	}

	if err := s.Locations.CreateLocation(ctx, l); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, invalid("location_code", "%s is already in use", l.LocationCode)
		}
		return nil, err
	}
	s.audit(ctx, actor, "CREATE", "location", l.ID, ip,
		fmt.Sprintf("Created %s %s (%s)", l.LocationType, l.LocationName, l.LocationCode))
	return l, nil
}

// SetLocationActive enables or disables a location for new transfers.
// Existing transfers keep their copied labels.
func (s *ReferenceService) SetLocationActive(ctx context.Context, id int, active bool, actor int, ip string) error {
	if err := s.Locations.SetLocationActive(ctx, id, active); err != nil {
		return translateStoreError(err, "location")
	}
	action := "DEACTIVATE"
	if active {
		action = "ACTIVATE"
	}
	s.audit(ctx, actor, action, "location", id, ip, fmt.Sprintf("Location %d is_active=%t", id, active))
	return nil
}

func (s *ReferenceService) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	return s.Products.ListProducts(ctx, f)
}

func (s *ReferenceService) CreateProduct(ctx context.Context, projectID *int, req models.CreateProductRequest, actor int, ip string) (*models.Product, error) {
	p := &models.Product{
		ProjectID:   projectID,
		ProductName: strings.TrimSpace(req.ProductName),
		Unit:        strings.TrimSpace(req.Unit),
		IsActive:    true,
	}
	if p.ProductName == "" {
		return nil, invalid("product_name", "is required")
	}
	if req.ProductCode != nil {
		if code := strings.ToUpper(strings.TrimSpace(*req.ProductCode)); code != "" {
			p.ProductCode = &code
		}
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}

	if err := s.Products.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, invalid("product_code", "is already in use")
		}
		return nil, err
	}
	s.audit(ctx, actor, "CREATE", "product", p.ID, ip, "Created product "+p.ProductName)
	return p, nil
}

func (s *ReferenceService) ListRoleAssignments(ctx context.Context, f models.RoleAssignmentFilter) ([]models.RoleAssignment, error) {
	return s.Roles.ListRoleAssignments(ctx, f)
}

// GrantRole assigns a workflow role to a user at one location.
func (s *ReferenceService) GrantRole(ctx context.Context, req models.CreateRoleAssignmentRequest, actor int, ip string) (*models.RoleAssignment, error) {
	if !req.Role.IsValid() {
		return nil, invalid("role", "unknown role %q", req.Role)
	}
	user, err := s.Users.ResolveUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, invalid("user_id", "user %d does not exist", req.UserID)
		}
		return nil, err
	}
	loc, err := s.Locations.GetLocation(ctx, req.LocationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, invalid("location_id", "location %d does not exist", req.LocationID)
		}
		return nil, err
	}
	if !loc.IsActive {
		return nil, invalid("location_id", "location %s is inactive", loc.LocationCode)
	}
	if !roleFitsLocation(req.Role, loc.LocationType) {
		return nil, invalid("role", "%s cannot be held at a %s", req.Role, loc.LocationType)
	}

	a := &models.RoleAssignment{
		UserID:     req.UserID,
		LocationID: req.LocationID,
		Role:       req.Role,
		EmployeeID: req.EmployeeID,
	}
	if err := s.Roles.CreateRoleAssignment(ctx, a); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, invalid("role", "%s already holds %s at %s", user.FullName, req.Role, loc.LocationCode)
		}
		return nil, err
	}
	a.UserName = user.FullName
	a.LocationName = loc.LocationName
	s.audit(ctx, actor, "GRANT", "role_assignment", a.ID, ip,
		fmt.Sprintf("Granted %s to %s at %s", a.Role, user.FullName, loc.LocationCode))
	s.rolesChanged(ctx)
	return a, nil
}

func (s *ReferenceService) RevokeRole(ctx context.Context, id int, actor int, ip string) error {
	if err := s.Roles.DeleteRoleAssignment(ctx, id); err != nil {
		return translateStoreError(err, "role assignment")
	}
	s.audit(ctx, actor, "REVOKE", "role_assignment", id, ip, fmt.Sprintf("Revoked role assignment %d", id))
	s.rolesChanged(ctx)
	return nil
}

func (s *ReferenceService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Users.ListUsers(ctx)
}

func (s *ReferenceService) ListActionLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	return s.ActionLogs.ListActionLogs(ctx, limit)
}
