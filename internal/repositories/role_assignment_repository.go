package repositories

import (
	"context"

	"opsboard-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleAssignmentRepository stores (user, location, role) grants.
type RoleAssignmentRepository struct {
	DB *pgxpool.Pool
}

func NewRoleAssignmentRepository(db *pgxpool.Pool) *RoleAssignmentRepository {
	return &RoleAssignmentRepository{DB: db}
}

// RolesAt returns the roles a user holds at one location.
func (r *RoleAssignmentRepository) RolesAt(ctx context.Context, userID, locationID int) ([]models.Role, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT role FROM transfer_role_assignments WHERE user_id = $1 AND location_id = $2`,
		userID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleAssignmentRepository) ListRoleAssignments(ctx context.Context, f models.RoleAssignmentFilter) ([]models.RoleAssignment, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT a.id, a.user_id, COALESCE(u.full_name, ''), a.location_id, COALESCE(l.location_name, ''),
		        a.role, a.employee_id, a.created_at
		 FROM transfer_role_assignments a
		 LEFT JOIN users u ON u.id = a.user_id
		 LEFT JOIN locations l ON l.id = a.location_id
		 WHERE ($1 = 0 OR a.user_id = $1) AND ($2 = 0 OR a.location_id = $2)
		 ORDER BY a.location_id, a.user_id, a.role`,
		f.UserID, f.LocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.RoleAssignment{}
	for rows.Next() {
		var a models.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserName, &a.LocationID, &a.LocationName,
			&a.Role, &a.EmployeeID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *RoleAssignmentRepository) CreateRoleAssignment(ctx context.Context, a *models.RoleAssignment) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO transfer_role_assignments(user_id, location_id, role, employee_id)
		 VALUES($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.UserID, a.LocationID, a.Role, a.EmployeeID,
	).Scan(&a.ID, &a.CreatedAt)
	return mapPgError(err)
}

func (r *RoleAssignmentRepository) DeleteRoleAssignment(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM transfer_role_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
