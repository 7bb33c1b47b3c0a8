package models

import "time"

// Role is a transfer workflow role held by a user at one location.
type Role string

const (
	RoleLineman          Role = "lineman"
	RoleStoreManager     Role = "store_manager"
	RoleWarehouseManager Role = "warehouse_manager"
	RolePackingTeam      Role = "packing_team"
	RoleLogisticsManager Role = "logistics_manager"
	RoleLogisticsTeam    Role = "logistics_team"
)

var AllRoles = []Role{
	RoleLineman,
	RoleStoreManager,
	RoleWarehouseManager,
	RolePackingTeam,
	RoleLogisticsManager,
	RoleLogisticsTeam,
}

func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

type RoleAssignment struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	LocationID   int       `json:"location_id"`
	LocationName string    `json:"location_name,omitempty"`
	Role         Role      `json:"role"`
	EmployeeID   *int      `json:"employee_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateRoleAssignmentRequest struct {
	UserID     int  `json:"user_id"`
	LocationID int  `json:"location_id"`
	Role       Role `json:"role"`
	EmployeeID *int `json:"employee_id"`
}

type RoleAssignmentFilter struct {
	UserID     int
	LocationID int
}
