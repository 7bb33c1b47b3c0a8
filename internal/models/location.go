package models

import "time"

type LocationType string

const (
	LocationTypeStore     LocationType = "store"
	LocationTypeWarehouse LocationType = "warehouse"
)

func (t LocationType) IsValid() bool {
	return t == LocationTypeStore || t == LocationTypeWarehouse
}

type Location struct {
	ID           int          `json:"id"`
	ProjectID    *int         `json:"project_id,omitempty"`
	LocationName string       `json:"location_name"`
	LocationCode string       `json:"location_code"`
	LocationType LocationType `json:"location_type"`
	Address      string       `json:"address,omitempty"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
}

type CreateLocationRequest struct {
	LocationName string       `json:"location_name"`
	LocationCode string       `json:"location_code"`
	LocationType LocationType `json:"location_type"`
	Address      string       `json:"address"`
	IsActive     *bool        `json:"is_active"`
}

type LocationFilter struct {
	ProjectID  *int
	ActiveOnly bool
	Type       LocationType
}

type Product struct {
	ID          int       `json:"id"`
	ProjectID   *int      `json:"project_id,omitempty"`
	ProductName string    `json:"product_name"`
	ProductCode *string   `json:"product_code,omitempty"`
	Unit        string    `json:"unit"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateProductRequest struct {
	ProductName string  `json:"product_name"`
	ProductCode *string `json:"product_code"`
	Unit        string  `json:"unit"`
}

type ProductFilter struct {
	ProjectID *int
	Search    string
}
