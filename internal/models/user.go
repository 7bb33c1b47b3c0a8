package models

import "time"

// User is an entry of the identity directory. Accounts are managed by the
// surrounding identity provider; this service only reads them.
type User struct {
	ID        int       `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"` // false = suspended
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
