package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleClinic       UserRole = "CLINIC"
	RoleAnaesthetist UserRole = "ANAESTHETIST"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Candidate is the display metadata of an anaesthetist shown to clinics when
// building a preferred list.
type Candidate struct {
	ID             string  `db:"id" json:"id"`
	FullName       string  `db:"full_name" json:"fullName"`
	Email          string  `db:"email" json:"email"`
	Phone          string  `db:"phone" json:"phone,omitempty"`
	Specialization string  `db:"specialization" json:"specialization,omitempty"`
	Experience     string  `db:"experience" json:"experience,omitempty"`
	AcceptanceRate float64 `db:"acceptance_rate" json:"acceptanceRate"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
