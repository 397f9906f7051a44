package models

import "time"

// User represents a portal account. Role flags are independent: a user with
// neither flag set is a student.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	IsSupervisor bool       `db:"is_supervisor" json:"is_supervisor"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsStudent reports whether the user holds no elevated role.
func (u *User) IsStudent() bool {
	return !u.IsSupervisor && !u.IsAdmin
}

// UserType returns a human readable role label.
func (u *User) UserType() string {
	switch {
	case u.IsAdmin && u.IsSupervisor:
		return "Admin Supervisor"
	case u.IsAdmin:
		return "Admin"
	case u.IsSupervisor:
		return "Supervisor"
	default:
		return "Student"
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Supervisor *bool
	Admin      *bool
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CreateUserRequest is the payload for provisioning an account.
type CreateUserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FullName     string `json:"full_name" validate:"required"`
	IsSupervisor bool   `json:"is_supervisor"`
	IsAdmin      bool   `json:"is_admin"`
}

// SetAdminRequest toggles administrator rights.
type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
