package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Approved     bool       `db:"approved" json:"approved"`
	ApprovedAt   *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy   *string    `db:"approved_by" json:"approved_by,omitempty"`
	Bio          string     `db:"bio" json:"bio,omitempty"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	ProfilePic   string     `db:"profile_pic" json:"profile_pic,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the account may log in. Admin accounts are always
// active; student and instructor accounts require admin approval.
func (u *User) Active() bool {
	if u.Role == RoleAdmin {
		return true
	}
	return u.Approved
}

// IsInstructor reports whether the user can manage courses.
func (u *User) IsInstructor() bool {
	return u.Role == RoleInstructor || u.Role == RoleAdmin
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Approved  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
