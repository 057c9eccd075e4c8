package models

import (
	"time"
)

// Role represents user roles in the portal
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePlanner    Role = "planner"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// Actions checked by the HTTP layer.
const (
	ActionViewSchedule       = "view_schedule"
	ActionPlanMaintenance    = "plan_maintenance"
	ActionRegisterCompletion = "register_completion"
	ActionManageUsers        = "manage_users"
)

// User is an account allowed to sign in to the maintenance service
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	FullName     string     `json:"full_name"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims is what the HTTP layer knows about the caller
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RolePlanner, RoleTechnician, RoleViewer:
		return true
	default:
		return false
	}
}

// Can checks if a role may perform an action
func (r Role) Can(action string) bool {
	switch r {
	case RoleAdmin:
		return true
	case RolePlanner:
		return action != ActionManageUsers
	case RoleTechnician:
		return action == ActionViewSchedule || action == ActionRegisterCompletion
	case RoleViewer:
		return action == ActionViewSchedule
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	if !u.IsActive {
		return false
	}
	return u.Role.Can(action)
}
