package models

// User is an authenticated account as exposed by /api/auth/me
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"` // "admin" or "viewer"
}

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)
