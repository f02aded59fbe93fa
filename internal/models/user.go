package models

import "time"

// Role names known to beacon. Deployments may configure others.
const (
	RoleStaff      = "staff"
	RoleApprover   = "approver"
	RoleConductor  = "conductor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is a staff account. The zero value with ID 0 is the anonymous user.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

// Anonymous stands in for an unauthenticated caller.
var Anonymous = &User{}

// IsAnonymous reports whether u is nil or carries no identity.
func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == 0
}

// HasAnyRole reports whether u holds at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	if u.IsAnonymous() {
		return false
	}
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
