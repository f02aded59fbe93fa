package opportunity

import (
	"beacon/internal/clock"
	"beacon/internal/models"
)

// DefaultApproverRoles may publish, archive and edit public opportunities.
var DefaultApproverRoles = []string{models.RoleApprover, models.RoleConductor, models.RoleAdmin, models.RoleSuperAdmin}

// Access evaluates the edit and view gates. Both are recomputed from the
// entity on every call.
type Access struct {
	approverRoles []string
	state         State
	clock         clock.Clock
}

func NewAccess(approverRoles []string, state State, clk clock.Clock) *Access {
	if len(approverRoles) == 0 {
		approverRoles = DefaultApproverRoles
	}
	return &Access{
		approverRoles: append([]string(nil), approverRoles...),
		state:         state,
		clock:         clk,
	}
}

func (a *Access) IsApprover(u *models.User) bool {
	return u.HasAnyRole(a.approverRoles...)
}

// CanEdit: approvers always; creator and contact only before approval.
func (a *Access) CanEdit(u *models.User, o *models.Opportunity) bool {
	if u.IsAnonymous() {
		return false
	}
	if a.IsApprover(u) {
		return true
	}
	if o.IsPublic {
		return false
	}
	return u.ID == o.CreatedByID || u.ID == o.ContactID
}

// CanView: anonymous callers see only published opportunities.
func (a *Access) CanView(u *models.User, o *models.Opportunity) bool {
	if !u.IsAnonymous() {
		return true
	}
	return a.state.IsPublished(o, a.clock.Now())
}
