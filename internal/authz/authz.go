// Package authz implements the access policy for dossier operations as a
// pure decision function over principal role and dossier ownership.
package authz

// Role identifies what kind of actor a principal is.
type Role string

// Roles known to the system.
const (
	RoleVictime Role = "VICTIME"
	RoleExpert  Role = "EXPERT"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVictime, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor performing an operation.
// It is derived from a validated token and never persisted.
type Principal struct {
	ID   string
	Role Role
}

// Action enumerates every operation the policy can decide on.
type Action string

// Actions subject to the policy.
const (
	ActionReadDossier       Action = "read_dossier"
	ActionUpdateDossier     Action = "update_dossier"
	ActionChangeStatus      Action = "change_status"
	ActionReadStatusHistory Action = "read_status_history"
	ActionUploadDocument    Action = "upload_document"
	ActionListDocuments     Action = "list_documents"
	ActionDeleteDocument    Action = "delete_document"
	ActionListAuditLogs     Action = "list_audit_logs"
)

// DossierRef carries the two ownership fields the policy needs.
// ExpertID is empty when no expert is assigned.
type DossierRef struct {
	VictimeID string
	ExpertID  string
}

// Authorize decides whether the principal may perform the action on the
// dossier. It is deterministic and has no side effects.
//
// Admins are allowed everything. Victims own their dossiers: they read,
// update, and manage documents on them. Any expert may upload documents
// to any dossier (a deliberately permissive rule), but only the assigned
// expert may change its status. Status history is readable by the victim
// and the assigned expert.
func Authorize(p Principal, d DossierRef, a Action) bool {
	if p.Role == RoleAdmin {
		return true
	}

	isVictime := p.ID != "" && p.ID == d.VictimeID
	isAssignedExpert := p.ID != "" && d.ExpertID != "" && p.ID == d.ExpertID

	switch a {
	case ActionReadDossier, ActionUpdateDossier, ActionListDocuments:
		return isVictime
	case ActionUploadDocument:
		return isVictime || p.Role == RoleExpert
	case ActionDeleteDocument:
		return isVictime
	case ActionChangeStatus:
		return isAssignedExpert
	case ActionReadStatusHistory:
		return isVictime || isAssignedExpert
	case ActionListAuditLogs:
		// Admin only, already handled above.
		return false
	}
	return false
}
