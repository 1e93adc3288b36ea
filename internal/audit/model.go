// Package audit provides the append-only audit trail recording every
// mutating operation across entities.
package audit

import (
	"time"
)

// Audited actions. One audit row is written per mutating operation.
const (
	ActionRegister       = "REGISTER"
	ActionLogin          = "LOGIN"
	ActionCreateDossier  = "CREATE_DOSSIER"
	ActionUpdateDossier  = "UPDATE_DOSSIER"
	ActionChangeStatus   = "CHANGE_STATUS"
	ActionUploadDocument = "UPLOAD_DOCUMENT"
	ActionDeleteDocument = "DELETE_DOCUMENT"
)

// Resource types referenced by audit rows.
const (
	ResourceUser     = "USER"
	ResourceDossier  = "DOSSIER"
	ResourceDocument = "DOCUMENT"
)

// AuditLog is a single immutable record of a mutating operation.
// Rows are never updated or deleted.
type AuditLog struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id,omitempty"`
	UserRole     string         `json:"user_role,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Entry is the input for appending an audit row. The repository assigns
// the ID and creation timestamp.
type Entry struct {
	UserID       string
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}
