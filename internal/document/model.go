// Package document tracks document metadata attached to dossiers.
// File content lives in object storage; rows here carry the locator.
// Removal is a soft delete so the audit trail stays reconstructable.
package document

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for document operations.
var (
	ErrNotFound        = errors.New("document not found")
	ErrDossierNotFound = errors.New("dossier not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
)

// Document is metadata for one uploaded file. A row with deleted_at set
// is logically removed but retained for audit.
type Document struct {
	ID            string     `json:"id"`
	DossierID     string     `json:"dossier_id"`
	UploadedByID  string     `json:"uploaded_by_id"`
	FileName      string     `json:"file_name"`
	FileType      *string    `json:"file_type,omitempty"`
	FileSizeBytes *int64     `json:"file_size_bytes,omitempty"`
	LocatorKey    string     `json:"locator_key"`
	LocatorURL    *string    `json:"locator_url,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LocatorKey derives the storage key for a file within a dossier. The
// derivation is deterministic: repeated uploads of the same filename
// produce the same key but distinct rows, never an overwrite.
func LocatorKey(dossierID, fileName string) string {
	return fmt.Sprintf("dossiers/%s/%s", dossierID, fileName)
}

// Case is the projection of a dossier that document operations need:
// ownership for authorization, titre for notification wording.
// ExpertID is empty when no expert is assigned.
type Case struct {
	ID        string
	Titre     string
	VictimeID string
	ExpertID  string
}
