package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/notification"
)

// CaseSource resolves the dossier a document operation targets.
// Implementations return ErrDossierNotFound when the dossier is absent.
type CaseSource interface {
	Case(ctx context.Context, dossierID string) (*Case, error)
}

// Service is the document registry: uploads, listing, soft deletion.
// Every operation is gated by the access policy.
type Service struct {
	repo  Repository
	cases CaseSource
}

// NewService creates a new document service.
func NewService(repo Repository, cases CaseSource) *Service {
	return &Service{repo: repo, cases: cases}
}

// UploadInput carries the metadata for a document upload. Optional fields
// may be nil.
type UploadInput struct {
	FileName      string
	FileType      *string
	FileSizeBytes *int64
	LocatorURL    *string
}

// Upload registers a document on a dossier. The storage key is derived
// from the dossier ID and filename. When the dossier has an assigned
// expert, a notification is created for them in the same atomic unit;
// with no expert assigned the notification is skipped, which is a valid
// branch rather than a suppressed failure.
func (s *Service) Upload(ctx context.Context, p authz.Principal, dossierID string, in UploadInput) (*Document, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: fileName required", ErrValidation)
	}

	c, err := s.cases.Case(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, authz.DossierRef{VictimeID: c.VictimeID, ExpertID: c.ExpertID}, authz.ActionUploadDocument) {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:            uuid.New().String(),
		DossierID:     dossierID,
		UploadedByID:  p.ID,
		FileName:      in.FileName,
		FileType:      in.FileType,
		FileSizeBytes: in.FileSizeBytes,
		LocatorKey:    LocatorKey(dossierID, in.FileName),
		LocatorURL:    in.LocatorURL,
		CreatedAt:     now,
	}

	entry := audit.Entry{
		UserID:       p.ID,
		UserRole:     string(p.Role),
		Action:       audit.ActionUploadDocument,
		ResourceType: audit.ResourceDocument,
		ResourceID:   doc.ID,
		Details: map[string]any{
			"fileName":  in.FileName,
			"dossierId": dossierID,
		},
	}

	var notif *notification.Notification
	if c.ExpertID != "" {
		notif = notification.DocumentUploaded(c.ExpertID, dossierID, c.Titre, in.FileName)
	}

	if err := s.repo.Insert(ctx, doc, entry, notif); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns a dossier's live documents. Soft-deleted rows are excluded
// at read time; they remain in storage for audit.
func (s *Service) List(ctx context.Context, p authz.Principal, dossierID string) ([]*Document, error) {
	c, err := s.cases.Case(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, authz.DossierRef{VictimeID: c.VictimeID, ExpertID: c.ExpertID}, authz.ActionListDocuments) {
		return nil, ErrForbidden
	}
	return s.repo.ListByDossier(ctx, dossierID)
}

// Delete soft-deletes a document. Only the dossier's victim (or an admin)
// may delete; who uploaded the document is irrelevant to the check.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	c, err := s.cases.Case(ctx, doc.DossierID)
	if err != nil {
		return err
	}
	if !authz.Authorize(p, authz.DossierRef{VictimeID: c.VictimeID, ExpertID: c.ExpertID}, authz.ActionDeleteDocument) {
		return ErrForbidden
	}

	entry := audit.Entry{
		UserID:       p.ID,
		UserRole:     string(p.Role),
		Action:       audit.ActionDeleteDocument,
		ResourceType: audit.ResourceDocument,
		ResourceID:   doc.ID,
		Details: map[string]any{
			"fileName":  doc.FileName,
			"dossierId": doc.DossierID,
		},
	}
	return s.repo.SoftDelete(ctx, id, time.Now().UTC(), entry)
}
