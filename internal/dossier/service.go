package dossier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/notification"
	"github.com/onnwee/sinistra/internal/validate"
)

// DocumentLister supplies the documents nested under a dossier read.
// Satisfied by document.Repository.
type DocumentLister interface {
	ListByDossier(ctx context.Context, dossierID string) ([]*document.Document, error)
}

// Service is the dossier lifecycle engine: creation, field updates, and
// status transitions with their guaranteed side effects.
type Service struct {
	repo    Repository
	docs    DocumentLister
	metrics *Metrics
}

// NewService creates a new dossier service. metrics may be nil.
func NewService(repo Repository, docs DocumentLister, metrics *Metrics) *Service {
	return &Service{repo: repo, docs: docs, metrics: metrics}
}

// CreateInput carries the fields for dossier creation. Titre and
// DateAccident are required.
type CreateInput struct {
	Titre               string
	DateAccident        time.Time
	LieuAccident        *string
	DescriptionAccident *string
}

// Create opens a new dossier owned by the calling principal as victim,
// with statut CRÉÉ and no assigned expert. One audit row is written in
// the same unit; no notification fires since there is no expert yet.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*Dossier, error) {
	titre, err := validate.Titre(in.Titre)
	if err != nil {
		return nil, fmt.Errorf("%w: titre: %v", ErrValidation, err)
	}
	if in.DateAccident.IsZero() {
		return nil, fmt.Errorf("%w: dateAccident required", ErrValidation)
	}
	if in.DescriptionAccident != nil {
		desc, err := validate.Description(*in.DescriptionAccident)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptionAccident: %v", ErrValidation, err)
		}
		in.DescriptionAccident = &desc
	}

	now := time.Now().UTC()
	d := &Dossier{
		ID:                  uuid.New().String(),
		Titre:               titre,
		DateAccident:        in.DateAccident,
		LieuAccident:        in.LieuAccident,
		DescriptionAccident: in.DescriptionAccident,
		VictimeID:           p.ID,
		Statut:              StatusCree,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	entry := audit.Entry{
		UserID:       p.ID,
		UserRole:     string(p.Role),
		Action:       audit.ActionCreateDossier,
		ResourceType: audit.ResourceDossier,
		ResourceID:   d.ID,
		Details:      map[string]any{"titre": titre},
	}

	if err := s.repo.Insert(ctx, d, entry); err != nil {
		return nil, err
	}
	s.metrics.DossierCreated()
	return d, nil
}

// List returns the dossiers owned by the principal as victim. The scope
// is victim-only for every role, admins included.
func (s *Service) List(ctx context.Context, p authz.Principal) ([]*Dossier, error) {
	return s.repo.ListByVictime(ctx, p.ID)
}

// Detail is a dossier with its documents and status history nested.
type Detail struct {
	*Dossier
	Documents []*document.Document `json:"documents"`
	History   []*StatusHistory     `json:"status_history"`
}

// Get returns a dossier with nested documents and status history.
func (s *Service) Get(ctx context.Context, p authz.Principal, id string) (*Detail, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, ref(d), authz.ActionReadDossier) {
		return nil, ErrForbidden
	}

	docs, err := s.docs.ListByDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.HistoryByDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Dossier: d, Documents: docs, History: history}, nil
}

// UpdateInput carries the partially updatable fields. A nil field is left
// untouched; omission never clears a value.
type UpdateInput struct {
	Titre               *string
	DescriptionAccident *string
}

// Update applies a partial update to the two mutable fields. Applying the
// same partial update twice yields the same final state.
func (s *Service) Update(ctx context.Context, p authz.Principal, id string, in UpdateInput) (*Dossier, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, ref(d), authz.ActionUpdateDossier) {
		return nil, ErrForbidden
	}

	details := map[string]any{}
	if in.Titre != nil {
		titre, err := validate.Titre(*in.Titre)
		if err != nil {
			return nil, fmt.Errorf("%w: titre: %v", ErrValidation, err)
		}
		d.Titre = titre
		details["titre"] = titre
	}
	if in.DescriptionAccident != nil {
		desc, err := validate.Description(*in.DescriptionAccident)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptionAccident: %v", ErrValidation, err)
		}
		d.DescriptionAccident = &desc
		details["descriptionAccident"] = desc
	}
	d.UpdatedAt = time.Now().UTC()

	entry := audit.Entry{
		UserID:       p.ID,
		UserRole:     string(p.Role),
		Action:       audit.ActionUpdateDossier,
		ResourceType: audit.ResourceDossier,
		ResourceID:   d.ID,
		Details:      details,
	}

	if err := s.repo.Update(ctx, d, entry); err != nil {
		return nil, err
	}
	return d, nil
}

// ChangeStatus transitions a dossier to any member of the closed status
// set. Only the assigned expert (or an admin) may transition. On success
// the statut update, history row, audit row, and victim notification land
// as one atomic unit.
func (s *Service) ChangeStatus(ctx context.Context, p authz.Principal, id string, nouveauStatut Status, raison *string) (*Dossier, error) {
	if nouveauStatut == "" {
		return nil, fmt.Errorf("%w: nouveauStatut required", ErrValidation)
	}
	if !nouveauStatut.Valid() {
		return nil, fmt.Errorf("%w: unknown statut %q", ErrValidation, nouveauStatut)
	}
	if raison != nil {
		r, err := validate.Raison(*raison)
		if err != nil {
			return nil, fmt.Errorf("%w: raisonChangement: %v", ErrValidation, err)
		}
		raison = &r
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, ref(d), authz.ActionChangeStatus) {
		return nil, ErrForbidden
	}

	// Captured before mutation; the repository guards the update on it so
	// the history chain stays gapless.
	ancienStatut := d.Statut
	now := time.Now().UTC()

	cmd := StatusChange{
		DossierID:     id,
		NouveauStatut: nouveauStatut,
		History: &StatusHistory{
			ID:               uuid.New().String(),
			DossierID:        id,
			ChangedByID:      p.ID,
			AncienStatut:     ancienStatut,
			NouveauStatut:    nouveauStatut,
			RaisonChangement: raison,
			CreatedAt:        now,
		},
		Audit: audit.Entry{
			UserID:       p.ID,
			UserRole:     string(p.Role),
			Action:       audit.ActionChangeStatus,
			ResourceType: audit.ResourceDossier,
			ResourceID:   id,
			Details: map[string]any{
				"ancienStatut":     string(ancienStatut),
				"nouveauStatut":    string(nouveauStatut),
				"raisonChangement": raison,
			},
		},
		Notification: notification.StatusChanged(d.VictimeID, id, d.Titre, string(nouveauStatut)),
	}

	updated, err := s.repo.ApplyStatusChange(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.metrics.StatusChanged(nouveauStatut)
	return updated, nil
}

// StatusHistory returns a dossier's transition history newest-first.
// Readable by the victim, the assigned expert, or an admin.
func (s *Service) StatusHistory(ctx context.Context, p authz.Principal, id string) ([]*StatusHistory, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(p, ref(d), authz.ActionReadStatusHistory) {
		return nil, ErrForbidden
	}
	return s.repo.HistoryByDossier(ctx, id)
}

func ref(d *Dossier) authz.DossierRef {
	r := authz.DossierRef{VictimeID: d.VictimeID}
	if d.ExpertID != nil {
		r.ExpertID = *d.ExpertID
	}
	return r
}
