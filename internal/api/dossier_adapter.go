// Package api provides HTTP handlers for the dossier management API.
package api

import (
	"context"
	"errors"

	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/dossier"
)

// caseSourceAdapter adapts dossier.Repository to the document.CaseSource
// interface so the document service can resolve ownership without
// importing the dossier package.
type caseSourceAdapter struct {
	repo dossier.Repository
}

// Case resolves the projection of a dossier that document operations need.
func (a *caseSourceAdapter) Case(ctx context.Context, dossierID string) (*document.Case, error) {
	d, err := a.repo.GetByID(ctx, dossierID)
	if err != nil {
		if errors.Is(err, dossier.ErrNotFound) {
			return nil, document.ErrDossierNotFound
		}
		return nil, err
	}
	c := &document.Case{
		ID:        d.ID,
		Titre:     d.Titre,
		VictimeID: d.VictimeID,
	}
	if d.ExpertID != nil {
		c.ExpertID = *d.ExpertID
	}
	return c, nil
}

// NewCaseSourceAdapter creates a document.CaseSource backed by the dossier
// repository.
func NewCaseSourceAdapter(repo dossier.Repository) document.CaseSource {
	if repo == nil {
		return nil
	}
	return &caseSourceAdapter{repo: repo}
}
