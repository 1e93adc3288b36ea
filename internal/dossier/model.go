// Package dossier owns the dossier lifecycle: creation, field updates,
// and the flat status machine with its append-only history.
package dossier

import (
	"errors"
	"time"
)

// Status is a dossier's position in the claim workflow.
type Status string

// The closed status set. CRÉÉ is the only valid initial value. The
// machine is flat: any member is reachable from any member, there is no
// transition-adjacency graph.
const (
	StatusCree      Status = "CRÉÉ"
	StatusEnCours   Status = "EN_COURS"
	StatusEnAttente Status = "EN_ATTENTE"
	StatusExpertise Status = "EXPERTISE"
	StatusCloture   Status = "CLÔTURÉ"
	StatusRejete    Status = "REJETÉ"
)

// Valid reports whether the status belongs to the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusCree, StatusEnCours, StatusEnAttente, StatusExpertise, StatusCloture, StatusRejete:
		return true
	}
	return false
}

// Common errors for dossier operations.
var (
	ErrNotFound   = errors.New("dossier not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// Dossier is a case file tracking an accident claim. victime_id is set at
// creation and immutable; expert_id is empty until an expert is assigned.
type Dossier struct {
	ID                  string    `json:"id"`
	Titre               string    `json:"titre"`
	DateAccident        time.Time `json:"date_accident"`
	LieuAccident        *string   `json:"lieu_accident,omitempty"`
	DescriptionAccident *string   `json:"description_accident,omitempty"`
	VictimeID           string    `json:"victime_id"`
	ExpertID            *string   `json:"expert_id,omitempty"`
	Statut              Status    `json:"statut"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// StatusHistory is one immutable record of a status transition.
// ancien_statut always equals the dossier's statut immediately before the
// transition, so consecutive rows chain without gaps.
type StatusHistory struct {
	ID               string    `json:"id"`
	DossierID        string    `json:"dossier_id"`
	ChangedByID      string    `json:"changed_by_id"`
	AncienStatut     Status    `json:"ancien_statut"`
	NouveauStatut    Status    `json:"nouveau_statut"`
	RaisonChangement *string   `json:"raison_changement,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
