package dossier

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/notification"
)

// ErrConflict is returned when a status change loses a race: the dossier's
// statut no longer matches the ancien statut captured for the history row.
var ErrConflict = errors.New("dossier status changed concurrently")

// StatusChange is the atomic command for a status transition. All four
// writes (statut update, history row, audit row, notification) land in one
// unit or not at all.
type StatusChange struct {
	DossierID     string
	NouveauStatut Status
	History       *StatusHistory
	Audit         audit.Entry
	Notification  *notification.Notification
}

// Repository defines dossier persistence. Mutating methods take the audit
// entry (and, for status changes, the notification) so implementations can
// commit entity write and side effects atomically.
type Repository interface {
	// Insert stores a new dossier together with its audit row.
	Insert(ctx context.Context, d *Dossier, entry audit.Entry) error

	// GetByID retrieves a dossier. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Dossier, error)

	// ListByVictime returns the dossiers owned by a victim, newest-first.
	ListByVictime(ctx context.Context, victimeID string) ([]*Dossier, error)

	// Update overwrites the mutable fields (titre, description_accident)
	// together with the audit row.
	Update(ctx context.Context, d *Dossier, entry audit.Entry) error

	// ApplyStatusChange executes the four-step transition atomically and
	// returns the updated dossier. Returns ErrConflict when the dossier's
	// statut no longer matches cmd.History.AncienStatut.
	ApplyStatusChange(ctx context.Context, cmd StatusChange) (*Dossier, error)

	// HistoryByDossier returns a dossier's status history newest-first.
	HistoryByDossier(ctx context.Context, dossierID string) ([]*StatusHistory, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Side-effect records are forwarded to
// the injected audit and notification repositories under a single lock so
// commands keep their all-or-nothing observable behavior.
type InMemoryRepository struct {
	mu       sync.RWMutex
	dossiers map[string]*Dossier
	history  map[string][]*StatusHistory // dossierID -> rows, oldest first
	audits   audit.Repository
	notifs   notification.Repository
}

// NewInMemoryRepository creates a new in-memory dossier repository.
func NewInMemoryRepository(audits audit.Repository, notifs notification.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		dossiers: make(map[string]*Dossier),
		history:  make(map[string][]*StatusHistory),
		audits:   audits,
		notifs:   notifs,
	}
}

// Insert stores a new dossier together with its audit row.
func (r *InMemoryRepository) Insert(ctx context.Context, d *Dossier, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dCopy := *d
	r.dossiers[d.ID] = &dCopy
	_, err := r.audits.Append(ctx, entry)
	return err
}

// GetByID retrieves a dossier.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Dossier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dossiers[id]
	if !ok {
		return nil, ErrNotFound
	}
	dCopy := *d
	return &dCopy, nil
}

// ListByVictime returns the dossiers owned by a victim, newest-first.
func (r *InMemoryRepository) ListByVictime(ctx context.Context, victimeID string) ([]*Dossier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Dossier
	for _, d := range r.dossiers {
		if d.VictimeID == victimeID {
			dCopy := *d
			results = append(results, &dCopy)
		}
	}
	sortNewestFirst(results)
	return results, nil
}

// Update overwrites the mutable fields together with the audit row.
func (r *InMemoryRepository) Update(ctx context.Context, d *Dossier, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.dossiers[d.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Titre = d.Titre
	existing.DescriptionAccident = d.DescriptionAccident
	existing.UpdatedAt = d.UpdatedAt
	_, err := r.audits.Append(ctx, entry)
	return err
}

// ApplyStatusChange executes the four-step transition atomically.
func (r *InMemoryRepository) ApplyStatusChange(ctx context.Context, cmd StatusChange) (*Dossier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dossiers[cmd.DossierID]
	if !ok {
		return nil, ErrNotFound
	}
	if d.Statut != cmd.History.AncienStatut {
		return nil, ErrConflict
	}

	// Side-effect appends go first; the dossier and history row swap in
	// only after both succeed, matching the postgres transaction.
	if _, err := r.audits.Append(ctx, cmd.Audit); err != nil {
		return nil, err
	}
	if err := r.notifs.Create(ctx, cmd.Notification); err != nil {
		return nil, err
	}

	updated := *d
	updated.Statut = cmd.NouveauStatut
	updated.UpdatedAt = cmd.History.CreatedAt
	r.dossiers[cmd.DossierID] = &updated
	hCopy := *cmd.History
	r.history[cmd.DossierID] = append(r.history[cmd.DossierID], &hCopy)

	dCopy := updated
	return &dCopy, nil
}

// HistoryByDossier returns a dossier's status history newest-first.
func (r *InMemoryRepository) HistoryByDossier(ctx context.Context, dossierID string) ([]*StatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.history[dossierID]
	results := make([]*StatusHistory, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		hCopy := *rows[i]
		results = append(results, &hCopy)
	}
	return results, nil
}

// sortNewestFirst orders dossiers by creation time descending. Map
// iteration order is not stable, so sort explicitly.
func sortNewestFirst(ds []*Dossier) {
	sort.Slice(ds, func(i, j int) bool {
		return ds[i].CreatedAt.After(ds[j].CreatedAt)
	})
}
