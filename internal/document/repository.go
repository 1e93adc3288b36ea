package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/notification"
)

// Repository defines document persistence. Mutating methods take their
// side-effect records so implementations can commit atomically.
type Repository interface {
	// Insert stores a new document with its audit row and, when the
	// dossier has an assigned expert, the upload notification. A nil
	// notification is the valid no-expert branch, not an error.
	Insert(ctx context.Context, d *Document, entry audit.Entry, notif *notification.Notification) error

	// GetByID retrieves a document, soft-deleted ones included.
	// Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Document, error)

	// ListByDossier returns a dossier's documents newest-first,
	// excluding soft-deleted rows.
	ListByDossier(ctx context.Context, dossierID string) ([]*Document, error)

	// SoftDelete marks a document deleted and writes the audit row.
	// The row itself is retained.
	SoftDelete(ctx context.Context, id string, deletedAt time.Time, entry audit.Entry) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	documents map[string]*Document
	audits    audit.Repository
	notifs    notification.Repository
}

// NewInMemoryRepository creates a new in-memory document repository.
func NewInMemoryRepository(audits audit.Repository, notifs notification.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		documents: make(map[string]*Document),
		audits:    audits,
		notifs:    notifs,
	}
}

// Insert stores a new document with its side effects.
func (r *InMemoryRepository) Insert(ctx context.Context, d *Document, entry audit.Entry, notif *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dCopy := *d
	r.documents[d.ID] = &dCopy
	if _, err := r.audits.Append(ctx, entry); err != nil {
		return err
	}
	if notif != nil {
		return r.notifs.Create(ctx, notif)
	}
	return nil
}

// GetByID retrieves a document, soft-deleted ones included.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	dCopy := *d
	return &dCopy, nil
}

// ListByDossier returns live documents newest-first.
func (r *InMemoryRepository) ListByDossier(ctx context.Context, dossierID string) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Document
	for _, d := range r.documents {
		if d.DossierID == dossierID && d.DeletedAt == nil {
			dCopy := *d
			results = append(results, &dCopy)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// SoftDelete marks a document deleted and writes the audit row.
func (r *InMemoryRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.documents[id]
	if !ok {
		return ErrNotFound
	}
	d.DeletedAt = &deletedAt
	_, err := r.audits.Append(ctx, entry)
	return err
}
