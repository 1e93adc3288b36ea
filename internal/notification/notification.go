// Package notification creates recipient-addressed messages describing an
// event. Creation happens synchronously with the triggering mutation;
// delivery (the sent_at transition) belongs to the downstream sink.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeStatusChanged    = "STATUS_CHANGED"
	TypeDocumentUploaded = "DOCUMENT_UPLOADED"
)

// Notification is a message addressed to a single recipient.
type Notification struct {
	ID               string     `json:"id"`
	RecipientID      string     `json:"recipient_id"`
	Type             string     `json:"type"`
	Subject          string     `json:"subject"`
	Body             string     `json:"body"`
	RelatedDossierID *string    `json:"related_dossier_id,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// StatusChanged builds the notification sent to a dossier's victim when
// its status changes.
func StatusChanged(recipientID, dossierID, titre, nouveauStatut string) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:               uuid.New().String(),
		RecipientID:      recipientID,
		Type:             TypeStatusChanged,
		Subject:          "Mise à jour de votre dossier",
		Body:             fmt.Sprintf("Votre dossier %q est maintenant %q.", titre, nouveauStatut),
		RelatedDossierID: &dossierID,
		SentAt:           &now,
		CreatedAt:        now,
	}
}

// DocumentUploaded builds the notification sent to a dossier's assigned
// expert when a new document lands.
func DocumentUploaded(recipientID, dossierID, titre, fileName string) *Notification {
	return &Notification{
		ID:               uuid.New().String(),
		RecipientID:      recipientID,
		Type:             TypeDocumentUploaded,
		Subject:          "Nouveau document uploadé",
		Body:             fmt.Sprintf("Un nouveau document %q a été ajouté au dossier %q.", fileName, titre),
		RelatedDossierID: &dossierID,
		CreatedAt:        time.Now().UTC(),
	}
}

// Repository defines notification persistence.
type Repository interface {
	// Create stores a notification record.
	Create(ctx context.Context, n *Notification) error

	// ListByRecipient returns a recipient's notifications newest-first.
	ListByRecipient(ctx context.Context, recipientID string) ([]*Notification, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu            sync.RWMutex
	notifications []*Notification
}

// NewInMemoryRepository creates a new in-memory notification repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create stores a notification record.
func (r *InMemoryRepository) Create(ctx context.Context, n *Notification) error {
	nCopy := *n
	r.mu.Lock()
	r.notifications = append(r.notifications, &nCopy)
	r.mu.Unlock()
	return nil
}

// ListByRecipient returns a recipient's notifications newest-first.
func (r *InMemoryRepository) ListByRecipient(ctx context.Context, recipientID string) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].RecipientID == recipientID {
			nCopy := *r.notifications[i]
			results = append(results, &nCopy)
		}
	}
	return results, nil
}
