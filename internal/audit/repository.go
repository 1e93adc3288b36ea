package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines audit log operations. The trail is append-only:
// there is no update or delete.
type Repository interface {
	// Append records one audit row and returns the created entry.
	Append(ctx context.Context, entry Entry) (*AuditLog, error)

	// List returns audit rows ordered newest-first, plus the total row
	// count for pagination.
	List(ctx context.Context, limit, offset int) ([]*AuditLog, int, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs []*AuditLog
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append records one audit row.
func (r *InMemoryRepository) Append(ctx context.Context, entry Entry) (*AuditLog, error) {
	log := newAuditLog(entry)

	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()

	logCopy := *log
	return &logCopy, nil
}

// List returns audit rows newest-first with the total count.
func (r *InMemoryRepository) List(ctx context.Context, limit, offset int) ([]*AuditLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.logs)
	results := make([]*AuditLog, 0, limit)

	// Iterate in reverse insertion order (newest first).
	for i := total - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		logCopy := *r.logs[i]
		results = append(results, &logCopy)
	}

	return results, total, nil
}

// newAuditLog assigns identity and timestamp to an entry.
func newAuditLog(entry Entry) *AuditLog {
	return &AuditLog{
		ID:           uuid.New().String(),
		UserID:       entry.UserID,
		UserRole:     entry.UserRole,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		CreatedAt:    time.Now().UTC(),
	}
}
