package notification

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a notification record.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	return InsertTx(ctx, r.db, n)
}

// ListByRecipient returns a recipient's notifications newest-first.
func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipientID string) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recipient_id, type, subject, body, related_dossier_id, sent_at, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var results []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Subject, &n.Body,
			&n.RelatedDossierID, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		results = append(results, &n)
	}
	return results, rows.Err()
}

// Execer abstracts *sql.DB and *sql.Tx so notifications can be written
// inside the transaction of the mutation that triggered them.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertTx writes one notification row through the given executor.
func InsertTx(ctx context.Context, ex Execer, n *Notification) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, subject, body, related_dossier_id, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.RecipientID, n.Type, n.Subject, n.Body, n.RelatedDossierID, n.SentAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}
