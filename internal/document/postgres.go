package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/notification"
)

// PostgresRepository implements Repository using PostgreSQL with
// transactional side-effect writes.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const documentColumns = `id, dossier_id, uploaded_by_id, file_name, file_type,
	file_size_bytes, locator_key, locator_url, deleted_at, created_at`

// Insert stores a new document with its side effects in one transaction.
func (r *PostgresRepository) Insert(ctx context.Context, d *Document, entry audit.Entry, notif *notification.Notification) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, d.ID, d.DossierID, d.UploadedByID, d.FileName, d.FileType,
			d.FileSizeBytes, d.LocatorKey, d.LocatorURL, d.DeletedAt, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		if _, err := audit.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		if notif != nil {
			return notification.InsertTx(ctx, tx, notif)
		}
		return nil
	})
}

// GetByID retrieves a document, soft-deleted ones included.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1
	`, id).Scan(&d.ID, &d.DossierID, &d.UploadedByID, &d.FileName, &d.FileType,
		&d.FileSizeBytes, &d.LocatorKey, &d.LocatorURL, &d.DeletedAt, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &d, nil
}

// ListByDossier returns live documents newest-first.
func (r *PostgresRepository) ListByDossier(ctx context.Context, dossierID string) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE dossier_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, dossierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.DossierID, &d.UploadedByID, &d.FileName, &d.FileType,
			&d.FileSizeBytes, &d.LocatorKey, &d.LocatorURL, &d.DeletedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

// SoftDelete marks a document deleted and writes the audit row in one
// transaction.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time, entry audit.Entry) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET deleted_at = $2 WHERE id = $1
		`, id, deletedAt)
		if err != nil {
			return fmt.Errorf("failed to soft-delete document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = audit.InsertTx(ctx, tx, entry)
		return err
	})
}

// inTx runs fn inside a read-committed transaction with rollback on error.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
