package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append records one audit row.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) (*AuditLog, error) {
	return InsertTx(ctx, r.db, entry)
}

// List returns audit rows newest-first with the total count.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*AuditLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, user_role, action, resource_type, resource_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var results []*AuditLog
	for rows.Next() {
		var log AuditLog
		var userID, userRole sql.NullString
		var details []byte
		if err := rows.Scan(&log.ID, &userID, &userRole, &log.Action,
			&log.ResourceType, &log.ResourceID, &details, &log.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.UserID = userID.String
		log.UserRole = userRole.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &log.Details); err != nil {
				return nil, 0, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		results = append(results, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// Execer abstracts *sql.DB and *sql.Tx so audit rows can be written
// standalone or inside a caller-owned transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertTx writes one audit row through the given executor. Repositories
// that pair an entity write with its audit row call this inside their own
// transaction so both land or neither does.
func InsertTx(ctx context.Context, ex Execer, entry Entry) (*AuditLog, error) {
	log := &AuditLog{
		ID:           uuid.New().String(),
		UserID:       entry.UserID,
		UserRole:     entry.UserRole,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		CreatedAt:    time.Now().UTC(),
	}

	var details any
	if log.Details != nil {
		encoded, err := json.Marshal(log.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = encoded
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, user_role, action, resource_type, resource_id, details, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, log.ID, log.UserID, log.UserRole, log.Action, log.ResourceType, log.ResourceID, details, log.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit log: %w", err)
	}

	return log, nil
}
