package dossier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/notification"
)

// PostgresRepository implements Repository using PostgreSQL with full
// transaction support for multi-write commands.
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

const dossierColumns = `id, titre, date_accident, lieu_accident, description_accident,
	victime_id, expert_id, statut, created_at, updated_at`

// Insert stores a new dossier together with its audit row in one
// transaction.
func (r *PostgresRepository) Insert(ctx context.Context, d *Dossier, entry audit.Entry) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dossiers (`+dossierColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, d.ID, d.Titre, d.DateAccident, d.LieuAccident, d.DescriptionAccident,
			d.VictimeID, d.ExpertID, string(d.Statut), d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert dossier: %w", err)
		}
		_, err = audit.InsertTx(ctx, tx, entry)
		return err
	})
}

// GetByID retrieves a dossier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Dossier, error) {
	d, err := scanDossier(r.db.QueryRowContext(ctx, `
		SELECT `+dossierColumns+` FROM dossiers WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListByVictime returns the dossiers owned by a victim, newest-first.
func (r *PostgresRepository) ListByVictime(ctx context.Context, victimeID string) ([]*Dossier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dossierColumns+` FROM dossiers
		WHERE victime_id = $1
		ORDER BY created_at DESC
	`, victimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dossiers: %w", err)
	}
	defer rows.Close()

	var results []*Dossier
	for rows.Next() {
		d, err := scanDossier(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Update overwrites the mutable fields together with the audit row.
func (r *PostgresRepository) Update(ctx context.Context, d *Dossier, entry audit.Entry) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE dossiers
			SET titre = $2, description_accident = $3, updated_at = $4
			WHERE id = $1
		`, d.ID, d.Titre, d.DescriptionAccident, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update dossier: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = audit.InsertTx(ctx, tx, entry)
		return err
	})
}

// ApplyStatusChange executes the four-step transition in one transaction:
// statut update, history row, audit row, notification. The statut update
// is guarded on the captured ancien statut so the history chain stays
// gapless under concurrent transitions.
func (r *PostgresRepository) ApplyStatusChange(ctx context.Context, cmd StatusChange) (*Dossier, error) {
	var updated *Dossier
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE dossiers
			SET statut = $2, updated_at = $3
			WHERE id = $1 AND statut = $4
		`, cmd.DossierID, string(cmd.NouveauStatut), cmd.History.CreatedAt, string(cmd.History.AncienStatut))
		if err != nil {
			return fmt.Errorf("failed to update statut: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Either the dossier is gone or another transition won.
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM dossiers WHERE id = $1)`, cmd.DossierID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrConflict
		}

		h := cmd.History
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dossier_status_history
				(id, dossier_id, changed_by_id, ancien_statut, nouveau_statut, raison_changement, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, h.ID, h.DossierID, h.ChangedByID, string(h.AncienStatut), string(h.NouveauStatut), h.RaisonChangement, h.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert status history: %w", err)
		}

		if _, err := audit.InsertTx(ctx, tx, cmd.Audit); err != nil {
			return err
		}
		if err := notification.InsertTx(ctx, tx, cmd.Notification); err != nil {
			return err
		}

		updated, err = scanDossier(tx.QueryRowContext(ctx, `
			SELECT `+dossierColumns+` FROM dossiers WHERE id = $1
		`, cmd.DossierID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// HistoryByDossier returns a dossier's status history newest-first.
func (r *PostgresRepository) HistoryByDossier(ctx context.Context, dossierID string) ([]*StatusHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dossier_id, changed_by_id, ancien_statut, nouveau_statut, raison_changement, created_at
		FROM dossier_status_history
		WHERE dossier_id = $1
		ORDER BY created_at DESC
	`, dossierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var results []*StatusHistory
	for rows.Next() {
		var h StatusHistory
		var ancien, nouveau string
		if err := rows.Scan(&h.ID, &h.DossierID, &h.ChangedByID, &ancien, &nouveau,
			&h.RaisonChangement, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		h.AncienStatut = Status(ancien)
		h.NouveauStatut = Status(nouveau)
		results = append(results, &h)
	}
	return results, rows.Err()
}

// inTx runs fn inside a read-committed transaction with rollback on error.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// No-op after a successful commit.
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

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDossier(row rowScanner) (*Dossier, error) {
	var d Dossier
	var statut string
	err := row.Scan(&d.ID, &d.Titre, &d.DateAccident, &d.LieuAccident, &d.DescriptionAccident,
		&d.VictimeID, &d.ExpertID, &statut, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dossier: %w", err)
	}
	d.Statut = Status(statut)
	return &d, nil
}
