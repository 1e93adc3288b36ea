//go:build integration

package dossier

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/notification"
)

// startPostgres runs a disposable Postgres with the full migration set
// applied.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sinistra_test"),
		tcpostgres.WithUsername("sinistra"),
		tcpostgres.WithPassword("sinistra"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.up.sql"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("failed to find migrations: %v", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			t.Fatalf("failed to apply %s: %v", path, err)
		}
	}
}

// insertUser satisfies the foreign keys on dossiers and history rows.
func insertUser(t *testing.T, db *sql.DB, role string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, 'x', $3, now())
	`, id, id+"@example.com", role)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return id
}

func TestPostgresRepository_StatusChange(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	repo := NewPostgresRepository(db, nil)
	victimeID := insertUser(t, db, "VICTIME")
	expertID := insertUser(t, db, "EXPERT")

	now := time.Now().UTC().Truncate(time.Microsecond)
	d := &Dossier{
		ID:           uuid.New().String(),
		Titre:        "Accident parking",
		DateAccident: now.Add(-24 * time.Hour),
		VictimeID:    victimeID,
		ExpertID:     &expertID,
		Statut:       StatusCree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	entry := audit.Entry{
		UserID:       victimeID,
		UserRole:     "VICTIME",
		Action:       audit.ActionCreateDossier,
		ResourceType: audit.ResourceDossier,
		ResourceID:   d.ID,
	}
	if err := repo.Insert(ctx, d, entry); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Statut != StatusCree || got.VictimeID != victimeID {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	mkCmd := func(from, to Status) StatusChange {
		return StatusChange{
			DossierID:     d.ID,
			NouveauStatut: to,
			History: &StatusHistory{
				ID:            uuid.New().String(),
				DossierID:     d.ID,
				ChangedByID:   expertID,
				AncienStatut:  from,
				NouveauStatut: to,
				CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
			},
			Audit: audit.Entry{
				UserID:       expertID,
				UserRole:     "EXPERT",
				Action:       audit.ActionChangeStatus,
				ResourceType: audit.ResourceDossier,
				ResourceID:   d.ID,
			},
			Notification: notification.StatusChanged(victimeID, d.ID, d.Titre, string(to)),
		}
	}

	updated, err := repo.ApplyStatusChange(ctx, mkCmd(StatusCree, StatusEnCours))
	if err != nil {
		t.Fatalf("ApplyStatusChange: %v", err)
	}
	if updated.Statut != StatusEnCours {
		t.Errorf("statut = %s, want %s", updated.Statut, StatusEnCours)
	}

	// A command built from the stale snapshot loses, and its transaction
	// leaves nothing behind.
	if _, err := repo.ApplyStatusChange(ctx, mkCmd(StatusCree, StatusRejete)); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale command error = %v, want ErrConflict", err)
	}

	history, err := repo.HistoryByDossier(ctx, d.ID)
	if err != nil {
		t.Fatalf("HistoryByDossier: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d rows, want 1", len(history))
	}
	if history[0].AncienStatut != StatusCree || history[0].NouveauStatut != StatusEnCours {
		t.Errorf("history transition %s -> %s", history[0].AncienStatut, history[0].NouveauStatut)
	}

	var notifCount int
	if err := db.QueryRow(`SELECT count(*) FROM notifications WHERE recipient_id = $1`, victimeID).Scan(&notifCount); err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if notifCount != 1 {
		t.Errorf("victim has %d notifications, want 1", notifCount)
	}

	var auditCount int
	if err := db.QueryRow(`SELECT count(*) FROM audit_logs WHERE resource_id = $1`, d.ID).Scan(&auditCount); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	// One for the insert, one for the successful transition.
	if auditCount != 2 {
		t.Errorf("dossier has %d audit rows, want 2", auditCount)
	}

	if _, err := repo.ApplyStatusChange(ctx, StatusChange{
		DossierID:     uuid.New().String(),
		NouveauStatut: StatusEnCours,
		History: &StatusHistory{
			ID: uuid.New().String(), DossierID: uuid.New().String(), ChangedByID: expertID,
			AncienStatut: StatusCree, NouveauStatut: StatusEnCours, CreatedAt: time.Now().UTC(),
		},
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing dossier error = %v, want ErrNotFound", err)
	}
}

func TestPostgresRepository_ListAndUpdate(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	repo := NewPostgresRepository(db, nil)
	victimeID := insertUser(t, db, "VICTIME")

	for i := 0; i < 2; i++ {
		now := time.Now().UTC().Truncate(time.Microsecond).Add(time.Duration(i) * time.Second)
		d := &Dossier{
			ID:           uuid.New().String(),
			Titre:        "Dossier",
			DateAccident: now,
			VictimeID:    victimeID,
			Statut:       StatusCree,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Insert(ctx, d, audit.Entry{
			Action: audit.ActionCreateDossier, ResourceType: audit.ResourceDossier, ResourceID: d.ID,
		}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	dossiers, err := repo.ListByVictime(ctx, victimeID)
	if err != nil {
		t.Fatalf("ListByVictime: %v", err)
	}
	if len(dossiers) != 2 {
		t.Fatalf("list has %d dossiers, want 2", len(dossiers))
	}
	if !dossiers[0].CreatedAt.After(dossiers[1].CreatedAt) {
		t.Error("list not newest-first")
	}

	desc := "Mise à jour"
	target := dossiers[0]
	target.DescriptionAccident = &desc
	target.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.Update(ctx, target, audit.Entry{
		Action: audit.ActionUpdateDossier, ResourceType: audit.ResourceDossier, ResourceID: target.ID,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DescriptionAccident == nil || *got.DescriptionAccident != desc {
		t.Errorf("description not persisted: %v", got.DescriptionAccident)
	}

	missing := *target
	missing.ID = uuid.New().String()
	if err := repo.Update(ctx, &missing, audit.Entry{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing dossier error = %v, want ErrNotFound", err)
	}
}
