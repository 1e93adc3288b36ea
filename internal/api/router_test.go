package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/auth"
	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/dossier"
	"github.com/onnwee/sinistra/internal/notification"
	"github.com/onnwee/sinistra/internal/user"
)

// testServer wires the full route table over in-memory repositories.
type testServer struct {
	handler http.Handler
	tokens  *auth.JWTService
	users   user.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	audits := audit.NewInMemoryRepository()
	notifs := notification.NewInMemoryRepository()
	users := user.NewInMemoryRepository()
	dossiers := dossier.NewInMemoryRepository(audits, notifs)
	documents := document.NewInMemoryRepository(audits, notifs)

	tokens := auth.NewJWTService("test-secret")

	dossierSvc := dossier.NewService(dossiers, documents, nil)
	cases := NewCaseSourceAdapter(dossiers)
	documentSvc := document.NewService(documents, cases)

	handler := NewRouter(RouterConfig{
		Auth:           NewAuthHandlers(users, tokens, audits),
		Dossiers:       NewDossierHandlers(dossierSvc),
		Status:         NewStatusHandlers(dossierSvc),
		Documents:      NewDocumentHandlers(documentSvc),
		Audits:         NewAuditHandlers(audits),
		Uploads:        NewUploadHandlers(nil, cases),
		Health:         NewHealthHandlers(HealthHandlersConfig{}),
		TokenValidator: tokens,
	})

	return &testServer{handler: handler, tokens: tokens, users: users}
}

// do performs a request with an optional bearer token and JSON body.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[ErrorResponse](t, rec)
	return resp.Error.Code
}

// register creates a victim account through the public endpoint and
// returns its access token and user ID.
func (ts *testServer) register(t *testing.T, email string) (token, userID string) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    email,
		"password": "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}
	resp := decodeJSON[TokenResponse](t, rec)
	return resp.AccessToken, resp.User.ID
}

// seedUser inserts an account directly into the repository and mints an
// access token for it. Registration only produces victims, so experts
// and admins enter tests through here.
func (ts *testServer) seedUser(t *testing.T, email string, role authz.Role) (token, userID string) {
	t.Helper()

	hash, err := user.HashPassword("longenough")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := ts.users.Insert(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	tok, err := ts.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		t.Fatalf("token for %s: %v", email, err)
	}
	return tok, u.ID
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "victime@example.com",
		"password": "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[TokenResponse](t, rec)
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("token pair missing")
	}
	// Role defaults to VICTIME.
	if string(resp.User.Role) != "VICTIME" {
		t.Errorf("role = %s, want VICTIME", resp.User.Role)
	}
	if resp.User.PasswordHash != "" {
		t.Error("password hash leaked in response")
	}

	// Duplicate email.
	rec = ts.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "Victime@Example.com",
		"password": "longenough",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeEmailTaken {
		t.Errorf("error code = %s, want %s", code, ErrCodeEmailTaken)
	}
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing email", map[string]any{"password": "longenough"}},
		{"invalid email", map[string]any{"email": "not-an-email", "password": "longenough"}},
		{"short password", map[string]any{"email": "a@example.com", "password": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/auth/register", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if code := errorCode(t, rec); code != ErrCodeValidation {
				t.Errorf("error code = %s, want %s", code, ErrCodeValidation)
			}
		})
	}
}

// Registration ignores any role supplied by the client. An account
// created with "role": "ADMIN" in the body is still a victim and gets
// no admin surface.
func TestRegister_RoleNotClientSettable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "intrus@example.com",
		"password": "longenough",
		"role":     "ADMIN",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[TokenResponse](t, rec)
	if string(resp.User.Role) != "VICTIME" {
		t.Fatalf("role = %s, want VICTIME", resp.User.Role)
	}

	rec = ts.do(t, http.MethodGet, "/logs", resp.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("logs status = %d, want 403", rec.Code)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "victime@example.com")

	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "victime@example.com",
		"password": "longenough",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	loginResp := decodeJSON[TokenResponse](t, rec)

	// Unknown email and wrong password produce the same response.
	for _, body := range []map[string]any{
		{"email": "victime@example.com", "password": "wrongwrong"},
		{"email": "nobody@example.com", "password": "longenough"},
	} {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("bad login status = %d, want 401", rec.Code)
		}
		resp := decodeJSON[ErrorResponse](t, rec)
		if resp.Error.Code != ErrCodeAuthFailed || resp.Error.Message != "Invalid email or password" {
			t.Errorf("bad login envelope = %+v", resp.Error)
		}
	}

	// Exchange the refresh token for a new pair.
	rec = ts.do(t, http.MethodPost, "/auth/refresh", "", map[string]any{
		"refresh_token": loginResp.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	refreshResp := decodeJSON[TokenResponse](t, rec)
	if refreshResp.AccessToken == "" {
		t.Error("refresh returned no access token")
	}

	// An access token is not accepted by the refresh endpoint.
	rec = ts.do(t, http.MethodPost, "/auth/refresh", "", map[string]any{
		"refresh_token": loginResp.AccessToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh with access token status = %d, want 401", rec.Code)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/dossiers"},
		{http.MethodPost, "/dossiers"},
		{http.MethodGet, "/dossiers/some-id"},
		{http.MethodPost, "/dossiers/some-id/status"},
		{http.MethodGet, "/dossiers/some-id/documents"},
		{http.MethodDelete, "/documents/some-id"},
		{http.MethodGet, "/logs"},
		{http.MethodPost, "/uploads/sign"},
	}

	for _, tt := range protected {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, "", nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestDossierLifecycle(t *testing.T) {
	ts := newTestServer(t)
	victimToken, _ := ts.register(t, "victime@example.com")
	adminToken, _ := ts.seedUser(t, "admin@example.com", authz.RoleAdmin)

	// Create.
	rec := ts.do(t, http.MethodPost, "/dossiers", victimToken, map[string]any{
		"titre":         "Accident parking",
		"date_accident": "2024-03-10T08:30:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeJSON[dossier.Dossier](t, rec)
	if created.Statut != dossier.StatusCree {
		t.Errorf("initial statut = %s, want %s", created.Statut, dossier.StatusCree)
	}
	dossierPath := "/dossiers/" + created.ID

	// Missing titre is rejected.
	rec = ts.do(t, http.MethodPost, "/dossiers", victimToken, map[string]any{
		"date_accident": "2024-03-10T08:30:00Z",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create without titre status = %d, want 400", rec.Code)
	}

	// List is scoped to the caller.
	rec = ts.do(t, http.MethodGet, "/dossiers", victimToken, nil)
	listResp := decodeJSON[struct {
		Dossiers []*dossier.Dossier `json:"dossiers"`
	}](t, rec)
	if len(listResp.Dossiers) != 1 {
		t.Errorf("victim list has %d dossiers, want 1", len(listResp.Dossiers))
	}
	rec = ts.do(t, http.MethodGet, "/dossiers", adminToken, nil)
	adminList := decodeJSON[struct {
		Dossiers []*dossier.Dossier `json:"dossiers"`
	}](t, rec)
	if len(adminList.Dossiers) != 0 {
		t.Errorf("admin list has %d dossiers, want 0", len(adminList.Dossiers))
	}

	// Partial update.
	rec = ts.do(t, http.MethodPatch, dossierPath, victimToken, map[string]any{
		"description_accident": "Collision au parking",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	patched := decodeJSON[dossier.Dossier](t, rec)
	if patched.Titre != "Accident parking" {
		t.Errorf("omitted titre changed to %q", patched.Titre)
	}

	// Status transition by an admin.
	rec = ts.do(t, http.MethodPost, dossierPath+"/status", adminToken, map[string]any{
		"nouveau_statut":    "EN_COURS",
		"raison_changement": "Prise en charge",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status change status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The victim may not transition their own dossier.
	rec = ts.do(t, http.MethodPost, dossierPath+"/status", victimToken, map[string]any{
		"nouveau_statut": "CLÔTURÉ",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("victim transition status = %d, want 403", rec.Code)
	}

	// Unknown status value.
	rec = ts.do(t, http.MethodPost, dossierPath+"/status", adminToken, map[string]any{
		"nouveau_statut": "ARCHIVÉ",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status change = %d, want 400", rec.Code)
	}

	// History is visible to the victim.
	rec = ts.do(t, http.MethodGet, dossierPath+"/status-history", victimToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	histResp := decodeJSON[struct {
		History []*dossier.StatusHistory `json:"status_history"`
	}](t, rec)
	if len(histResp.History) != 1 {
		t.Fatalf("history has %d rows, want 1", len(histResp.History))
	}
	if histResp.History[0].AncienStatut != dossier.StatusCree || histResp.History[0].NouveauStatut != dossier.StatusEnCours {
		t.Errorf("history transition %s -> %s", histResp.History[0].AncienStatut, histResp.History[0].NouveauStatut)
	}

	// Documents: register, list, delete.
	rec = ts.do(t, http.MethodPost, dossierPath+"/documents", victimToken, map[string]any{
		"file_name": "constat.pdf",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	doc := decodeJSON[document.Document](t, rec)
	if doc.LocatorKey != fmt.Sprintf("dossiers/%s/constat.pdf", created.ID) {
		t.Errorf("locator_key = %q", doc.LocatorKey)
	}

	rec = ts.do(t, http.MethodGet, dossierPath+"/documents", victimToken, nil)
	docsResp := decodeJSON[struct {
		Documents []*document.Document `json:"documents"`
	}](t, rec)
	if len(docsResp.Documents) != 1 {
		t.Fatalf("documents list has %d rows, want 1", len(docsResp.Documents))
	}

	rec = ts.do(t, http.MethodDelete, "/documents/"+doc.ID, victimToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, dossierPath+"/documents", victimToken, nil)
	docsResp = decodeJSON[struct {
		Documents []*document.Document `json:"documents"`
	}](t, rec)
	if len(docsResp.Documents) != 0 {
		t.Errorf("documents list has %d rows after delete, want 0", len(docsResp.Documents))
	}

	// The detail view nests documents and history.
	rec = ts.do(t, http.MethodGet, dossierPath, victimToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	detail := decodeJSON[struct {
		dossier.Dossier
		Documents []*document.Document     `json:"documents"`
		History   []*dossier.StatusHistory `json:"status_history"`
	}](t, rec)
	if detail.Statut != dossier.StatusEnCours {
		t.Errorf("detail statut = %s, want EN_COURS", detail.Statut)
	}
	if len(detail.History) != 1 {
		t.Errorf("detail history has %d rows, want 1", len(detail.History))
	}

	// Other users cannot see the dossier.
	otherToken, _ := ts.register(t, "autre@example.com")
	rec = ts.do(t, http.MethodGet, dossierPath, otherToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign victim get status = %d, want 403", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/dossiers/nonexistent", victimToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing dossier get status = %d, want 404", rec.Code)
	}
}

func TestAuditLogs_AdminOnly(t *testing.T) {
	ts := newTestServer(t)
	victimToken, _ := ts.register(t, "victime@example.com")
	ts.register(t, "autre@example.com")
	adminToken, _ := ts.seedUser(t, "admin@example.com", authz.RoleAdmin)

	rec := ts.do(t, http.MethodGet, "/logs", victimToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("victim logs status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeForbidden {
		t.Errorf("error code = %s, want %s", code, ErrCodeForbidden)
	}

	rec = ts.do(t, http.MethodGet, "/logs", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin logs status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[AuditLogsResponse](t, rec)
	// Two REGISTER rows so far, newest-first.
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if len(resp.Logs) != 2 || resp.Logs[0].Action != audit.ActionRegister {
		t.Errorf("logs = %+v", resp.Logs)
	}
	if resp.Limit != DefaultAuditLimit || resp.Offset != 0 {
		t.Errorf("pagination = %d/%d", resp.Limit, resp.Offset)
	}

	// Pagination validation.
	rec = ts.do(t, http.MethodGet, "/logs?limit=abc", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/logs?offset=-1", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad offset status = %d, want 400", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/logs?limit=1&offset=1", adminToken, nil)
	resp = decodeJSON[AuditLogsResponse](t, rec)
	if len(resp.Logs) != 1 || resp.Total != 2 {
		t.Errorf("paginated logs = %d rows, total %d", len(resp.Logs), resp.Total)
	}
}

func TestSignUpload_StorageUnconfigured(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "victime@example.com")

	rec := ts.do(t, http.MethodPost, "/uploads/sign", token, map[string]any{
		"dossier_id":   "some-id",
		"file_name":    "a.pdf",
		"content_type": "application/pdf",
		"size_bytes":   1000,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when storage is unconfigured", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	resp := decodeJSON[HealthResponse](t, rec)
	if resp.Status != "healthy" {
		t.Errorf("status = %s, want healthy", resp.Status)
	}

	// With no checkers configured, readiness is green.
	rec = ts.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}
