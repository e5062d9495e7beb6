package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"palletrack/frontend/login"
	"palletrack/frontend/settings"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/cache"
	"palletrack/infrastructure/rbac"
	"palletrack/infrastructure/sqlite"
	"palletrack/infrastructure/vision"
)

type integrationEnv struct {
	server *httptest.Server
	db     *sqlite.DB
}

func setupIntegrationServer(t *testing.T) (*integrationEnv, *http.Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server-integration.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := login.UpsertUserPasswordHash(context.Background(), db, "admin", "admin", "Admin123!Palletrack"); err != nil {
		t.Fatalf("seed admin user: %v", err)
	}
	if err := login.UpsertUserPasswordHash(context.Background(), db, "operator1", "operator", "Operator123!Palletrack"); err != nil {
		t.Fatalf("seed operator user: %v", err)
	}
	if err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO contracts (id, code, name, client_name, status, created_at, updated_at)
VALUES ('it-contract', 'it-default', 'Integration Default', 'Test Client', 'active', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
INSERT INTO locations (id, code, name, kind)
VALUES ('loc-a', 'WH-A', 'Warehouse A', 'origin'),
       ('loc-b', 'WH-B', 'Warehouse B', 'destination');
INSERT INTO qr_tags (id, code, status, created_at, updated_at)
VALUES ('tag-1', 'PLT-0001', 'free', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP),
       ('tag-2', 'PLT-0002', 'free', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
`)
		return err
	}); err != nil {
		t.Fatalf("seed base data: %v", err)
	}

	sessionCache := cache.NewUserSessionCache()
	userCache := cache.NewUserCache()
	rbacCache := cache.NewRbacRolesCache()
	rbacSvc := rbac.New(rbacCache)
	auditSvc := audit.NewService()
	settingsStore, err := settings.NewStore(context.Background(), db, 5, 65)
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}

	s := NewServer("127.0.0.1:0", db, sessionCache, userCache, rbacSvc, rbacCache, auditSvc, settingsStore, vision.Disabled{})
	ts := httptest.NewServer(s.router)
	env := &integrationEnv{server: ts, db: db}
	t.Cleanup(func() {
		env.server.Close()
		_ = env.db.Close()
	})

	return env, newHTTPClient(t)
}

func newHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, baseURL, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func postForm(t *testing.T, client *http.Client, baseURL, path string, data url.Values) *http.Response {
	t.Helper()
	if data == nil {
		data = url.Values{}
	}
	if token := csrfToken(t, client, baseURL); token != "" {
		data.Set("_csrf", token)
	}
	resp, err := client.PostForm(baseURL+path, data)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func postJSON(t *testing.T, client *http.Client, baseURL, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload for %s: %v", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request for %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := csrfToken(t, client, baseURL); token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "X-CSRF-Token" {
			return c.Value
		}
	}
	return ""
}

func loginAs(t *testing.T, client *http.Client, baseURL, username, password string) {
	t.Helper()

	resp := get(t, client, baseURL, "/login")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected login page 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = postForm(t, client, baseURL, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected login 303, got %d", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); !strings.Contains(location, "/depot/pallets") {
		t.Fatalf("unexpected login redirect: %s", location)
	}
	_ = resp.Body.Close()
}

func decodeJSONBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func palletStatus(t *testing.T, db *sqlite.DB, palletID string) string {
	t.Helper()
	var status string
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM pallets WHERE id = ?`, palletID).Scan(ctx, &status)
	})
	if err != nil {
		t.Fatalf("load pallet status: %v", err)
	}
	return status
}

func TestUnauthenticatedDepotRequestRedirectsToLogin(t *testing.T) {
	env, client := setupIntegrationServer(t)

	resp := get(t, client, env.server.URL, "/depot/pallets")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %s", loc)
	}
}

func TestCSRFPostWithoutTokenRejected(t *testing.T) {
	env, _ := setupIntegrationServer(t)

	// No GET first: no CSRF token available in cookie or form.
	client := newHTTPClient(t)
	resp, err := client.PostForm(env.server.URL+"/login", url.Values{
		"username": {"admin"},
		"password": {"Admin123!Palletrack"},
	})
	if err != nil {
		t.Fatalf("POST /login failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for missing csrf, got %d", resp.StatusCode)
	}
}

func TestOperatorCannotReachAdminRoutes(t *testing.T) {
	env, client := setupIntegrationServer(t)
	loginAs(t, client, env.server.URL, "operator1", "Operator123!Palletrack")

	resp := get(t, client, env.server.URL, "/depot/admin/users")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected rbac redirect 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %s", loc)
	}
}

func TestPalletLifecycleOverHTTP(t *testing.T) {
	env, client := setupIntegrationServer(t)
	loginAs(t, client, env.server.URL, "admin", "Admin123!Palletrack")

	// Prime the session's active contract.
	_ = get(t, client, env.server.URL, "/depot/contracts").Body.Close()

	resp := postJSON(t, client, env.server.URL, "/depot/api/pallets", map[string]any{
		"tag_code":                "PLT-0001",
		"origin_location_id":      "loc-a",
		"destination_location_id": "loc-b",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected pallet create 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string
	}
	decodeJSONBody(t, resp, &created)
	if created.ID == "" {
		t.Fatalf("expected pallet id in response")
	}

	resp = postJSON(t, client, env.server.URL, "/depot/api/pallets/"+created.ID+"/seal", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected seal 200, got %d", resp.StatusCode)
	}
	if got := palletStatus(t, env.db, created.ID); got != "sealed" {
		t.Fatalf("expected sealed, got %s", got)
	}

	// Sealing twice must miss the status guard.
	resp = postJSON(t, client, env.server.URL, "/depot/api/pallets/"+created.ID+"/seal", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected second seal 409, got %d", resp.StatusCode)
	}

	// The linked tag cannot back a second pallet.
	resp = postJSON(t, client, env.server.URL, "/depot/api/pallets", map[string]any{
		"tag_code":           "PLT-0001",
		"origin_location_id": "loc-a",
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected duplicate tag 409, got %d", resp.StatusCode)
	}
}

func TestManifestAndReceiptFlowOverHTTP(t *testing.T) {
	env, client := setupIntegrationServer(t)
	loginAs(t, client, env.server.URL, "admin", "Admin123!Palletrack")
	_ = get(t, client, env.server.URL, "/depot/contracts").Body.Close()

	resp := postJSON(t, client, env.server.URL, "/depot/api/pallets", map[string]any{
		"tag_code":                "PLT-0002",
		"origin_location_id":      "loc-a",
		"destination_location_id": "loc-b",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected pallet create 201, got %d", resp.StatusCode)
	}
	var pallet struct {
		ID string
	}
	decodeJSONBody(t, resp, &pallet)

	resp = postJSON(t, client, env.server.URL, "/depot/api/pallets/"+pallet.ID+"/seal", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected seal 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, client, env.server.URL, "/depot/api/manifests", map[string]any{
		"origin_location_id":      "loc-a",
		"destination_location_id": "loc-b",
		"driver_name":             "R. Haulage",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected manifest create 201, got %d", resp.StatusCode)
	}
	var manifest struct {
		ID             string
		ManifestNumber string
	}
	decodeJSONBody(t, resp, &manifest)
	if !strings.HasPrefix(manifest.ManifestNumber, "MAN-") {
		t.Fatalf("unexpected manifest number %q", manifest.ManifestNumber)
	}

	resp = postJSON(t, client, env.server.URL, "/depot/api/manifests/"+manifest.ID+"/pallets", map[string]any{
		"pallet_id": pallet.ID,
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected attach 200, got %d", resp.StatusCode)
	}

	for _, action := range []string{"load", "depart"} {
		resp = postJSON(t, client, env.server.URL, "/depot/api/manifests/"+manifest.ID+"/"+action, nil)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected %s 200, got %d", action, resp.StatusCode)
		}
	}
	if got := palletStatus(t, env.db, pallet.ID); got != "in_transit" {
		t.Fatalf("expected in_transit after load, got %s", got)
	}

	resp = postJSON(t, client, env.server.URL, "/depot/api/receipts", map[string]any{
		"manifest_id": manifest.ID,
		"location_id": "loc-b",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected receipt create 201, got %d", resp.StatusCode)
	}
	var receipt struct {
		Receipt struct {
			ID string
		} `json:"receipt"`
		ManifestDelivered bool     `json:"manifest_delivered"`
		Finalized         []string `json:"finalized"`
	}
	decodeJSONBody(t, resp, &receipt)
	if !receipt.ManifestDelivered {
		t.Fatalf("expected manifest delivered")
	}
	if len(receipt.Finalized) != 1 || receipt.Finalized[0] != pallet.ID {
		t.Fatalf("expected pallet finalized, got %+v", receipt.Finalized)
	}
	if got := palletStatus(t, env.db, pallet.ID); got != "finalized" {
		t.Fatalf("expected finalized, got %s", got)
	}

	// Finalizing frees the tag for the next trip.
	var tagStatus string
	if err := env.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM qr_tags WHERE code = 'PLT-0002'`).Scan(ctx, &tagStatus)
	}); err != nil {
		t.Fatalf("load tag status: %v", err)
	}
	if tagStatus != "free" {
		t.Fatalf("expected tag freed, got %s", tagStatus)
	}

	resp = postJSON(t, client, env.server.URL, "/depot/api/comparisons", map[string]any{
		"receipt_id": receipt.Receipt.ID,
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected comparison generate 201, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env, client := setupIntegrationServer(t)

	resp := get(t, client, env.server.URL, "/health")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestExportRunRecorded(t *testing.T) {
	env, client := setupIntegrationServer(t)
	loginAs(t, client, env.server.URL, "admin", "Admin123!Palletrack")
	_ = get(t, client, env.server.URL, "/depot/contracts").Body.Close()

	resp := get(t, client, env.server.URL, "/depot/api/exports/pallet-status.csv")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected export 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}

	var runs int64
	if err := env.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM export_runs WHERE export_type = 'pallet_status_csv'`).Scan(ctx, &runs)
	}); err != nil {
		t.Fatalf("count export runs: %v", err)
	}
	if runs != 1 {
		t.Fatalf("expected 1 export run, got %d", runs)
	}
}
