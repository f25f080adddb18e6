package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"deepscout/internal/database"
	"deepscout/internal/services"
	"deepscout/pkg/auth"
	"deepscout/pkg/flowstore"
	"deepscout/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

func setupTestApp(t *testing.T) (*fiber.App, *database.DB) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test_handlers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	app := fiber.New()
	// Stand-in for the auth middleware; handlers only read user_id
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "test-user")
		return c.Next()
	})
	return app, db
}

func newTestJWTAuth() (*auth.JWTAuth, error) {
	return auth.NewJWTAuth("test-secret-key-0123456789abcdef", 15*time.Minute, 7*24*time.Hour)
}

// TestHealthHandler tests the health check endpoint
func TestHealthHandler(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewHealthHandler(db)
	app.Get("/health", handler.Handle)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
}

// TestSettingsGetCreatesDefaults tests first-read auto-creation
func TestSettingsGetCreatesDefaults(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Get("/api/settings", handler.Get)

	req := httptest.NewRequest("GET", "/api/settings", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Settings settings.Document `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Settings.Flows) != 1 || !body.Settings.Flows[0].IsDefault {
		t.Errorf("Expected a single default flow, got %+v", body.Settings.Flows)
	}
}

// TestSettingsUpdateRoundTrip tests storing and re-reading a document
func TestSettingsUpdateRoundTrip(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Get("/api/settings", handler.Get)
	app.Post("/api/settings", handler.Update)

	doc := settings.NewDefaultDocument()
	doc.Flows[0].Name = "My Research Flow"
	payload, _ := json.Marshal(map[string]any{"settings": doc})

	req := httptest.NewRequest("POST", "/api/settings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, raw)
	}

	req = httptest.NewRequest("GET", "/api/settings", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	var body struct {
		Settings settings.Document `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Settings.Flows[0].Name != "My Research Flow" {
		t.Errorf("Expected stored flow name, got %q", body.Settings.Flows[0].Name)
	}
}

// TestSettingsUpdateAcceptsBareDocument tests that the POST body is the
// document itself, no wrapper required
func TestSettingsUpdateAcceptsBareDocument(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Post("/api/settings", handler.Update)

	doc := settings.NewDefaultDocument()
	doc.Flows[0].Name = "Bare Body"
	payload, _ := json.Marshal(doc)

	req := httptest.NewRequest("POST", "/api/settings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, raw)
	}

	var body struct {
		Settings settings.Document `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Settings.Flows[0].Name != "Bare Body" {
		t.Errorf("Expected stored flow name, got %q", body.Settings.Flows[0].Name)
	}
}

// TestSettingsUpdateRejectsInvalidJSON tests body validation
func TestSettingsUpdateRejectsInvalidJSON(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Post("/api/settings", handler.Update)

	for _, body := range []string{"", "not json", `[1,2,3]`} {
		req := httptest.NewRequest("POST", "/api/settings", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("Expected status 400 for body %q, got %d", body, resp.StatusCode)
		}
	}
}

// TestSettingsReset tests the factory reset endpoint
func TestSettingsReset(t *testing.T) {
	app, db := setupTestApp(t)

	svc := services.NewSettingsService(db, time.Minute, nil)
	handler := NewSettingsHandler(svc, nil)
	app.Post("/api/settings", handler.Update)
	app.Post("/api/settings/reset", handler.Reset)

	doc := settings.NewDefaultDocument()
	doc.Flows[0].Name = "Custom"
	payload, _ := json.Marshal(map[string]any{"settings": doc})
	req := httptest.NewRequest("POST", "/api/settings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}

	req = httptest.NewRequest("POST", "/api/settings/reset", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Settings settings.Document `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Settings.Flows[0].Name == "Custom" {
		t.Errorf("Reset kept the customized flow")
	}
}

// TestSettingsClientServerRoundTrip drives the flowstore client against this
// server over a real listener: hydrate, edit, debounced save, re-hydrate
func TestSettingsClientServerRoundTrip(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Get("/api/settings", handler.Get)
	app.Post("/api/settings", handler.Update)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to open listener: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	gateway := flowstore.NewGateway("http://"+ln.Addr().String(), nil)
	store := flowstore.New(gateway, flowstore.WithSaveInterval(10*time.Millisecond))
	defer store.Close()

	ctx := context.Background()
	if err := store.Hydrate(ctx, "test-user"); err != nil {
		t.Fatalf("Hydrate against own server failed: %v", err)
	}
	doc := store.Snapshot()
	if doc == nil || len(doc.Flows) != 1 {
		t.Fatalf("Expected the server-created default document, got %+v", doc)
	}

	created := store.CreateFlow("Survey", "")
	store.FlushNow()
	if err := store.SaveError(); err != nil {
		t.Fatalf("Save against own server failed: %v", err)
	}
	if store.Dirty() {
		t.Error("Store still dirty after a successful flush")
	}

	// A fresh hydrate sees the saved edit.
	if err := store.Hydrate(ctx, "test-user"); err != nil {
		t.Fatalf("Second hydrate failed: %v", err)
	}
	doc = store.Snapshot()
	if len(doc.Flows) != 2 {
		t.Fatalf("Expected 2 flows after save, got %d", len(doc.Flows))
	}
	if doc.FlowByID(created.ID) == nil {
		t.Errorf("Created flow %q did not survive the round trip", created.ID)
	}
}

// TestChatConfigProjection tests the chat pipeline projection endpoint
func TestChatConfigProjection(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewSettingsHandler(services.NewSettingsService(db, time.Minute, nil), nil)
	app.Get("/api/settings/chat-config", handler.ChatConfig)

	req := httptest.NewRequest("GET", "/api/settings/chat-config", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var cfg settings.ChatConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if cfg.ReportStyle != settings.ReportStyleAcademic {
		t.Errorf("Expected academic report style, got %q", cfg.ReportStyle)
	}
}

// TestModelParamsEndpoints tests the model parameters CRUD surface
func TestModelParamsEndpoints(t *testing.T) {
	app, db := setupTestApp(t)

	handler := NewModelParamsHandler(services.NewModelParamsService(db))
	app.Get("/api/model-parameters", handler.List)
	app.Get("/api/model-parameters/:model_id", handler.Get)
	app.Put("/api/model-parameters/:model_id", handler.Update)
	app.Post("/api/model-parameters/:model_id", handler.Update)
	app.Delete("/api/model-parameters/:model_id", handler.Delete)

	// Unknown model is a 404
	req := httptest.NewRequest("GET", "/api/model-parameters/gpt-4o", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	// Create with a partial body
	req = httptest.NewRequest("PUT", "/api/model-parameters/gpt-4o", bytes.NewReader([]byte(`{"temperature":0.1}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, raw)
	}

	var params struct {
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if params.Temperature != 0.1 {
		t.Errorf("Expected temperature 0.1, got %v", params.Temperature)
	}
	if params.MaxTokens != 2048 {
		t.Errorf("Expected default max tokens 2048, got %d", params.MaxTokens)
	}

	// POST updates the same row (older clients use POST instead of PUT)
	req = httptest.NewRequest("POST", "/api/model-parameters/gpt-4o", bytes.NewReader([]byte(`{"top_p":0.5}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200 via POST, got %d", resp.StatusCode)
	}
	var posted struct {
		Temperature float64 `json:"temperature"`
		TopP        float64 `json:"top_p"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if posted.TopP != 0.5 || posted.Temperature != 0.1 {
		t.Errorf("POST update mismatch: %+v", posted)
	}

	// List returns the one row
	req = httptest.NewRequest("GET", "/api/model-parameters", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	var list struct {
		ModelParameters []json.RawMessage `json:"model_parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list.ModelParameters) != 1 {
		t.Errorf("Expected 1 configured model, got %d", len(list.ModelParameters))
	}

	// Delete, then the row is gone
	req = httptest.NewRequest("DELETE", "/api/model-parameters/gpt-4o", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("DELETE", "/api/model-parameters/gpt-4o", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404 on double delete, got %d", resp.StatusCode)
	}
}

// TestMCPMetadataRejectsUnknownTransport tests probe input validation
func TestMCPMetadataRejectsUnknownTransport(t *testing.T) {
	app, _ := setupTestApp(t)

	handler := NewMCPHandler(services.NewMCPService())
	app.Post("/api/mcp/server/metadata", handler.ServerMetadata)

	req := httptest.NewRequest("POST", "/api/mcp/server/metadata", bytes.NewReader([]byte(`{"transport":"carrier_pigeon"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestAuthRegisterAndLogin tests the local account flow end to end
func TestAuthRegisterAndLogin(t *testing.T) {
	app, db := setupTestApp(t)

	jwtAuth, err := newTestJWTAuth()
	if err != nil {
		t.Fatalf("Failed to create jwt auth: %v", err)
	}
	handler := NewAuthHandler(jwtAuth, services.NewUserService(db))
	app.Post("/api/auth/register", handler.Register)
	app.Post("/api/auth/login", handler.Login)
	app.Post("/api/auth/refresh", handler.Refresh)

	body := []byte(`{"email":"Alex@Example.com","password":"hunter2hunter2"}`)
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, raw)
	}

	// Duplicate email is a conflict
	req = httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("Expected status 409 on duplicate registration, got %d", resp.StatusCode)
	}

	// Login is case-insensitive on email
	req = httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader([]byte(`{"email":"alex@example.com","password":"hunter2hunter2"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if authResp.AccessToken == "" || authResp.RefreshToken == "" {
		t.Fatal("Expected both tokens in the login response")
	}

	// Refresh with the issued token
	refreshBody, _ := json.Marshal(map[string]string{"refresh_token": authResp.RefreshToken})
	req = httptest.NewRequest("POST", "/api/auth/refresh", bytes.NewReader(refreshBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, raw)
	}

	// Wrong password is rejected
	req = httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader([]byte(`{"email":"alex@example.com","password":"wrong-password"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
}
