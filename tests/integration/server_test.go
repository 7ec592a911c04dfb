package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/config"
	"github.com/mikepea/snip/pkg/snip/database"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/server"
	"github.com/mikepea/snip/pkg/snip/stats"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:       "http://snip.test",
		JWTSecret:     "integration-secret",
		TokenTTL:      time.Hour,
		CodeLength:    7,
		CodeAttempts:  5,
		StoreTimeout:  5 * time.Second,
		EnforceExpiry: true,
		StatsTTL:      time.Minute,
		SweepTimeout:  time.Minute,
		TaskWorkers:   1,
		TaskBuffer:    4,
	}
}

// setupFullServer builds the same router cmd/snip-server serves, with the
// task workers running.
func setupFullServer(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	srv, err := server.New(cfg, db, stats.NewMemoryBackend(cfg.StatsTTL))
	if err != nil {
		t.Fatalf("Failed to build server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv.Router
}

func doRequest(router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func registerUser(t *testing.T, router *gin.Engine, username string) string {
	resp := doRequest(router, "POST", "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to register %s: %d %s", username, resp.Code, resp.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	return body.Token
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(t, db)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestHealthEndpoint verifies the health endpoint responds correctly
func TestHealthEndpoint(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	resp := doRequest(router, "GET", "/health", nil, "")
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"PUT", "/links/abc1234?new_code=xyz"},
		{"DELETE", "/links/abc1234"},
		{"GET", "/links/export"},
		{"POST", "/links/import"},
		{"GET", "/auth/me"},
		{"GET", "/auth/api-keys"},
		{"GET", "/admin/stats"},
		{"GET", "/admin/archive"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doRequest(router, endpoint.method, endpoint.path, nil, "")
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"POST", "/auth/register", http.StatusBadRequest}, // Bad request (no body), but not 401
		{"POST", "/auth/login", http.StatusBadRequest},    // Bad request (no body), but not 401
		{"POST", "/links/shorten", http.StatusBadRequest},
		{"GET", "/links/nonexistent", http.StatusNotFound}, // 404 for missing link, but not 401
		{"GET", "/links/nonexistent/stats", http.StatusNotFound},
		{"GET", "/links/search/https://nowhere.example", http.StatusNotFound},
		{"GET", "/links/task-status/unknown", http.StatusNotFound},
		{"POST", "/links/delete-unused-links", http.StatusBadRequest},
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doRequest(router, endpoint.method, endpoint.path, nil, "")
			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestLinkLifecycle walks a link from creation through redirect, stats,
// rename and delete.
func TestLinkLifecycle(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))
	token := registerUser(t, router, "alice")

	resp := doRequest(router, "POST", "/links/shorten", map[string]string{
		"original_url": "example.com/docs",
		"custom_alias": "docs",
	}, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ShortCode string `json:"short_code"`
		ShortURL  string `json:"short_url"`
	}
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.ShortCode != "docs" {
		t.Errorf("Expected short code docs, got %s", created.ShortCode)
	}
	if created.ShortURL != "http://snip.test/links/docs" {
		t.Errorf("Unexpected short URL %s", created.ShortURL)
	}

	// Same alias again is rejected
	resp = doRequest(router, "POST", "/links/shorten", map[string]string{
		"original_url": "https://other.example",
		"custom_alias": "docs",
	}, "")
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for taken alias, got %d", resp.Code)
	}

	for i := 0; i < 2; i++ {
		resp = doRequest(router, "GET", "/links/docs", nil, "")
		if resp.Code != http.StatusTemporaryRedirect {
			t.Fatalf("Expected status 307, got %d", resp.Code)
		}
		if loc := resp.Header().Get("Location"); loc != "https://example.com/docs" {
			t.Errorf("Expected Location https://example.com/docs, got %s", loc)
		}
	}

	resp = doRequest(router, "GET", "/links/docs/stats", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var snap stats.Snapshot
	json.Unmarshal(resp.Body.Bytes(), &snap)
	if snap.Clicks != 2 {
		t.Errorf("Expected 2 clicks, got %d", snap.Clicks)
	}

	// Another user may not manage alice's link
	mallory := registerUser(t, router, "mallory")
	resp = doRequest(router, "DELETE", "/links/docs", nil, mallory)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}

	resp = doRequest(router, "PUT", "/links/docs?new_code=manual", nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on rename, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := doRequest(router, "GET", "/links/docs", nil, ""); resp.Code != http.StatusNotFound {
		t.Errorf("Expected old code to be gone, got %d", resp.Code)
	}
	if resp := doRequest(router, "GET", "/links/manual", nil, ""); resp.Code != http.StatusTemporaryRedirect {
		t.Errorf("Expected new code to redirect, got %d", resp.Code)
	}

	resp = doRequest(router, "GET", "/links/search/example.com/docs", nil, "")
	if resp.Code != http.StatusOK {
		t.Errorf("Expected search hit, got %d", resp.Code)
	}

	resp = doRequest(router, "DELETE", "/links/manual", nil, token)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}
	if resp := doRequest(router, "GET", "/links/manual", nil, ""); resp.Code != http.StatusNotFound {
		t.Errorf("Expected deleted link to 404, got %d", resp.Code)
	}

	resp = doRequest(router, "GET", "/metrics", nil, "")
	if !strings.Contains(resp.Body.String(), `snip_redirects_total{result="found"}`) {
		t.Error("Expected redirect counter in metrics output")
	}
}

// TestSweepThroughAPI submits a sweep and polls it to completion.
func TestSweepThroughAPI(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	for _, code := range []string{"clicked", "ignored"} {
		resp := doRequest(router, "POST", "/links/shorten", map[string]string{
			"original_url": "https://example.com/" + code,
			"custom_alias": code,
		}, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("Failed to shorten %s: %d", code, resp.Code)
		}
	}
	doRequest(router, "GET", "/links/clicked", nil, "")

	resp := doRequest(router, "POST", "/links/delete-unused-links?days=0", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var task struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	json.Unmarshal(resp.Body.Bytes(), &task)
	if task.TaskID == "" {
		t.Fatal("Expected a task ID")
	}

	deadline := time.Now().Add(5 * time.Second)
	for task.Status != string(models.TaskDone) {
		if time.Now().After(deadline) {
			t.Fatalf("Task did not finish, last status %s", task.Status)
		}
		time.Sleep(20 * time.Millisecond)
		resp = doRequest(router, "GET", "/links/task-status/"+task.TaskID, nil, "")
		json.Unmarshal(resp.Body.Bytes(), &task)
		if task.Status == string(models.TaskFailed) {
			t.Fatalf("Task failed: %s", resp.Body.String())
		}
	}

	if resp := doRequest(router, "GET", "/links/clicked", nil, ""); resp.Code != http.StatusNotFound {
		t.Errorf("Expected swept link to 404, got %d", resp.Code)
	}
	if resp := doRequest(router, "GET", "/links/ignored", nil, ""); resp.Code != http.StatusTemporaryRedirect {
		t.Errorf("Expected never used link to survive, got %d", resp.Code)
	}

	var archived int64
	db.Model(&models.LinkArchive{}).Where("short_code = ?", "clicked").Count(&archived)
	if archived != 1 {
		t.Errorf("Expected 1 archive row, got %d", archived)
	}
}

// TestAPIKeyAccess checks an API key can stand in for a session token.
func TestAPIKeyAccess(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))
	token := registerUser(t, router, "keyholder")

	resp := doRequest(router, "POST", "/auth/api-keys", map[string]string{"description": "ci"}, token)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Key string `json:"key"`
	}
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.Key == "" {
		t.Fatal("Expected the plaintext key in the response")
	}

	resp = doRequest(router, "GET", "/links/export", nil, created.Key)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected API key to authorize export, got %d", resp.Code)
	}

	resp = doRequest(router, "GET", "/admin/stats", nil, created.Key)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected non-admin to get 403, got %d", resp.Code)
	}
}
