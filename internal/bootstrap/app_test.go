package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/storage/db"
	localstore "moodfood-backend/internal/shared/storage/object/local"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.LLMProvider = "none"
	cfg.LocalStoreDir = t.TempDir()
	cfg.JWTSecret = "bootstrap-secret"

	doc := catalog.Document{Metadata: catalog.Metadata{Version: "test"}}
	for _, m := range []mood.Label{mood.Senang, mood.Sedih, mood.Stress, mood.Bosan} {
		doc.Foods = append(doc.Foods, catalog.FoodItem{
			ID:          string(m) + "-1",
			Name:        "Menu " + string(m),
			Description: "hidangan untuk " + string(m),
			Mood:        m,
			Category:    "main",
			PrepTime:    15,
			Reason:      "cocok",
		})
	}
	if _, err := catalog.Publish(context.Background(), localstore.New(cfg.LocalStoreDir), cfg.CatalogKey, doc); err != nil {
		t.Fatalf("publish catalog: %v", err)
	}
	return cfg
}

func TestBuildWiresMemoryStack(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.DB != nil || app.AI != nil {
		t.Fatalf("expected no database and no provider, got db=%v ai=%v", app.DB, app.AI)
	}
	if !app.Catalog.Loaded() {
		t.Fatal("expected catalog to load from local store")
	}
	if app.Detector.Classifier != nil {
		t.Fatal("expected keyword-only detection without a provider")
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"input":"aku lagi stress banget sama kerjaan"}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("recommend: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuildRegisterLoginAndChatWithoutProvider(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	post := func(path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp := httptest.NewRecorder()
		app.Router.ServeHTTP(resp, req)
		return resp
	}

	if resp := post("/api/v1/users/register", `{"email":"dewi@example.com","password":"rahasia123"}`, ""); resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	resp := post("/api/v1/users/login", `{"email":"dewi@example.com","password":"rahasia123"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil || session.Token == "" {
		t.Fatalf("login body: %v %s", err, resp.Body.String())
	}

	resp = post("/api/v1/chats", `{"message":"hari ini berat sekali"}`, session.Token)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("chat without provider: expected 502, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuildRejectsPostgresCatalogWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogSource = "postgres"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error without a database")
	}
}

func TestPoolOptionsOverridesDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.DBMaxOpenConns = 3
	cfg.DBPingTimeout = time.Second

	got := PoolOptions(cfg, db.DefaultLambdaOptions())
	base := db.DefaultLambdaOptions()
	if got.MaxOpenConns != 3 || got.PingTimeout != time.Second {
		t.Fatalf("expected overrides applied, got %+v", got)
	}
	if got.MaxIdleConns != base.MaxIdleConns || got.ConnMaxLifetime != base.ConnMaxLifetime {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", got)
	}
}
