package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"moodfood-backend/internal/shared/auth"
	"moodfood-backend/internal/shared/server/middleware"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth("dev"))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func send(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload.Error.Code
}

func TestRegisterAndLoginFlow(t *testing.T) {
	auth.Configure("users-secret", "dev", 0)
	t.Cleanup(func() { auth.Configure("", "", 0) })

	svc := NewService(NewMemoryRepo())
	r := newTestRouter(svc)

	resp := send(t, r, http.MethodPost, "/api/v1/users/register", map[string]string{
		"email": "ana@example.com", "password": "pw123", "username": "ana",
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("pw123")) || bytes.Contains(resp.Body.Bytes(), []byte("$2a$")) {
		t.Fatalf("response leaks password material: %s", resp.Body.String())
	}
	var profile Profile
	if err := json.Unmarshal(resp.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}

	resp = send(t, r, http.MethodPost, "/api/v1/users/register", map[string]string{
		"email": "ana@example.com", "password": "pw123",
	}, nil)
	if resp.Code != http.StatusConflict || errorCode(t, resp) != "email_taken" {
		t.Fatalf("expected 409 email_taken, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = send(t, r, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email": "ana@example.com", "password": "pw123",
	}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var session Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	claims, err := auth.VerifyJWT(session.Token)
	if err != nil || claims.Subject != profile.ID {
		t.Fatalf("unexpected token claims %+v, %v", claims, err)
	}

	resp = send(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"Authorization": "Bearer " + session.Token})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for /me, got %d", resp.Code)
	}

	resp = send(t, r, http.MethodGet, "/api/v1/users/"+profile.ID, nil, map[string]string{"X-Guest-Id": "g1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for lookup, got %d", resp.Code)
	}
	resp = send(t, r, http.MethodGet, "/api/v1/users?email=ana@example.com", nil, map[string]string{"X-Guest-Id": "g1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for email lookup, got %d", resp.Code)
	}
}

func TestLoginErrorMapping(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	svc.Sign = func(c auth.Claims) (string, error) { return "t", nil }
	if _, err := svc.Register(t.Context(), RegisterInput{Email: "ana@example.com", Password: "pw"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := newTestRouter(svc)

	cases := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"bad email", map[string]string{"email": "ana", "password": "pw"}, http.StatusBadRequest, "validation_error"},
		{"unknown user", map[string]string{"email": "budi@example.com", "password": "pw"}, http.StatusNotFound, "not_found"},
		{"wrong password", map[string]string{"email": "ana@example.com", "password": "x"}, http.StatusUnauthorized, "invalid_credentials"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := send(t, r, http.MethodPost, "/api/v1/users/login", tc.body, nil)
			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.Code)
			}
			if code := errorCode(t, resp); code != tc.wantCode {
				t.Fatalf("expected %q, got %q", tc.wantCode, code)
			}
		})
	}
}

func TestMeRejectsGuests(t *testing.T) {
	r := newTestRouter(NewService(NewMemoryRepo()))
	resp := send(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"X-Guest-Id": "g1"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMeUnknownUser(t *testing.T) {
	auth.Configure("users-secret", "dev", 0)
	t.Cleanup(func() { auth.Configure("", "", 0) })
	token, err := auth.SignJWT(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ghost"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	r := newTestRouter(NewService(NewMemoryRepo()))
	resp := send(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
