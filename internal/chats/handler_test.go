package chats

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"moodfood-backend/internal/shared/server/middleware"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth("dev"))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, guest string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if guest != "" {
		req.Header.Set("X-Guest-Id", guest)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHandlerSendListGet(t *testing.T) {
	svc, _ := newTestService(&fakeCounselor{reply: "coba teh hangat"})
	r := newTestRouter(svc)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/chats", "g1", map[string]string{
		"message": "aku stress deadline",
		"mood":    "stress",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.CreatorID != "guest:g1" || created.Reply != "coba teh hangat" {
		t.Fatalf("unexpected chat %+v", created)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/chats?limit=5", "g1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var listed []Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", listed)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/chats/"+created.ID, "g1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodGet, "/api/v1/chats/"+created.ID, "g2", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other guest, got %d", resp.Code)
	}
}

func TestHandlerErrors(t *testing.T) {
	cases := []struct {
		name       string
		counselor  *fakeCounselor
		guest      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing identity", &fakeCounselor{reply: "ok"}, "", map[string]string{"message": "halo"}, http.StatusUnauthorized, "unauthorized"},
		{"empty message", &fakeCounselor{reply: "ok"}, "g1", map[string]string{"message": ""}, http.StatusBadRequest, "validation_error"},
		{"bad json", &fakeCounselor{reply: "ok"}, "g1", nil, http.StatusBadRequest, "validation_error"},
		{"ai failure", &fakeCounselor{err: errors.New("boom")}, "g1", map[string]string{"message": "halo"}, http.StatusBadGateway, "ai_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(tc.counselor)
			r := newTestRouter(svc)
			resp := doJSON(t, r, http.MethodPost, "/api/v1/chats", tc.guest, tc.body)
			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, resp.Code, resp.Body.String())
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Error.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, payload.Error.Code)
			}
		})
	}
}
