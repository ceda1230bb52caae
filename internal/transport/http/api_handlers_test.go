package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterLoginAndGuest(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodPost, "/api/register", "", `{"name":"alice","password":"password123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var registered AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &registered); err != nil || registered.Token == "" {
		t.Fatalf("expected token, got %s (%v)", resp.Body.String(), err)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/register", "", `{"name":"alice","password":"password123"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/register", "", `{"name":"al","password":"password123"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/login", "", `{"name":"alice","password":"wrong"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/login", "", `{"name":"alice","password":"password123"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/guest", "", `{"name":"lurker"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var guest AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &guest); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	claims, err := env.auth.ValidateToken(guest.Token)
	if err != nil || claims.Name != "lurker" || !claims.Guest {
		t.Fatalf("unexpected guest claims: %+v (%v)", claims, err)
	}
	if resp.Header().Get("Set-Cookie") == "" {
		t.Fatalf("expected guest session cookie")
	}
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	env := startTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(`{"question":"Header?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token abc")

	resp := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "invalid authorization header format") {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}
