package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/homescan/internal/auth"
	"github.com/hitoshi/homescan/internal/model"
)

func newTestGate(t *testing.T) (*auth.Gate, *auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", 7)
	return auth.NewGate(tokens), tokens
}

func issueToken(t *testing.T, tokens *auth.TokenService, accountID string, role model.Role) string {
	t.Helper()
	token, err := tokens.Issue(accountID, accountID+"@example.com", role, "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	return token
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestAuthMiddleware_ValidToken_InjectsClaims(t *testing.T) {
	gate, tokens := newTestGate(t)
	token := issueToken(t, tokens, "account-1", model.RoleITN)

	var captured *auth.Claims
	handler := NewAuthMiddleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil {
		t.Fatal("expected claims in context")
	}
	if captured.AccountID() != "account-1" || captured.Role != model.RoleITN {
		t.Errorf("claims = %+v", captured)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	gate, _ := newTestGate(t)
	foreign := issueToken(t, auth.NewTokenService("other-secret", 7), "account-1", model.RoleUser)

	tests := []struct {
		name          string
		header        string
		wantMessage   string
		wantChallenge string
	}{
		{"no header", "", "Missing bearer token", `Bearer realm="homescan"`},
		{"wrong scheme", "Basic abc", "Missing bearer token", `Bearer realm="homescan"`},
		{"garbage token", "Bearer garbage", "Invalid token", `Bearer realm="homescan", error="invalid_token"`},
		{"foreign signature", "Bearer " + foreign, "Invalid token", `Bearer realm="homescan", error="invalid_token"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
			body := decodeErrorBody(t, w)
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tt.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantChallenge)
			}
		})
	}
}

func TestRequireRole_AllowsAndForbids(t *testing.T) {
	gate, tokens := newTestGate(t)

	tests := []struct {
		name       string
		role       model.Role
		wantStatus int
	}{
		{"admin allowed", model.RoleAdmin, http.StatusOK},
		{"user forbidden", model.RoleUser, http.StatusForbidden},
		{"itn forbidden", model.RoleITN, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(gate)(RequireRole(model.RoleAdmin)(okHandler()))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/config", nil)
			req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, "account-"+string(tt.role), tt.role))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if body := decodeErrorBody(t, w); body.Code != model.ErrCodeForbidden {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
				}
			}
		})
	}
}

func TestRequireRole_WithoutClaims_Returns401(t *testing.T) {
	handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/config", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestClaimsFromContext_NoValue_ReturnsError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := ClaimsFromContext(req.Context()); err == nil {
		t.Error("expected error for missing claims")
	}
	if _, err := AccountIDFromContext(req.Context()); err == nil {
		t.Error("expected error for missing account ID")
	}
}
