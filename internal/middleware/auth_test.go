package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/auth"
)

func authedRequest(t *testing.T, issuer *auth.Issuer, u user.User) *http.Request {
	t.Helper()
	token, err := issuer.Issue(u, false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthMiddlewarePopulatesIdentity(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	mw := NewAuthMiddleware(issuer, nil, nil)

	var gotID string
	var gotRole user.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		gotRole = GetRole(r.Context())
	})

	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, authedRequest(t, issuer, user.User{ID: "user-1", Name: "Pat", Role: user.RoleAdmin}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotID != "user-1" || gotRole != user.RoleAdmin {
		t.Fatalf("identity = %q/%q, want user-1/admin", gotID, gotRole)
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	mw := NewAuthMiddleware(issuer, nil, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run for unauthenticated requests")
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.Handler(next).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	mw := NewAuthMiddleware(issuer, nil, []string{"/healthz"})

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !called {
		t.Fatalf("skip path must pass through without a token")
	}
}

func TestRequireRole(t *testing.T) {
	allowed := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { allowed = true })
	guarded := RequireRole(user.RoleAdmin)(next)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(WithIdentity(req.Context(), "u", "Pat", user.RoleEmployee))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if allowed || rec.Code != http.StatusForbidden {
		t.Fatalf("employee reached an admin handler, status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(WithIdentity(req.Context(), "u", "Ada", user.RoleAdmin))
	guarded.ServeHTTP(httptest.NewRecorder(), req)
	if !allowed {
		t.Fatalf("admin blocked from an admin handler")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := rl.Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status over burst = %d, want 429", rec.Code)
	}

	// A different caller has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/requests", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("separate caller status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	mw := NewCORSMiddleware([]string{"https://app.example.com"})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight must not reach the handler")
	})

	req := httptest.NewRequest(http.MethodOptions, "/requests", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin = %q, want the request origin", got)
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin for unlisted origin = %q, want empty", got)
	}
}
