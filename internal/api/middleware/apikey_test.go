package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_DisabledPassesThrough(t *testing.T) {
	auth := NewAPIKeyAuth("")
	if auth.Enabled() {
		t.Fatal("Enabled() = true with no keys")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil)
	rec := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestAPIKeyAuth_ValidKeyAccepted(t *testing.T) {
	auth := NewAPIKeyAuth("key-one, key-two")

	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer key-one") },
		func(r *http.Request) { r.Header.Set("X-API-Key", "key-two") },
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil)
		set(req)
		rec := httptest.NewRecorder()
		auth.Middleware(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 for valid key", rec.Code)
		}
	}
}

func TestAPIKeyAuth_MissingOrInvalidKeyRejected(t *testing.T) {
	auth := NewAPIKeyAuth("secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil)
	rec := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without key", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for invalid key", rec.Code)
	}
}

func TestAPIKeyAuth_PublicPathsAlwaysOpen(t *testing.T) {
	auth := NewAPIKeyAuth("secret")

	for _, path := range []string{"/health", "/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		auth.Middleware(okHandler()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for %s, want 200", rec.Code, path)
		}
	}
}

func TestAPIKeyAuth_RuntimeKeyManagement(t *testing.T) {
	auth := NewAPIKeyAuth("")
	auth.AddKey("fresh")
	if !auth.Enabled() {
		t.Fatal("Enabled() = false after AddKey")
	}

	auth.RemoveKey("fresh")
	if auth.Enabled() {
		t.Fatal("Enabled() = true after removing last key")
	}
}
