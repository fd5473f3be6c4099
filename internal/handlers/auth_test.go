package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petjoy-vn/petjoy-core/libs/auth"
)

func TestRequireAuth(t *testing.T) {
	const secret = "test-secret"
	var seen bool
	protected := RequireAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			t.Fatal("principal missing from context")
		}
		if p.ID != "cust-1" || p.Role != "user" {
			t.Fatalf("wrong principal: %+v", p)
		}
		seen = true
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.SignHS256(auth.Claims{
		Sub:  "cust-1",
		Role: "user",
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !seen {
		t.Fatalf("expected 200 with handler reached, got %d", rec.Code)
	}
}

func TestRequireAuth_Rejects(t *testing.T) {
	protected := RequireAuth("test-secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "cust-1",
		Role: "user",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}, "other-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	protected := RequireAuth("test-secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
