package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReissueAdoptsKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/keys/reissue" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != "bot@x.com" {
			t.Errorf("unexpected email %q", req["email"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"api_key":"kg_secret","key_prefix":"kg_secre"}`))
	}))
	defer ts.Close()

	c := New(ts.URL + "/")
	issued, err := c.Reissue(context.Background(), "bot@x.com")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if issued.APIKey != "kg_secret" || c.APIKey != "kg_secret" {
		t.Fatalf("expected client to adopt key, got %q / %q", issued.APIKey, c.APIKey)
	}
}

func TestRateLimitedError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many attempts. Please try again in 42 seconds.","code":"rate_limited","retry_after":42}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Reissue(context.Background(), "bot@x.com")
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError")
	}
	if apiErr.Code != "rate_limited" || apiErr.RetryAfter != 42*time.Second {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestVerifyRejectionIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"verified":false,"error":"promo code not accepted"}`))
	}))
	defer ts.Close()

	v, err := New(ts.URL).VerifyPromo(context.Background(), "bot@x.com", "nope")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Verified || v.Reason != "promo code not accepted" {
		t.Fatalf("unexpected verification %+v", v)
	}
}

func TestAdminHeadersAndConflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"email already registered","code":"conflict"}`))
	}))
	defer ts.Close()

	c := New(ts.URL)
	c.AdminSecret = "s3cret"
	if _, err := c.CreateAccount(context.Background(), "bot@x.com"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := New(ts.URL).Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream exploded" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestMeRequiresKey(t *testing.T) {
	if _, err := New("http://127.0.0.1:1").Me(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}
