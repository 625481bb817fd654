package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

func TestUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/usage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"codex":{"snapshot":{"account_email":"a@x.com"}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	usage, err := c.Usage(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	st, ok := usage[provider.Codex]
	if !ok || st.Snapshot == nil || st.Snapshot.AccountEmail != "a@x.com" {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.backoff = &ExponentialBackoff{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}

	h, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("unexpected health %+v", h)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGetJSON_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.backoff = &ExponentialBackoff{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}

	_, err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls.Load() != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, calls.Load())
	}
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.Dashboard(context.Background()); err == nil {
		t.Fatal("expected an error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not retry, got %d attempts", calls.Load())
	}
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/refresh" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if err := c.Refresh(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestSetInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Interval string `json:"interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if req.Interval != "1m30s" {
			t.Errorf("unexpected interval %q", req.Interval)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if err := c.SetInterval(context.Background(), 90*time.Second); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
