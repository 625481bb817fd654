package statuspage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

func TestFetch_MinorIncident(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/status.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":{"indicator":"minor","description":"degraded"},"page":{"updated_at":"2024-01-01T00:00:00Z"}}`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	status, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status.Indicator != IndicatorMinor {
		t.Errorf("expected indicator minor, got %s", status.Indicator)
	}
	if status.Description != "degraded" {
		t.Errorf("expected description degraded, got %q", status.Description)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if status.UpdatedAt == nil || !status.UpdatedAt.Equal(want) {
		t.Errorf("expected updated_at %v, got %v", want, status.UpdatedAt)
	}
}

func TestFetch_FractionalSecondsTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"indicator":"none"},"page":{"updated_at":"2024-06-15T12:30:45.123Z"}}`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	status, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status.UpdatedAt == nil {
		t.Fatal("expected updated_at to parse")
	}
	if status.UpdatedAt.Nanosecond() != 123000000 {
		t.Errorf("expected fractional seconds preserved, got %v", status.UpdatedAt)
	}
}

func TestFetch_UnrecognizedIndicatorMapsToUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"indicator":"weird_new_state"},"page":{}}`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	status, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status.Indicator != IndicatorUnknown {
		t.Errorf("expected unknown, got %s", status.Indicator)
	}
}

func TestFetch_HTTPErrorIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(time.Second)
	_, err := c.Fetch(context.Background(), server.URL)
	if !errors.Is(err, provider.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	_, err := c.Fetch(context.Background(), server.URL)
	if !errors.Is(err, provider.ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestParseIndicator(t *testing.T) {
	tests := []struct {
		raw  string
		want Indicator
	}{
		{"none", IndicatorNone},
		{"minor", IndicatorMinor},
		{"major", IndicatorMajor},
		{"critical", IndicatorCritical},
		{"maintenance", IndicatorMaintenance},
		{" Minor ", IndicatorMinor},
		{"", IndicatorUnknown},
		{"degraded_performance", IndicatorUnknown},
	}
	for _, tt := range tests {
		if got := ParseIndicator(tt.raw); got != tt.want {
			t.Errorf("ParseIndicator(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
