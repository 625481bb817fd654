package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

func writeCookie(t *testing.T, value string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies")
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		t.Fatalf("failed to write cookie file: %v", err)
	}
	return path
}

func TestHTTPClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Cookie") != "session=abc" {
			t.Errorf("unexpected cookie header %q", r.Header.Get("Cookie"))
		}
		w.Write([]byte(`{"email":"A@X.com","plan_type":"pro","daily_tokens":100,"weekly_tokens":700}`))
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, writeCookie(t, "session=abc\n"))
	snap, err := c.FetchDashboard(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.SignedInEmail != "A@X.com" || snap.PlanType != "pro" || snap.WeeklyTokens != 700 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestHTTPClient_MissingCookieFile(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", filepath.Join(t.TempDir(), "absent"))
	_, err := c.FetchDashboard(context.Background())
	if !errors.Is(err, provider.ErrLoginRequired) {
		t.Errorf("expected ErrLoginRequired, got %v", err)
	}
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, writeCookie(t, "session=expired"))
	_, err := c.FetchDashboard(context.Background())
	if !errors.Is(err, provider.ErrLoginRequired) {
		t.Errorf("expected ErrLoginRequired, got %v", err)
	}
}

func TestHTTPClient_EmptyIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan_type":"pro"}`))
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, writeCookie(t, "session=abc"))
	_, err := c.FetchDashboard(context.Background())
	if !errors.Is(err, provider.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestCommandImporter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	imp := NewCommandImporter([]string{"sh", "-c", `printf %s "$0" > ` + out})

	if err := imp.Import(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("helper never ran: %v", err)
	}
	if string(got) != "a@x.com" {
		t.Errorf("expected target email as final arg, got %q", got)
	}
}

func TestCommandImporter_Failure(t *testing.T) {
	imp := NewCommandImporter([]string{"sh", "-c", "echo no browser found >&2; exit 3"})
	if err := imp.Import(context.Background(), "a@x.com"); err == nil {
		t.Error("expected an error for non-zero exit")
	}
}

func TestCommandImporter_Unconfigured(t *testing.T) {
	imp := NewCommandImporter(nil)
	if err := imp.Import(context.Background(), "a@x.com"); err == nil {
		t.Error("expected an error when no command configured")
	}
}
