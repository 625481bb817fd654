package claude

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

func fakeCLI(t *testing.T, script string) map[string]string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake CLI: %v", err)
	}
	return map[string]string{OverrideEnvVar: path}
}

func TestFetch_ThreeWindows(t *testing.T) {
	env := fakeCLI(t, `cat <<'EOF'
{
  "email": "a@x.com",
  "session": {"utilization": 35, "resets_at": "2024-06-01T17:00:00Z"},
  "week": {"utilization": 60, "resets_at": "2024-06-03T00:00:00.500Z"},
  "opus": {"utilization": 80}
}
EOF`)

	f := NewFetcher(nil)
	f.runner.Env = env

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.AccountEmail != "a@x.com" {
		t.Errorf("expected email a@x.com, got %q", snap.AccountEmail)
	}
	if snap.Primary.UsedPercent != 35 || snap.Primary.RemainingPercent != 65 {
		t.Errorf("unexpected session window %+v", snap.Primary)
	}
	if snap.Primary.ResetsAt == nil {
		t.Error("expected session resets_at to parse")
	}
	if snap.Secondary.ResetsAt == nil {
		t.Error("expected fractional-seconds resets_at to parse")
	}
	if snap.Tertiary == nil || snap.Tertiary.UsedPercent != 80 {
		t.Errorf("expected opus tertiary window, got %+v", snap.Tertiary)
	}
}

func TestFetch_MissingSessionWindow(t *testing.T) {
	env := fakeCLI(t, `echo '{"email":"a@x.com"}'`)

	f := NewFetcher(nil)
	f.runner.Env = env

	_, err := f.Fetch(context.Background())
	if !errors.Is(err, provider.ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestFetch_OverUtilizationClampsRemaining(t *testing.T) {
	env := fakeCLI(t, `echo '{"email":"a@x.com","session":{"utilization":104}}'`)

	f := NewFetcher(nil)
	f.runner.Env = env

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Primary.RemainingPercent != 0 {
		t.Errorf("expected remaining clamped to 0, got %v", snap.Primary.RemainingPercent)
	}
}
