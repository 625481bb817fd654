package gemini

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
	path := filepath.Join(t.TempDir(), "gemini")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake CLI: %v", err)
	}
	return map[string]string{OverrideEnvVar: path}
}

func TestFetch_ComputesPercentages(t *testing.T) {
	env := fakeCLI(t, `cat <<'EOF'
{
  "user": {"email": "a@x.com"},
  "daily": {"used": 250, "limit": 1000, "reset_time": "2024-06-02T00:00:00Z"},
  "minute": {"used": 3, "limit": 60}
}
EOF`)

	f := NewFetcher(nil)
	f.runner.Env = env

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Primary.UsedPercent != 25 || snap.Primary.RemainingPercent != 75 {
		t.Errorf("unexpected daily window %+v", snap.Primary)
	}
	if snap.Primary.ResetsAt == nil {
		t.Error("expected reset_time to parse")
	}
	if snap.Secondary.UsedPercent != 5 {
		t.Errorf("unexpected minute window %+v", snap.Secondary)
	}
}

func TestFetch_ZeroLimitLeavesWindowEmpty(t *testing.T) {
	env := fakeCLI(t, `echo '{"user":{"email":"a@x.com"},"daily":{"used":5,"limit":0}}'`)

	f := NewFetcher(nil)
	f.runner.Env = env

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Primary.UsedPercent != 0 || snap.Primary.RemainingPercent != 0 {
		t.Errorf("zero limit must not divide, got %+v", snap.Primary)
	}
}

func TestFetch_MissingDailyBucket(t *testing.T) {
	env := fakeCLI(t, `echo '{"user":{"email":"a@x.com"}}'`)

	f := NewFetcher(nil)
	f.runner.Env = env

	_, err := f.Fetch(context.Background())
	if !errors.Is(err, provider.ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}
