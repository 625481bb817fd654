package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/provider"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotStore(client)
}

func TestDashboardRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := dashboard.Snapshot{SignedInEmail: "a@x.com", DailyTokens: 1200}
	if err := s.Save(ctx, "a@x.com", snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.Load(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got == nil || got.DailyTokens != 1200 {
		t.Errorf("expected round-tripped snapshot, got %+v", got)
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "a@x.com", dashboard.Snapshot{DailyTokens: 1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Delete(ctx, "a@x.com"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err := s.Load(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != nil {
		t.Error("expected snapshot gone after delete")
	}
}

func TestUsageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := provider.UsageSnapshot{Primary: provider.RateWindow{RemainingPercent: 60}}
	if err := s.SaveUsage(ctx, provider.Gemini, snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.LoadUsage(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}
	if got[provider.Gemini].Primary.RemainingPercent != 60 {
		t.Errorf("expected remaining 60, got %v", got[provider.Gemini].Primary.RemainingPercent)
	}
}
