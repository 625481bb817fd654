// Package redis provides a Redis-backed snapshot store for setups that
// share one cache between machines. It mirrors the SQLite store's
// behavior behind the same interfaces.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/provider"
)

type SnapshotStore struct {
	client *redis.Client
}

func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

func dashboardKey(email string) string {
	return fmt.Sprintf("quotabar:dashboard:%s", email)
}

func usageKey(id provider.ID) string {
	return fmt.Sprintf("quotabar:usage:%s", id)
}

// Load returns the cached dashboard snapshot for email, or nil.
func (s *SnapshotStore) Load(ctx context.Context, email string) (*dashboard.Snapshot, error) {
	payload, err := s.client.Get(ctx, dashboardKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load dashboard snapshot: %w", err)
	}

	var snap dashboard.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard snapshot: %w", err)
	}
	return &snap, nil
}

// Save upserts the dashboard snapshot for email.
func (s *SnapshotStore) Save(ctx context.Context, email string, snap dashboard.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard snapshot: %w", err)
	}
	if err := s.client.Set(ctx, dashboardKey(email), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save dashboard snapshot: %w", err)
	}
	return nil
}

// Delete drops the cached dashboard snapshot for email.
func (s *SnapshotStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, dashboardKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete dashboard snapshot: %w", err)
	}
	return nil
}

// SaveUsage upserts the latest usage snapshot for a provider.
func (s *SnapshotStore) SaveUsage(ctx context.Context, id provider.ID, snap provider.UsageSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode usage snapshot: %w", err)
	}
	if err := s.client.Set(ctx, usageKey(id), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save usage snapshot: %w", err)
	}
	return nil
}

// LoadUsage returns all persisted usage snapshots keyed by provider.
func (s *SnapshotStore) LoadUsage(ctx context.Context) (map[provider.ID]provider.UsageSnapshot, error) {
	out := make(map[provider.ID]provider.UsageSnapshot)
	for _, id := range provider.All() {
		payload, err := s.client.Get(ctx, usageKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to load usage snapshot: %w", err)
		}
		var snap provider.UsageSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			continue
		}
		out[id] = snap
	}
	return out, nil
}
