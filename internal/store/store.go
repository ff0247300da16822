package store

import (
	"context"
	"time"

	"github.com/nhle/portal-inbox/internal/model"
)

// Snapshot is the persisted inbox: the loaded notifications plus the
// counters last reported for them.
type Snapshot struct {
	Notifications []model.Notification
	Unread        int
	Total         int
	SavedAt       time.Time
}

// Store defines the persistence interface for the local inbox cache.
type Store interface {
	// SaveSnapshot replaces the cached inbox with snap.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadSnapshot returns the cached inbox. An empty cache yields an
	// empty snapshot and no error.
	LoadSnapshot(ctx context.Context) (Snapshot, error)

	// Clear removes every cached notification and counter.
	Clear(ctx context.Context) error

	Close() error
}
