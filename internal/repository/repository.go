package repository

import (
	"context"
	"errors"
	"time"

	"hostlink/internal/domain"
)

// ErrNotFound is returned when no snapshot matches
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a host's data captured at one point in time
type Snapshot struct {
	ID         int64
	Host       string
	Transport  string
	Value      domain.Value
	CapturedAt time.Time
}

// SnapshotStore persists host data snapshots
type SnapshotStore interface {
	// SaveSnapshot stores snap and sets its ID; a zero CapturedAt is set to now
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	// LatestSnapshot returns the newest snapshot for host or ErrNotFound
	LatestSnapshot(ctx context.Context, host string) (*Snapshot, error)
	// ListSnapshots returns up to limit snapshots for host, newest first;
	// limit <= 0 returns all
	ListSnapshots(ctx context.Context, host string, limit int) ([]*Snapshot, error)
	// Hosts lists every host with at least one snapshot, in name order
	Hosts(ctx context.Context) ([]string, error)
	// PruneSnapshots keeps the newest keep snapshots for host and deletes the rest
	PruneSnapshots(ctx context.Context, host string, keep int) (int64, error)

	Close() error
}
