// Package persistence bridges the in-memory cart and its stored snapshot.
// Stored state is a cache: failures here degrade to an empty or unsaved cart
// and never reach the caller.
package persistence

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore keeps one serialized cart per session. Get reports a miss with
// an error matching ErrSnapshotNotFound.
type SnapshotStore interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, snapshot []byte) error
	Delete(ctx context.Context, sessionID string) error
}
