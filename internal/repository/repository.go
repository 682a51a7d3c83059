package repository

import (
	"context"
	"errors"

	"viewbot/internal/domain"
)

// Snapshot record names
const (
	RecordUsers    = "users"
	RecordCodes    = "codes"
	RecordBanned   = "banned"
	RecordSettings = "settings"
)

// ErrNotFound is returned by Load when a record was never saved
var ErrNotFound = errors.New("record not found")

// SnapshotStore persists whole-record snapshots.
// Save must replace the record atomically: a reader sees either the old
// or the new payload, never a mix.
type SnapshotStore interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// StateStore keeps per-user dialog state. Get returns nil for idle users.
type StateStore interface {
	Get(ctx context.Context, userID string) (domain.Dialog, error)
	Set(ctx context.Context, userID string, dialog domain.Dialog) error
	Clear(ctx context.Context, userID string) error
}
