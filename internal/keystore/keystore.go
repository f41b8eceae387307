// Package keystore is the shared keyed store behind profiles and uniqueness
// indexes. Index entries are plain string keys, records are field maps.
package keystore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("keystore: not found")

// Store is the remote keyed store. All cross-user mutation goes through
// Claim and ReleaseIfOwned; records are owned by a single user and use the
// plain write operations.
type Store interface {
	// Get reads an index entry. Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Claim executes a single-key compare-and-set: if the key is empty it is
	// set to owner and the claim commits; if it already equals owner the
	// claim commits without writing anything new; otherwise nothing changes.
	// The returned bool says whether the key is now owned by owner. A false
	// result is not an error; errors are transport/store failures only.
	Claim(ctx context.Context, key, owner string) (bool, error)

	// ReleaseIfOwned deletes the key only if its current value is owner.
	// A key owned by someone else, or absent, is left untouched.
	ReleaseIfOwned(ctx context.Context, key, owner string) error

	// GetFields reads a whole record. Returns ErrNotFound for an absent or
	// empty record.
	GetFields(ctx context.Context, key string) (map[string]string, error)

	// SetFields replaces a record with exactly the given fields.
	SetFields(ctx context.Context, key string, fields map[string]interface{}) error

	// UpdateFields merges the given fields into a record, leaving other
	// fields alone.
	UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error

	// Delete removes an index entry or record. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
