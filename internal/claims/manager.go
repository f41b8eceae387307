// Package claims owns acquisition and release of uniqueness claims: the
// usernames and phone_index keyspaces that map a normalized key to the one
// user id holding it.
package claims

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/keystore"
	"github.com/ITAMARV101/duowalk/internal/metrics"
)

// Keyspaces holding uniqueness claims.
const (
	KeyspaceUsernames  = "usernames"
	KeyspacePhoneIndex = "phone_index"
)

type Manager struct {
	store  keystore.Store
	logger *zap.Logger
}

func NewManager(store keystore.Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

func indexKey(keyspace, key string) string {
	return keyspace + ":" + key
}

// Claim reserves keyspace/key for ownerID via the store's compare-and-set.
// A key already held by ownerID re-claims successfully; a key held by anyone
// else returns (false, nil) — "taken" is a normal negative result, not a
// fault.
func (m *Manager) Claim(ctx context.Context, keyspace, key, ownerID string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("claims: empty key for keyspace %s", keyspace)
	}

	acquired, err := m.store.Claim(ctx, indexKey(keyspace, key), ownerID)
	if err != nil {
		return false, err
	}
	if !acquired {
		metrics.ClaimConflicts.WithLabelValues(keyspace).Inc()
		m.logger.Info("claim conflict",
			zap.String("keyspace", keyspace),
			zap.String("key", key),
			zap.String("owner", ownerID))
		return false, nil
	}

	metrics.ClaimsAcquired.WithLabelValues(keyspace).Inc()
	return true, nil
}

// Release deletes keyspace/key only while ownerID still holds it. A key
// since re-claimed by another user is left alone, so a stale rollback can
// never destroy a legitimate claim.
func (m *Manager) Release(ctx context.Context, keyspace, key, ownerID string) error {
	if key == "" {
		return nil
	}
	if err := m.store.ReleaseIfOwned(ctx, indexKey(keyspace, key), ownerID); err != nil {
		return err
	}
	metrics.ClaimsReleased.WithLabelValues(keyspace).Inc()
	return nil
}

// Entries lists every live claim in a keyspace as key -> owner. Used by the
// reconciliation sweep; not part of any commit path.
func (m *Manager) Entries(ctx context.Context, keyspace string) (map[string]string, error) {
	prefix := keyspace + ":"
	keys, err := m.store.Keys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(keys))
	for _, full := range keys {
		owner, err := m.store.Get(ctx, full)
		if err == keystore.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries[strings.TrimPrefix(full, prefix)] = owner
	}
	return entries, nil
}

// Owner reports who currently holds keyspace/key, if anyone.
func (m *Manager) Owner(ctx context.Context, keyspace, key string) (string, bool, error) {
	owner, err := m.store.Get(ctx, indexKey(keyspace, key))
	if err == keystore.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}
