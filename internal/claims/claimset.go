package claims

import (
	"context"

	"go.uber.org/zap"
)

type claimRef struct {
	keyspace string
	key      string
}

// Set tracks the claims one commit attempt acquires so a later failure can
// release exactly those — never claims the owner already held before the
// attempt started.
type Set struct {
	manager  *Manager
	ownerID  string
	acquired []claimRef
}

func (m *Manager) NewSet(ownerID string) *Set {
	return &Set{manager: m, ownerID: ownerID}
}

// Claim acquires keyspace/key for the set's owner and records it for
// rollback on success.
func (s *Set) Claim(ctx context.Context, keyspace, key string) (bool, error) {
	acquired, err := s.manager.Claim(ctx, keyspace, key, s.ownerID)
	if err != nil || !acquired {
		return acquired, err
	}
	s.acquired = append(s.acquired, claimRef{keyspace: keyspace, key: key})
	return true, nil
}

// ReleaseAll runs the compensations for every claim this set acquired, in
// reverse acquisition order. Release failures are logged and swallowed: the
// remaining claims still get their chance, and a claim that survives a
// failed release is the documented orphan window, not a new failure mode.
func (s *Set) ReleaseAll(ctx context.Context) {
	for i := len(s.acquired) - 1; i >= 0; i-- {
		ref := s.acquired[i]
		if err := s.manager.Release(ctx, ref.keyspace, ref.key, s.ownerID); err != nil {
			s.manager.logger.Error("failed to release claim during rollback",
				zap.String("keyspace", ref.keyspace),
				zap.String("key", ref.key),
				zap.Error(err))
		}
	}
	s.acquired = nil
}

// Len reports how many claims the set currently holds.
func (s *Set) Len() int {
	return len(s.acquired)
}
