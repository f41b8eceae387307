package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/claims"
	"github.com/ITAMARV101/duowalk/internal/repositories"
)

// Reconcile sweeps both uniqueness keyspaces and releases claims whose owner
// has no private record — the orphans left behind when a process died
// between a committed claim and the failed write's compensation. It is an
// explicit maintenance pass, never an implicit side effect of a commit, and
// should run on a period long enough that no in-flight commit is mistaken
// for an orphan.
func (w *Workflow) Reconcile(ctx context.Context) (int, error) {
	released := 0

	for _, keyspace := range []string{claims.KeyspaceUsernames, claims.KeyspacePhoneIndex} {
		entries, err := w.claims.Entries(ctx, keyspace)
		if err != nil {
			return released, fmt.Errorf("scanning %s: %w", keyspace, err)
		}

		for key, owner := range entries {
			_, err := w.profiles.GetPrivate(ctx, owner)
			if err == nil {
				continue
			}
			if !errors.Is(err, repositories.ErrProfileNotFound) {
				return released, fmt.Errorf("checking owner %s: %w", owner, err)
			}

			if err := w.claims.Release(ctx, keyspace, key, owner); err != nil {
				w.logger.Error("failed to release orphaned claim",
					zap.String("keyspace", keyspace), zap.String("key", key), zap.Error(err))
				continue
			}
			released++
			w.logger.Info("released orphaned claim",
				zap.String("keyspace", keyspace), zap.String("key", key), zap.String("owner", owner))
		}
	}
	return released, nil
}
