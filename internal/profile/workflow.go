// Package profile orchestrates profile commits: claim the uniqueness
// indexes, write the private record, mirror the public projection — and on
// any failure release exactly the claims this attempt acquired. The store
// only gives single-key transactions, so the multi-step commit is a saga of
// actions with compensations, not an atomic write.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/claims"
	"github.com/ITAMARV101/duowalk/internal/identity"
	"github.com/ITAMARV101/duowalk/internal/models"
	"github.com/ITAMARV101/duowalk/internal/repositories"
	"github.com/ITAMARV101/duowalk/internal/steps"
)

var (
	// ErrUsernameTaken and ErrPhoneTaken are claim conflicts: another user
	// holds the key. They are user-facing outcomes, not store faults.
	ErrUsernameTaken = errors.New("username is already taken")
	ErrPhoneTaken    = errors.New("phone number is already in use")

	// ErrCommitInFlight rejects a second save while one is still resolving
	// for the same user.
	ErrCommitInFlight = errors.New("a profile commit is already in flight for this user")
)

type Workflow struct {
	claims   *claims.Manager
	profiles *repositories.ProfileRepository
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewWorkflow(cm *claims.Manager, profiles *repositories.ProfileRepository, logger *zap.Logger, now func() time.Time) *Workflow {
	if now == nil {
		now = time.Now
	}
	return &Workflow{
		claims:   cm,
		profiles: profiles,
		logger:   logger,
		now:      now,
		inFlight: make(map[string]struct{}),
	}
}

// begin enforces at-most-one commit in flight per user. Store callbacks can
// interleave with a second save tapped before the first resolves; serializing
// at this boundary keeps the compensation bookkeeping per-attempt.
func (w *Workflow) begin(uid string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[uid]; busy {
		return ErrCommitInFlight
	}
	w.inFlight[uid] = struct{}{}
	return nil
}

func (w *Workflow) end(uid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, uid)
}

// Setup performs the initial profile commit for a new user:
// claim username -> claim phone -> write private record -> write public
// projection. Any failure after the first claim releases every claim this
// call acquired.
func (w *Workflow) Setup(ctx context.Context, uid, username, phoneRaw string) error {
	usernameKey, err := identity.ValidateUsername(username)
	if err != nil {
		return err
	}
	phoneNormalized, phoneHash, err := identity.ValidatePhone(phoneRaw)
	if err != nil {
		return err
	}

	if err := w.begin(uid); err != nil {
		return err
	}
	defer w.end(uid)

	set := w.claims.NewSet(uid)

	acquired, err := set.Claim(ctx, claims.KeyspaceUsernames, usernameKey)
	if err != nil {
		set.ReleaseAll(ctx)
		return fmt.Errorf("claiming username: %w", err)
	}
	if !acquired {
		return ErrUsernameTaken
	}

	acquired, err = set.Claim(ctx, claims.KeyspacePhoneIndex, phoneHash)
	if err != nil {
		set.ReleaseAll(ctx)
		return fmt.Errorf("claiming phone: %w", err)
	}
	if !acquired {
		set.ReleaseAll(ctx)
		return ErrPhoneTaken
	}

	now := w.now()
	private := &models.UserProfile{
		UID:         uid,
		Username:    strings.TrimSpace(username),
		PhoneNum:    phoneNormalized,
		UsernameKey: usernameKey,
		PhoneHash:   phoneHash,
		LastSync:    now.UnixMilli(),
		StepsByDay:  map[string]int{steps.DayKey(now): 0},
	}
	if err := w.profiles.SavePrivate(ctx, private); err != nil {
		set.ReleaseAll(ctx)
		return fmt.Errorf("saving private profile: %w", err)
	}

	public := &models.PublicProfile{UID: uid, Username: private.Username}
	if err := w.profiles.SavePublic(ctx, public); err != nil {
		// The private record may survive this rollback; that partial state
		// is harmless as long as no claim points at it.
		set.ReleaseAll(ctx)
		return fmt.Errorf("saving public profile: %w", err)
	}

	w.logger.Info("profile setup committed", zap.String("uid", uid), zap.String("usernameKey", usernameKey))
	return nil
}

// Edit changes username and/or phone. Changed is decided on normalized
// forms against the stored usernameKey/phoneHash, so a cosmetic rewrite of
// the same identity neither re-claims nor releases anything. On success the
// superseded old claims are released; on failure only the claims acquired by
// this call are.
func (w *Workflow) Edit(ctx context.Context, uid, username, phoneRaw string) error {
	newKey, err := identity.ValidateUsername(username)
	if err != nil {
		return err
	}
	newPhone, newHash, err := identity.ValidatePhone(phoneRaw)
	if err != nil {
		return err
	}

	if err := w.begin(uid); err != nil {
		return err
	}
	defer w.end(uid)

	current, err := w.profiles.GetPrivate(ctx, uid)
	if err != nil {
		return fmt.Errorf("reading current profile: %w", err)
	}

	usernameChanged := current.UsernameKey != newKey
	phoneChanged := current.PhoneHash != newHash
	if !usernameChanged && !phoneChanged {
		return nil
	}

	set := w.claims.NewSet(uid)

	if usernameChanged {
		acquired, err := set.Claim(ctx, claims.KeyspaceUsernames, newKey)
		if err != nil {
			set.ReleaseAll(ctx)
			return fmt.Errorf("claiming username: %w", err)
		}
		if !acquired {
			return ErrUsernameTaken
		}
	}

	if phoneChanged {
		acquired, err := set.Claim(ctx, claims.KeyspacePhoneIndex, newHash)
		if err != nil {
			set.ReleaseAll(ctx)
			return fmt.Errorf("claiming phone: %w", err)
		}
		if !acquired {
			set.ReleaseAll(ctx)
			return ErrPhoneTaken
		}
	}

	display := strings.TrimSpace(username)
	if err := w.profiles.UpdateIdentity(ctx, uid, display, newPhone, newKey, newHash); err != nil {
		set.ReleaseAll(ctx)
		return fmt.Errorf("updating private profile: %w", err)
	}
	if err := w.profiles.UpdatePublicUsername(ctx, uid, display); err != nil {
		set.ReleaseAll(ctx)
		return fmt.Errorf("updating public profile: %w", err)
	}

	// Both records are durable; the old index entries are now stale.
	if usernameChanged && current.UsernameKey != "" {
		w.releaseOld(ctx, claims.KeyspaceUsernames, current.UsernameKey, uid)
	}
	if phoneChanged && current.PhoneHash != "" {
		w.releaseOld(ctx, claims.KeyspacePhoneIndex, current.PhoneHash, uid)
	}

	w.logger.Info("profile edit committed", zap.String("uid", uid),
		zap.Bool("usernameChanged", usernameChanged), zap.Bool("phoneChanged", phoneChanged))
	return nil
}

// Delete is the workflow's inverse: recover the normalized keys from the
// private record, delete both records, then release the claims — records
// first so a crash mid-deletion can orphan a claim but never leave a claim
// pointing at a live profile that is gone from the index.
func (w *Workflow) Delete(ctx context.Context, uid string) error {
	if err := w.begin(uid); err != nil {
		return err
	}
	defer w.end(uid)

	current, err := w.profiles.GetPrivate(ctx, uid)
	if errors.Is(err, repositories.ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading profile for delete: %w", err)
	}

	if err := w.profiles.DeletePrivate(ctx, uid); err != nil {
		return fmt.Errorf("deleting private profile: %w", err)
	}
	if err := w.profiles.DeletePublic(ctx, uid); err != nil {
		return fmt.Errorf("deleting public profile: %w", err)
	}

	if current.UsernameKey != "" {
		w.releaseOld(ctx, claims.KeyspaceUsernames, current.UsernameKey, uid)
	}
	if current.PhoneHash != "" {
		w.releaseOld(ctx, claims.KeyspacePhoneIndex, current.PhoneHash, uid)
	}

	w.logger.Info("account data deleted", zap.String("uid", uid))
	return nil
}

// releaseOld releases a claim outside a rollback path. Failures are logged
// and left for the reconciliation sweep; the commit itself already landed.
func (w *Workflow) releaseOld(ctx context.Context, keyspace, key, uid string) {
	if err := w.claims.Release(ctx, keyspace, key, uid); err != nil {
		w.logger.Error("failed to release superseded claim",
			zap.String("keyspace", keyspace), zap.String("key", key), zap.Error(err))
	}
}
