package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/claims"
	"github.com/ITAMARV101/duowalk/internal/identity"
	"github.com/ITAMARV101/duowalk/internal/keystore"
	"github.com/ITAMARV101/duowalk/internal/repositories"
)

// instrumentedStore wraps the real store to force failures on chosen keys
// and to record which index keys were claimed.
type instrumentedStore struct {
	keystore.Store
	failSet    map[string]error
	failUpdate map[string]error
	claimed    []string
}

func (s *instrumentedStore) Claim(ctx context.Context, key, owner string) (bool, error) {
	s.claimed = append(s.claimed, key)
	return s.Store.Claim(ctx, key, owner)
}

func (s *instrumentedStore) SetFields(ctx context.Context, key string, fields map[string]interface{}) error {
	if err, ok := s.failSet[key]; ok {
		return err
	}
	return s.Store.SetFields(ctx, key, fields)
}

func (s *instrumentedStore) UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error {
	if err, ok := s.failUpdate[key]; ok {
		return err
	}
	return s.Store.UpdateFields(ctx, key, fields)
}

func (s *instrumentedStore) claimCount(key string) int {
	n := 0
	for _, k := range s.claimed {
		if k == key {
			n++
		}
	}
	return n
}

func setupWorkflow(t *testing.T) (*miniredis.Miniredis, *instrumentedStore, *Workflow) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &instrumentedStore{
		Store:      keystore.NewRedisStore(client),
		failSet:    map[string]error{},
		failUpdate: map[string]error{},
	}

	now := func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local) }
	w := NewWorkflow(
		claims.NewManager(store, zap.NewNop()),
		&repositories.ProfileRepository{Store: store},
		zap.NewNop(),
		now,
	)
	return mr, store, w
}

const (
	testUID   = "uid-a"
	otherUID  = "uid-b"
	testPhone = "+1 555-0100"
)

func phoneKey(raw string) string {
	return "phone_index:" + identity.PhoneFingerprint(identity.NormalizePhone(raw))
}

func TestSetupCommitsClaimsAndRecords(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "  Alice ", testPhone))

	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)
	owner, _ = mr.Get(phoneKey(testPhone))
	assert.Equal(t, testUID, owner)

	assert.Equal(t, "Alice", mr.HGet("users:"+testUID, "username"))
	assert.Equal(t, "+15550100", mr.HGet("users:"+testUID, "phoneNum"))
	assert.Equal(t, "alice", mr.HGet("users:"+testUID, "usernameKey"))
	assert.Equal(t, "0", mr.HGet("users:"+testUID, "steps:today:2024-01-01"))
	assert.Equal(t, "Alice", mr.HGet("public_profiles:"+testUID, "username"))
	assert.Equal(t, "0", mr.HGet("public_profiles:"+testUID, "steps"))
}

func TestSetupValidationHitsNoStore(t *testing.T) {
	_, store, w := setupWorkflow(t)
	ctx := context.Background()

	var fieldErr *identity.FieldError
	err := w.Setup(ctx, testUID, "ab", testPhone)
	assert.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "username", fieldErr.Field)

	err = w.Setup(ctx, testUID, "alice", "123")
	assert.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "phone", fieldErr.Field)

	assert.Empty(t, store.claimed)
}

func TestSetupUsernameConflict(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	mr.Set("usernames:alice", otherUID)

	err := w.Setup(ctx, testUID, "Alice", testPhone)
	assert.True(t, errors.Is(err, ErrUsernameTaken))

	// Nothing else was touched: no phone claim, no records.
	assert.False(t, mr.Exists(phoneKey(testPhone)))
	assert.False(t, mr.Exists("users:"+testUID))

	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, otherUID, owner)
}

func TestSetupPhoneConflictReleasesUsername(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	mr.Set(phoneKey(testPhone), otherUID)

	err := w.Setup(ctx, testUID, "Alice", testPhone)
	assert.True(t, errors.Is(err, ErrPhoneTaken))

	// The username claim acquired earlier in this call must be rolled back.
	assert.False(t, mr.Exists("usernames:alice"))

	owner, _ := mr.Get(phoneKey(testPhone))
	assert.Equal(t, otherUID, owner)
}

func TestSetupPrivateWriteFailureReleasesBothClaims(t *testing.T) {
	mr, store, w := setupWorkflow(t)
	ctx := context.Background()

	store.failSet["users:"+testUID] = errors.New("store unavailable")

	err := w.Setup(ctx, testUID, "Alice", testPhone)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUsernameTaken))

	assert.False(t, mr.Exists("usernames:alice"))
	assert.False(t, mr.Exists(phoneKey(testPhone)))
}

func TestSetupPublicWriteFailureReleasesBothClaims(t *testing.T) {
	mr, store, w := setupWorkflow(t)
	ctx := context.Background()

	store.failSet["public_profiles:"+testUID] = errors.New("store unavailable")

	err := w.Setup(ctx, testUID, "alice", testPhone)
	assert.Error(t, err)

	// Rollback completeness: both index entries must end up empty, even
	// though both claims had committed before the public write failed.
	assert.False(t, mr.Exists("usernames:alice"))
	assert.False(t, mr.Exists(phoneKey(testPhone)))

	// The private record may survive as documented partial state; no claim
	// points at it.
	assert.True(t, mr.Exists("users:"+testUID))
}

func TestEditNoChangesSkipsEverything(t *testing.T) {
	mr, store, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	claimsBefore := len(store.claimed)

	// Cosmetic rewrites of the same normalized identity are not changes.
	assert.NoError(t, w.Edit(ctx, testUID, "  ALICE ", "+1 555 0100"))

	assert.Equal(t, claimsBefore, len(store.claimed))
	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)
}

func TestEditUnchangedUsernameNotReclaimedNorReleased(t *testing.T) {
	mr, store, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))

	assert.NoError(t, w.Edit(ctx, testUID, "alice", "+1 555-0199"))

	// Username key claimed exactly once (during setup), never released.
	assert.Equal(t, 1, store.claimCount("usernames:alice"))
	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)

	// Old phone claim released, new one held.
	assert.False(t, mr.Exists(phoneKey(testPhone)))
	owner, _ = mr.Get(phoneKey("+1 555-0199"))
	assert.Equal(t, testUID, owner)
}

func TestEditReleasesSupersededClaims(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	assert.NoError(t, w.Edit(ctx, testUID, "Bob", testPhone))

	assert.False(t, mr.Exists("usernames:alice"))
	owner, _ := mr.Get("usernames:bob")
	assert.Equal(t, testUID, owner)

	assert.Equal(t, "Bob", mr.HGet("users:"+testUID, "username"))
	assert.Equal(t, "bob", mr.HGet("users:"+testUID, "usernameKey"))
	assert.Equal(t, "Bob", mr.HGet("public_profiles:"+testUID, "username"))
}

func TestEditPhoneConflictKeepsOldClaimsReleasesNew(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	mr.Set(phoneKey("+1 555-0999"), otherUID)

	err := w.Edit(ctx, testUID, "Bob", "+1 555-0999")
	assert.True(t, errors.Is(err, ErrPhoneTaken))

	// The new username claim from this call was rolled back; the claims
	// the user held before the call are untouched.
	assert.False(t, mr.Exists("usernames:bob"))
	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)
	owner, _ = mr.Get(phoneKey(testPhone))
	assert.Equal(t, testUID, owner)
}

func TestEditWriteFailureReleasesOnlyNewClaims(t *testing.T) {
	mr, store, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	store.failUpdate["users:"+testUID] = errors.New("store unavailable")

	err := w.Edit(ctx, testUID, "Bob", "+1 555-0999")
	assert.Error(t, err)

	assert.False(t, mr.Exists("usernames:bob"))
	assert.False(t, mr.Exists(phoneKey("+1 555-0999")))

	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)
	owner, _ = mr.Get(phoneKey(testPhone))
	assert.Equal(t, testUID, owner)
}

func TestDeleteRemovesRecordsThenClaims(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	assert.NoError(t, w.Delete(ctx, testUID))

	assert.False(t, mr.Exists("users:"+testUID))
	assert.False(t, mr.Exists("public_profiles:"+testUID))
	assert.False(t, mr.Exists("usernames:alice"))
	assert.False(t, mr.Exists(phoneKey(testPhone)))
}

func TestDeleteMissingProfileIsNoop(t *testing.T) {
	_, _, w := setupWorkflow(t)

	assert.NoError(t, w.Delete(context.Background(), "ghost"))
}

func TestReconcileReleasesOrphansOnly(t *testing.T) {
	mr, _, w := setupWorkflow(t)
	ctx := context.Background()

	// A healthy user and two orphaned claims from a crashed commit.
	assert.NoError(t, w.Setup(ctx, testUID, "Alice", testPhone))
	mr.Set("usernames:ghost", "uid-ghost")
	mr.Set("phone_index:feedface", "uid-ghost")

	released, err := w.Reconcile(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, released)

	assert.False(t, mr.Exists("usernames:ghost"))
	assert.False(t, mr.Exists("phone_index:feedface"))

	owner, _ := mr.Get("usernames:alice")
	assert.Equal(t, testUID, owner)
	owner, _ = mr.Get(phoneKey(testPhone))
	assert.Equal(t, testUID, owner)
}

func TestCommitInFlightRejected(t *testing.T) {
	_, _, w := setupWorkflow(t)

	assert.NoError(t, w.begin(testUID))
	defer w.end(testUID)

	err := w.Setup(context.Background(), testUID, "Alice", testPhone)
	assert.True(t, errors.Is(err, ErrCommitInFlight))
}
