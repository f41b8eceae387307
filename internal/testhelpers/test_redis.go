package testhelpers

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ITAMARV101/duowalk/internal/keystore"
)

// SetupTestStore runs a miniredis instance and returns a keystore backed by
// it, plus the miniredis handle for direct assertions.
func SetupTestStore(t *testing.T) (*miniredis.Miniredis, *keystore.RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, keystore.NewRedisStore(client)
}
