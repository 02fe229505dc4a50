//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/platform/config"
	"consentgate/pkg/platform/sentinel"
	"consentgate/pkg/testutil/containers"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	store, err := NewRedisStoreFromConfig(config.RedisConfig{
		URL:          rc.Addr,
		PoolSize:     5,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, store)
	return store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	key := Key("widget-1", "consent")

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Put(ctx, key, []byte(`{"status":"accepted"}`), time.Minute))
	raw, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"accepted"}`, string(raw))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRedisStore_ExpiryIsAMiss(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	key := Key("widget-1", "age-session")

	require.NoError(t, store.Put(ctx, key, []byte("pending"), 50*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, key)
		return err != nil
	}, 2*time.Second, 25*time.Millisecond)
	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRedisStore_JSONHelpers(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	key := Key("widget-1", "visitor-id")

	type visitor struct {
		ID string `json:"id"`
	}
	require.NoError(t, PutJSON(ctx, store, key, visitor{ID: "dv-1"}, time.Minute))

	var got visitor
	require.NoError(t, GetJSON(ctx, store, key, &got))
	assert.Equal(t, "dv-1", got.ID)

	// Tampered bytes read as a miss, not a failure.
	require.NoError(t, store.Put(ctx, key, []byte("{broken"), time.Minute))
	err := GetJSON(ctx, store, key, &got)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
