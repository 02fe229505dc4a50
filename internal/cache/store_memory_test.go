package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/sentinel"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), 0))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_PassiveExpiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Hour))

	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	// Advance past the ttl: the entry reads as expired without any purge
	// having run.
	now = now.Add(2 * time.Hour)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestInMemoryStore_CopiesValues(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	in := []byte("original")
	require.NoError(t, s.Put(ctx, "k", in, 0))
	in[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestKey_ScopesPerWidget(t *testing.T) {
	assert.Equal(t, "cg:w1:consent", Key("w1", "consent"))
	assert.NotEqual(t, Key("w1", "consent"), Key("w2", "consent"))
}

func TestJSONHelpers(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	type record struct {
		Name string `json:"name"`
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, PutJSON(ctx, s, "k", record{Name: "x"}, 0))
		var out record
		require.NoError(t, GetJSON(ctx, s, "k", &out))
		assert.Equal(t, "x", out.Name)
	})

	t.Run("refuses oversized writes", func(t *testing.T) {
		err := PutJSON(ctx, s, "big", record{Name: strings.Repeat("a", MaxEntrySize)}, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTooLarge))
	})

	t.Run("tampered bytes read as not found", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "bad", []byte("{not json"), 0))
		var out record
		err := GetJSON(ctx, s, "bad", &out)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
