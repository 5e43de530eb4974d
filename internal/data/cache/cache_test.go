package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok := c.Get(ctx, "fng")
	assert.False(t, ok)

	payload := []byte(`{"value":42}`)
	c.Set(ctx, "fng", payload, 0)
	payload[0] = 'X'
	got, ok := c.Get(ctx, "fng")
	require.True(t, ok)
	assert.Equal(t, `{"value":42}`, string(got), "stored value is a copy")

	c.Set(ctx, "short", []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	c := NewRedis(client, "cryptorank:", time.Second)

	mock.ExpectSet("cryptorank:fng", []byte("payload"), time.Hour).SetVal("OK")
	c.Set(ctx, "fng", []byte("payload"), time.Hour)

	mock.ExpectGet("cryptorank:fng").SetVal("payload")
	got, ok := c.Get(ctx, "fng")
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	mock.ExpectGet("cryptorank:missing").RedisNil()
	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	mock.ExpectGet("cryptorank:broken").SetErr(errors.New("connection refused"))
	_, ok = c.Get(ctx, "broken")
	assert.False(t, ok)

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, c.Ping(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_FallsBackToMemory(t *testing.T) {
	_, ok := New(Config{}).(*Memory)
	assert.True(t, ok)
}

type hitCounter struct{ hits, misses int }

func (h *hitCounter) RecordCache(_ string, hit bool) {
	if hit {
		h.hits++
		return
	}
	h.misses++
}

func TestObserve_CountsLookups(t *testing.T) {
	ctx := context.Background()
	rec := &hitCounter{}
	c := Observe(NewMemory(), "sentiment", rec)

	_, ok := c.Get(ctx, "fng")
	assert.False(t, ok)
	c.Set(ctx, "fng", []byte("1"), time.Minute)
	_, ok = c.Get(ctx, "fng")
	assert.True(t, ok)

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Nil(t, Observe(nil, "x", rec))
}
