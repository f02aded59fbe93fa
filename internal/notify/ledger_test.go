package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLedger_ClaimOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLedger(rdb, time.Hour)
	ctx := context.Background()

	ok, err := l.Claim(ctx, "new-opportunity:1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(ctx, "new-opportunity:1", "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Claim(ctx, "new-opportunity:2", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Hour, mr.TTL("beacon:sent:new-opportunity:1:a@example.com"))

	require.NoError(t, l.Release(ctx, "new-opportunity:1", "a@example.com"))
	ok, err = l.Claim(ctx, "new-opportunity:1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLedger_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLedger(rdb, time.Minute)
	ctx := context.Background()

	_, err := l.Claim(ctx, "k", "a@example.com")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := l.Claim(ctx, "k", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLedger_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLedger(db, 0)

	mock.ExpectSetNX("beacon:sent:k:a@example.com", 1, DefaultLedgerTTL).SetErr(errors.New("connection refused"))
	_, err := l.Claim(context.Background(), "k", "a@example.com")
	assert.Error(t, err)

	mock.ExpectDel("beacon:sent:k:a@example.com").SetErr(errors.New("connection refused"))
	assert.Error(t, l.Release(context.Background(), "k", "a@example.com"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
