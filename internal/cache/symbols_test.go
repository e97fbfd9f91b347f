package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/models"
)

type stubSource struct {
	calls   int
	symbols []models.Symbol
	err     error
}

func (s *stubSource) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	s.calls++
	return s.symbols, s.err
}

var sample = []models.Symbol{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"},
	{Symbol: "MSFT", Name: "Microsoft", Exchange: "NASDAQ"},
}

func TestNewCachingSymbolSourceDefaults(t *testing.T) {
	t.Parallel()

	c := NewCachingSymbolSource(nil, 0, &stubSource{}, "")
	assert.Equal(t, time.Hour, c.ttl)
	assert.Equal(t, "symbols", c.namespace)

	c = NewCachingSymbolSource(nil, time.Minute, &stubSource{}, "custom")
	assert.Equal(t, time.Minute, c.ttl)
	assert.Equal(t, "custom:list", c.key())
}

func TestNilClientBypassesCache(t *testing.T) {
	t.Parallel()

	inner := &stubSource{symbols: sample}
	c := NewCachingSymbolSource(nil, time.Minute, inner, "")

	for i := 0; i < 2; i++ {
		got, err := c.ListSymbols(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	}
	assert.Equal(t, 2, inner.calls)
	assert.NoError(t, c.Invalidate(context.Background()))
}

func TestCacheHit(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	b, _ := json.Marshal(sample)
	mock.ExpectGet("symbols:list").SetVal(string(b))

	inner := &stubSource{}
	c := NewCachingSymbolSource(db, time.Minute, inner, "")
	got, err := c.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.Equal(t, 0, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheMissStores(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	b, _ := json.Marshal(sample)
	mock.ExpectGet("symbols:list").RedisNil()
	mock.ExpectSet("symbols:list", b, time.Minute).SetVal("OK")

	inner := &stubSource{symbols: sample}
	c := NewCachingSymbolSource(db, time.Minute, inner, "")
	got, err := c.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorruptEntryIsDeleted(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	b, _ := json.Marshal(sample)
	mock.ExpectGet("symbols:list").SetVal("{not json")
	mock.ExpectDel("symbols:list").SetVal(1)
	mock.ExpectSet("symbols:list", b, time.Minute).SetVal("OK")

	c := NewCachingSymbolSource(db, time.Minute, &stubSource{symbols: sample}, "")
	got, err := c.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInnerErrorNotCached(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("symbols:list").RedisNil()

	c := NewCachingSymbolSource(db, time.Minute, &stubSource{err: errors.New("backend down")}, "")
	_, err := c.ListSymbols(context.Background())
	assert.EqualError(t, err, "backend down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisClientEmptyAddr(t *testing.T) {
	t.Parallel()

	rdb, err := NewRedisClient(context.Background(), "", "", nil)
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
