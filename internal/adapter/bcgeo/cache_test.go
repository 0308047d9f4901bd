package bcgeo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result domain.SearchResults
	err    error
}

func (m *countingGeocoder) Geocode(_ context.Context, _ domain.Query) (domain.SearchResults, error) {
	m.calls++
	return m.result, m.err
}

func (m *countingGeocoder) EngineConfig() domain.EngineConfig { return domain.DefaultEngineConfig() }

func (m *countingGeocoder) PresentationConfig() *domain.PresentationConfig { return nil }

func oneMatch(name string) domain.SearchResults {
	civic := 1207
	return domain.SearchResults{
		Matches: []domain.MatchResult{domain.NewAddressMatch(domain.MatchResult{
			Score:         97,
			Precision:     domain.PrecisionCivicNumber,
			AddressString: name,
			Location:      &domain.Point{X: 1195431.2, Y: 383043.9, SRID: domain.SRIDBCAlbers},
		}, domain.Address{CivicNumber: &civic, StreetName: "Douglas", Primary: true})},
		ExecutionTime:   2.5,
		SearchTimestamp: time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}
}

func query(addr string) domain.Query {
	return domain.Query{AddressString: addr, MaxResults: 1, Echo: true, ProvinceCode: "BC"}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_MemoryHit(t *testing.T) {
	inner := &countingGeocoder{result: oneMatch("1207 Douglas St")}
	cached := NewCachedGeocoder(inner, 10, nil, 0, testMetrics(), testLogger())

	r1, err := cached.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)
	r2, err := cached.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedGeocoder_DifferentQueriesMiss(t *testing.T) {
	inner := &countingGeocoder{result: oneMatch("x")}
	cached := NewCachedGeocoder(inner, 10, nil, 0, testMetrics(), testLogger())

	_, _ = cached.Geocode(context.Background(), query("1207 Douglas"))
	q := query("1207 Douglas")
	q.YourID = "other-row"
	_, _ = cached.Geocode(context.Background(), q)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, nil, 0, testMetrics(), testLogger())

	_, _ = cached.Geocode(context.Background(), query("nowhere"))
	_, _ = cached.Geocode(context.Background(), query("nowhere"))
	assert.Equal(t, 2, inner.calls)

	inner.err = errors.New("unavailable")
	_, err := cached.Geocode(context.Background(), query("somewhere"))
	require.Error(t, err)
	assert.Zero(t, cached.cache.size())
}

func TestCachedGeocoder_SharedLayerServesOtherInstances(t *testing.T) {
	mr, client := newRedis(t)
	innerA := &countingGeocoder{result: oneMatch("1207 Douglas St, Victoria, BC")}
	innerB := &countingGeocoder{}

	a := NewCachedGeocoder(innerA, 10, client, time.Hour, testMetrics(), testLogger())
	b := NewCachedGeocoder(innerB, 10, client, time.Hour, testMetrics(), testLogger())

	want, err := a.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	got, err := b.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)
	assert.Zero(t, innerB.calls)

	require.Len(t, got.Matches, 1)
	assert.Equal(t, want.Matches[0].AddressString, got.Matches[0].AddressString)
	assert.Equal(t, *want.Matches[0].Location, *got.Matches[0].Location)
	assert.Equal(t, 1207, *got.Matches[0].Address.CivicNumber)
	assert.Equal(t, domain.MatchKindAddress, got.Matches[0].Kind)
	assert.InDelta(t, 2.5, got.ExecutionTime, 0)
	assert.True(t, want.SearchTimestamp.Equal(got.SearchTimestamp))
}

func TestCachedGeocoder_SharedEntryExpires(t *testing.T) {
	mr, client := newRedis(t)
	inner := &countingGeocoder{result: oneMatch("x")}
	writer := NewCachedGeocoder(inner, 10, client, time.Minute, testMetrics(), testLogger())
	_, err := writer.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	reader := NewCachedGeocoder(inner, 10, client, time.Minute, testMetrics(), testLogger())
	_, err = reader.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_RedisDownFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingGeocoder{result: oneMatch("x")}
	cached := NewCachedGeocoder(inner, 10, client, time.Minute, testMetrics(), testLogger())

	sr, err := cached.Geocode(context.Background(), query("1207 Douglas"))
	require.NoError(t, err)
	assert.Len(t, sr.Matches, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_DelegatesConfig(t *testing.T) {
	cached := NewCachedGeocoder(&countingGeocoder{}, 10, nil, 0, testMetrics(), testLogger())
	assert.Equal(t, domain.DefaultEngineConfig(), cached.EngineConfig())
	assert.Nil(t, cached.PresentationConfig())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", domain.SearchResults{ExecutionTime: 1})
	c.put("b", domain.SearchResults{ExecutionTime: 2})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.InDelta(t, 1, result.ExecutionTime, 0)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.SearchResults{ExecutionTime: 1})
	c.put("b", domain.SearchResults{ExecutionTime: 2})
	c.put("c", domain.SearchResults{ExecutionTime: 3}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.SearchResults{ExecutionTime: 1})
	c.put("b", domain.SearchResults{ExecutionTime: 2})

	c.get("a")

	// "b" is now least recently used.
	c.put("c", domain.SearchResults{ExecutionTime: 3})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.SearchResults{ExecutionTime: 1})
	c.put("a", domain.SearchResults{ExecutionTime: 2})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.InDelta(t, 2, result.ExecutionTime, 0)
	assert.Equal(t, 1, c.size())
}
