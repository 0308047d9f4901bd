package dummy_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/dummy"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultQuery() domain.Query {
	return domain.Query{
		MaxResults:         1,
		Echo:               true,
		Interpolation:      domain.InterpolationAdaptive,
		LocationDescriptor: domain.DescriptorAny,
		ProvinceCode:       "BC",
	}
}

func TestResults_CivicAddress(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "1207 Douglas St, Victoria"
	q.YourID = "r1"

	sr := dummy.Results(q)

	require.Len(t, sr.Matches, 1)
	m := sr.Matches[0]
	assert.Equal(t, domain.MatchKindAddress, m.Kind)
	require.NotNil(t, m.Address)
	require.NotNil(t, m.Address.CivicNumber)
	assert.Equal(t, 1207, *m.Address.CivicNumber)
	assert.Equal(t, "Douglas", m.Address.StreetName)
	assert.Equal(t, "St", m.Address.StreetType)
	assert.Equal(t, "Victoria", m.LocalityName)
	assert.Equal(t, "1207 Douglas St, Victoria, BC", m.AddressString)
	assert.Equal(t, domain.PrecisionCivicNumber, m.Precision)
	assert.Equal(t, domain.DescriptorParcelPoint, m.LocationDescriptor)
	assert.Equal(t, "r1", m.YourID)
	assert.NotEmpty(t, m.Address.SiteID)
	assert.GreaterOrEqual(t, sr.ExecutionTime, 0.0)
}

func TestResults_Deterministic(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "1207 Douglas St, Victoria"

	a := dummy.Results(q).Matches[0]
	b := dummy.Results(q).Matches[0]
	assert.Equal(t, a.Address.SiteID, b.Address.SiteID)
}

func TestResults_Intersection(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "Douglas St & Yates St, Victoria"

	m := dummy.Results(q).Matches[0]

	assert.Equal(t, domain.MatchKindIntersection, m.Kind)
	require.NotNil(t, m.Intersection)
	assert.Equal(t, "Douglas St and Yates St", m.Intersection.Name)
	assert.NotEmpty(t, m.Intersection.ID)
	require.NotNil(t, m.Intersection.Degree)
	assert.Equal(t, 4, *m.Intersection.Degree)
	assert.Nil(t, m.Address)
}

func TestResults_StreetOnly(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "Douglas"

	m := dummy.Results(q).Matches[0]
	assert.Equal(t, domain.PrecisionStreet, m.Precision)
	assert.Nil(t, m.Address.CivicNumber)
	assert.Equal(t, "[CIVIC_NUMBER.missing:10]", m.Faults.String())
}

func TestResults_StructuredFields(t *testing.T) {
	q := defaultQuery()
	q.CivicNumber = "525"
	q.StreetName = "Superior"
	q.StreetType = "St"
	q.LocalityName = "Victoria"

	m := dummy.Results(q).Matches[0]
	assert.Equal(t, 525, *m.Address.CivicNumber)
	assert.Equal(t, "Superior", m.Address.StreetName)
	assert.Equal(t, "Victoria", m.LocalityName)
}

func TestResults_MaxResultsAndFilters(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "1207 Douglas St, Victoria"
	q.MaxResults = 5
	assert.Len(t, dummy.Results(q).Matches, 2)

	q.MatchPrecisionNot = []domain.MatchPrecision{domain.PrecisionLocality}
	assert.Len(t, dummy.Results(q).Matches, 1)

	q.MatchPrecisionNot = nil
	q.MinScore = 80
	assert.Len(t, dummy.Results(q).Matches, 1)

	q.MinScore = 0
	q.NotLocalities = []string{"victoria"}
	assert.Empty(t, dummy.Results(q).Matches)
}

func TestResults_ExtrapolateUsesParcelPoint(t *testing.T) {
	q := defaultQuery()
	q.AddressString = "525 Superior St, Victoria"
	q.Extrapolate = true
	q.ParcelPoint = &domain.Point{X: 1194000, Y: 381000, SRID: domain.SRIDBCAlbers}

	m := dummy.Results(q).Matches[0]
	assert.Equal(t, *q.ParcelPoint, *m.Location)
}

func TestResults_ExecutionTimeFromClock(t *testing.T) {
	fake := clockwork.NewFakeClock()
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	q := defaultQuery()
	q.AddressString = "1207 Douglas"
	sr := dummy.Results(q)

	assert.InDelta(t, 0.0, sr.ExecutionTime, 0)
	assert.Equal(t, fake.Now(), sr.SearchTimestamp)
}

func TestGeocoder_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dummy.New().Geocode(ctx, defaultQuery())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeocoder_Config(t *testing.T) {
	g := dummy.New()
	assert.Equal(t, domain.DefaultEngineConfig(), g.EngineConfig())
	assert.Nil(t, g.PresentationConfig())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sr, err := g.Geocode(ctx, defaultQuery())
	require.NoError(t, err)
	assert.Len(t, sr.Matches, 1)
	assert.Equal(t, domain.PrecisionProvince, sr.Matches[0].Precision)
}
