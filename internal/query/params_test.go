package query

import (
	"encoding/json"
	"testing"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromMap_CoercesLooseTypes(t *testing.T) {
	p, err := ParamsFromMap(map[string]any{
		"addressString": "1207 Douglas",
		"maxResults":    "5",
		"minScore":      float64(60),
		"setBack":       json.Number("3"),
		"echo":          "false",
		"extrapolate":   true,
		"civicNumber":   float64(1207),
		"unknownColumn": "ignored",
		"yourId":        nil,
	})
	require.NoError(t, err)

	require.NotNil(t, p.MaxResults)
	assert.Equal(t, 5, *p.MaxResults)
	assert.Equal(t, 60, *p.MinScore)
	assert.Equal(t, 3, *p.SetBack)
	assert.False(t, *p.Echo)
	assert.True(t, *p.Extrapolate)
	assert.Equal(t, "1207", *p.CivicNumber)
	assert.Nil(t, p.YourID)
}

func TestParamsFromMap_BlankCellsLeaveNumbersUnset(t *testing.T) {
	p, err := ParamsFromMap(map[string]any{"maxResults": " ", "echo": ""})
	require.NoError(t, err)
	assert.Nil(t, p.MaxResults)
	assert.Nil(t, p.Echo)
}

func TestParamsFromMap_Malformed(t *testing.T) {
	for name, v := range map[string]any{
		"maxResults":    "ten",
		"minScore":      1.5,
		"echo":          "maybe",
		"addressString": []any{"a"},
	} {
		_, err := ParamsFromMap(map[string]any{name: v})
		require.Error(t, err, name)
		assert.True(t, domain.IsParameterError(err), name)
	}
}

func TestParamsFromMap_WholeNumbersAgreeAcrossDecoders(t *testing.T) {
	for _, v := range []any{json.Number("5.0"), float64(5), json.Number("5"), "5"} {
		p, err := ParamsFromMap(map[string]any{"maxResults": v})
		require.NoError(t, err, "%#v", v)
		require.NotNil(t, p.MaxResults)
		assert.Equal(t, 5, *p.MaxResults, "%#v", v)
	}

	for _, v := range []any{json.Number("5.5"), float64(5.5), json.Number("1e400")} {
		_, err := ParamsFromMap(map[string]any{"maxResults": v})
		require.Error(t, err, "%#v", v)
		assert.True(t, domain.IsParameterError(err))
	}
}

func TestParams_ValidateNamesParameter(t *testing.T) {
	n := 2000
	err := Params{MaxResults: &n}.Validate()
	require.Error(t, err)
	assert.Equal(t, "maxResults: must be at most 1000", err.Error())

	zero := 0
	assert.NoError(t, Params{MinScore: &zero, SetBack: &zero, MaxDistance: &zero}.Validate())
	assert.NoError(t, Params{}.Validate())
}

func TestParamNames_CoverEveryField(t *testing.T) {
	assert.Len(t, ParamNames(), 29)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,,b, "))
	assert.Nil(t, splitList(""))
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("parcelPoint", "srid=4326; point( -123.5 48.25 )", domain.SRIDBCAlbers)
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: -123.5, Y: 48.25, SRID: 4326}, p)

	p, err = parsePoint("parcelPoint", "POINT(1 2)", domain.SRIDBCAlbers)
	require.NoError(t, err)
	assert.Equal(t, domain.SRIDBCAlbers, p.SRID)
}
