package domain

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_FixedOrder(t *testing.T) {
	names := AttributeNames()
	require.Len(t, names, 38)
	assert.Equal(t, "yourId", names[0])
	assert.Equal(t, "fullAddress", names[1])
	assert.Equal(t, "location", names[23])
	assert.Equal(t, "executionTime", names[36])
	assert.Equal(t, "internalSequenceId", names[37])

	// Values and Strings line up with the schema.
	assert.Len(t, Record{}.Values(), len(names))
	assert.Len(t, Record{}.Strings(), len(names))
}

func TestRecord_JSONKeysFollowAttributeOrder(t *testing.T) {
	data, err := json.Marshal(Record{})
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(data))
	_, err = dec.Token() // opening brace
	require.NoError(t, err)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, AttributeNames(), keys)
}

func TestRecord_EmptyRecordEmitsExplicitNulls(t *testing.T) {
	data, err := json.Marshal(Record{})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Len(t, m, 38)
	assert.Equal(t, "", m["siteName"])
	assert.Nil(t, m["matchPrecision"])
	assert.Nil(t, m["location"])
	assert.Nil(t, m["blockID"])
	assert.Nil(t, m["siteRetireDate"])
	assert.Nil(t, m["degree"])
	assert.Equal(t, false, m["isOfficial"])
}

func TestRecord_Strings(t *testing.T) {
	blockID := 7
	retired := NewDate(2021, 3, 4)
	r := Record{
		Score:          92,
		MatchPrecision: PrecisionCivicNumber,
		Location:       &Point{X: 1195431.5, Y: 383043.25, SRID: SRIDBCAlbers},
		BlockID:        &blockID,
		SiteStatus:     StatusActive,
		SiteRetireDate: &retired,
		IsOfficial:     true,
		ExecutionTime:  12.5,
	}

	out := r.Strings()
	assert.Equal(t, "92", out[3])
	assert.Equal(t, "CIVIC_NUMBER", out[4])
	assert.Equal(t, "false", out[15])
	assert.Equal(t, "", out[20]) // localityType unknown
	assert.Equal(t, "SRID=3005;POINT(1195431.5 383043.25)", out[23])
	assert.Equal(t, "7", out[27])
	assert.Equal(t, "ACTIVE", out[31])
	assert.Equal(t, "2021-03-04", out[32])
	assert.Equal(t, "", out[33])
	assert.Equal(t, "true", out[34])
	assert.Equal(t, "", out[35])
	assert.Equal(t, "12.500", out[36])
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := NewDate(2019, 12, 31)
	data, err := json.Marshal(&d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2019-12-31"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(back.Time))
}
