package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		table     string
		timestamp int64
	}{
		{
			name:      "casts export",
			key:       "public-postgres/farcaster/v2/incremental/farcaster-casts-1713100000-1713103600.parquet",
			table:     "farcaster_casts",
			timestamp: 1713103600000,
		},
		{
			name:      "underscored tag",
			key:       "x/farcaster-profile_with_addresses-0-1700000000.parquet",
			table:     "farcaster_profile_with_addresses",
			timestamp: 1700000000000,
		},
		{
			name:      "wrong extension",
			key:       "x/farcaster-casts-1-2.csv",
			table:     UnknownTable,
			timestamp: 0,
		},
		{
			name:      "missing window",
			key:       "x/farcaster-casts.parquet",
			table:     UnknownTable,
			timestamp: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := ParseKey(tt.key)
			assert.Equal(t, tt.key, k.Raw)
			assert.Equal(t, tt.table, k.Table)
			assert.Equal(t, tt.timestamp, k.Timestamp)
		})
	}
}

func TestFormatKey_RoundTrip(t *testing.T) {
	for _, typ := range All() {
		d := MustDescribe(typ)
		tag := d.StagingTable[len("farcaster_"):]

		for _, end := range []int64{1, 1700000000, 4102444800} {
			key := FormatKey(d.Prefix, tag, end/2, end)
			parsed := ParseKey(key)
			assert.Equal(t, end*1000, parsed.Timestamp, key)
			assert.Equal(t, d.StagingTable, parsed.Table, key)
			assert.True(t, IsParquet(key))
		}
	}
}

func TestParse(t *testing.T) {
	typ, err := Parse("channel-members")
	require.NoError(t, err)
	assert.Equal(t, ChannelMembers, typ)

	_, err = Parse("reactions")
	require.Error(t, err)
}

func TestDescriptorRelations(t *testing.T) {
	d := MustDescribe(Profiles)
	assert.Equal(t, "staging.farcaster_profile_with_addresses", d.StagingRelation())
	assert.Equal(t, "production.farcaster_profile", d.ProductionRelation())
}
