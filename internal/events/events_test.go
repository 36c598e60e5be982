package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinimalPayloadHasNilOptionalFields(t *testing.T) {
	raw := Raw{"_time": "1488974400.0", "_bkt": "idx~0", "_cd": "0:1"}
	rec, err := Parse(raw, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1488974400.0, rec.Timestamp)
	assert.Nil(t, rec.EventType)
	assert.Nil(t, rec.MsgTitle)
	assert.Nil(t, rec.MsgText)
	assert.Nil(t, rec.SourceTypeName)
}

func TestParseMissingTimeFails(t *testing.T) {
	_, err := Parse(Raw{}, nil, 0)
	require.Error(t, err)
}

func TestParseAllDeduplicatesWithinCycle(t *testing.T) {
	raws := []Raw{
		{"_time": "100", "_bkt": "idx~0", "_cd": "0:1"},
		{"_time": "100", "_bkt": "idx~0", "_cd": "0:1"},
		{"_time": "200", "_bkt": "idx~0", "_cd": "0:2"},
	}
	records, duplicates, err := ParseAll(raws, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, duplicates)
}

func TestParseFallsBackToHashButStaysDistinctByOrdinal(t *testing.T) {
	rec1, err := Parse(Raw{"_time": "100", "field": "a"}, nil, 0)
	require.NoError(t, err)
	rec2, err := Parse(Raw{"_time": "100", "field": "a"}, nil, 1)
	require.NoError(t, err)
	assert.NotEqual(t, rec1.DedupKey, rec2.DedupKey)
}

func TestParseAllKeepsDistinctSameTimestampEventsWithoutBktCd(t *testing.T) {
	raws := []Raw{
		{"_time": "100", "field": "a"},
		{"_time": "100", "field": "a"},
	}
	records, duplicates, err := ParseAll(raws, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 0, duplicates)
}

func TestParseMergesInstanceTags(t *testing.T) {
	rec, err := Parse(Raw{"_time": "1"}, []string{"env:prod"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"env:prod"}, rec.Tags)
}

func TestParseAcceptsISO8601Time(t *testing.T) {
	rec, err := Parse(Raw{"_time": "2017-03-08T18:29:59.000000+0000"}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1488997799.0, rec.Timestamp)
}

func TestParseRejectsGarbageTime(t *testing.T) {
	_, err := Parse(Raw{"_time": "not-a-time"}, nil, 0)
	require.Error(t, err)
}
