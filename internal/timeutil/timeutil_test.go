package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCanonical(t *testing.T) {
	seconds, err := ParseSeconds("2017-03-08T18:29:59.000000+0000")
	require.NoError(t, err)
	assert.Equal(t, "2017-03-08T18:29:59.000000+0000", Format(seconds))
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"2017-03-08T00:00:01.000000+0000",
		"2017-03-08T23:59:59.999999+0000",
		"1970-01-01T00:00:00.000000+0000",
	}
	for _, c := range cases {
		seconds, err := ParseSeconds(c)
		require.NoError(t, err)
		assert.Equal(t, c, Format(seconds))
	}
}

func TestParseSecondsAcceptsTimezoneOffsets(t *testing.T) {
	seconds, err := ParseSeconds("2016-06-27T14:26:30.000+02:00")
	require.NoError(t, err)
	assert.InDelta(t, 1467030390.0, seconds, 0.001)
}

func TestChunks(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5, 6, 7}
	got := Chunks(xs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, got[0])
	assert.Equal(t, []int{4, 5, 6}, got[1])
	assert.Equal(t, []int{7}, got[2])
}

func TestChunksEmpty(t *testing.T) {
	assert.Nil(t, Chunks([]int{}, 3))
}

func TestChunksExactMultiple(t *testing.T) {
	got := Chunks([]int{1, 2, 3, 4}, 2)
	require.Len(t, got, 2)
}
