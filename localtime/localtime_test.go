package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNaiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	got, err := Parse("2025-11-10T09:00:00", loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 11, 10, 9, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestParseAwareConvertsToLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	got, err := Parse("2025-11-10T08:00:00Z", loc)
	require.NoError(t, err)

	assert.Equal(t, 9, got.Hour())
	assert.True(t, got.Equal(time.Date(2025, 11, 10, 8, 0, 0, 0, time.UTC)))
}

func TestParseMixedNaiveAndAwareCompare(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	naive, err := Parse("2025-11-10 10:00", loc)
	require.NoError(t, err)
	aware, err := Parse("2025-11-10T09:30:00+00:00", loc)
	require.NoError(t, err)

	assert.True(t, aware.After(naive))
}

func TestParseDateOnly(t *testing.T) {
	got, err := Parse("2025-11-10", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("next tuesday", time.UTC)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse("  ", time.UTC)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "08:00", want: Clock{Hour: 8}},
		{in: "7:30", want: Clock{Hour: 7, Minute: 30}},
		{in: "21", want: Clock{Hour: 21}},
		{in: "24:00", wantErr: true},
		{in: "12:61", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockOn(t *testing.T) {
	day := time.Date(2025, 3, 4, 17, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 4, 8, 5, 0, 0, time.UTC), Clock{Hour: 8, Minute: 5}.On(day))
	assert.Equal(t, "08:05", Clock{Hour: 8, Minute: 5}.String())
}

func TestSameDateAndWithin(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	a := time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC) // 00:30 on the 5th in CET
	b := time.Date(2025, 3, 5, 10, 0, 0, 0, loc)

	assert.True(t, SameDate(a, b, loc))
	assert.False(t, SameDate(a, b, time.UTC))

	start := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	assert.True(t, Within(start, start, end))
	assert.True(t, Within(end, start, end))
	assert.False(t, Within(end.Add(time.Second), start, end))
}
