package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekendSafeEnd(t *testing.T) {
	sat := mustParse(t, "2025-09-06")
	sun := mustParse(t, "2025-09-07")
	fri := mustParse(t, "2025-09-05")

	assert.Equal(t, fri, WeekendSafeEnd(sat))
	assert.Equal(t, fri, WeekendSafeEnd(sun))
	assert.Equal(t, time.Friday, WeekendSafeEnd(sat).Weekday())
	assert.Equal(t, fri, WeekendSafeEnd(fri))

	wed := mustParse(t, "2025-09-03")
	assert.Equal(t, wed, WeekendSafeEnd(wed))
}

func TestWeekendSafeEnd_Idempotent(t *testing.T) {
	d := mustParse(t, "2024-01-01")
	for i := 0; i < 14; i++ {
		once := WeekendSafeEnd(d)
		assert.Equal(t, once, WeekendSafeEnd(once), d.Format(Layout))
		assert.False(t, once.After(d))
		d = d.AddDate(0, 0, 1)
	}
}

func TestWeekendSafeEnd_DropsTimeOfDay(t *testing.T) {
	d := time.Date(2025, 9, 6, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, mustParse(t, "2025-09-05"), WeekendSafeEnd(d))
}

func TestParse(t *testing.T) {
	d, err := Parse("2025-7-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", Format(d))

	_, err = Parse("07/01/2025")
	require.Error(t, err)
}

func TestBetween(t *testing.T) {
	start := mustParse(t, "2024-01-02")
	end := mustParse(t, "2024-01-05")
	assert.True(t, Between(start, start, end))
	assert.True(t, Between(end, start, end))
	assert.False(t, Between(end.AddDate(0, 0, 1), start, end))
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := Parse(s)
	require.NoError(t, err)
	return d
}
