package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actcal/internal/model"
)

func TestParseDescriptor_ExplicitDate(t *testing.T) {
	d := ParseDescriptor("Thursday, November 14, 2024, 5:30 PM - 6:30 PM")

	require.True(t, d.IsSpecificDate())
	date, ok := d.Date()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 11, 14, 0, 0, 0, 0, time.Local), date)
	assert.Empty(t, d.Weekdays(), "explicit date must not carry weekdays")
}

func TestParseDescriptor_ExplicitDateVariants(t *testing.T) {
	cases := []struct {
		name    string
		summary string
		want    time.Time
	}{
		{"lowercase", "saturday, march 1, 2025, 9:00 AM - 10:00 AM", time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)},
		{"abbreviated month", "Friday, Dec 6, 2024 7:00 PM to 8:00 PM", time.Date(2024, 12, 6, 0, 0, 0, 0, time.Local)},
		{"weekday label ignored", "Monday, November 14, 2024", time.Date(2024, 11, 14, 0, 0, 0, 0, time.Local)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			date, ok := ParseDescriptor(tc.summary).Date()
			require.True(t, ok)
			assert.Equal(t, tc.want, date)
		})
	}
}

func TestParseDescriptor_InvalidExplicitDateFallsBackToWeekdays(t *testing.T) {
	// February 30 does not exist; the weekday scan takes over.
	d := ParseDescriptor("Friday, February 30, 2024, 6:00 PM - 7:00 PM")

	assert.False(t, d.IsSpecificDate())
	assert.Equal(t, []time.Weekday{time.Friday}, d.Weekdays())
}

func TestParseDescriptor_Weekdays(t *testing.T) {
	d := ParseDescriptor("Mondays and Wednesdays, 6:00 PM - 7:00 PM")

	assert.False(t, d.IsSpecificDate())
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, d.Weekdays())
	assert.False(t, d.IsEmpty())
}

func TestParseDescriptor_Abbreviations(t *testing.T) {
	d := ParseDescriptor("TUE/THU 4:00 PM - 5:00 PM")

	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, d.Weekdays())
}

func TestParseDescriptor_DeduplicatesNameAndAbbreviation(t *testing.T) {
	d := ParseDescriptor("Monday (Mon) 6:00 PM - 7:00 PM")

	days := d.Weekdays()
	require.Len(t, days, 1)
	assert.Equal(t, time.Monday, days[0])
}

func TestParseDescriptor_NoWeekday(t *testing.T) {
	d := ParseDescriptor("Every so often, 6:00 PM - 7:00 PM")

	assert.False(t, d.IsSpecificDate())
	assert.True(t, d.IsEmpty())
	assert.Empty(t, d.Weekdays())
}

func TestWeekdays_IgnoresOutOfRange(t *testing.T) {
	d := Weekdays(time.Saturday, time.Weekday(9), time.Saturday)

	assert.Equal(t, []time.Weekday{time.Saturday}, d.Weekdays())
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		summary string
		want    model.TimeRange
	}{
		{"Mondays and Wednesdays, 6:00 PM - 7:00 PM", model.TimeRange{Start: "6pm", End: "7pm"}},
		{"Thursday, November 14, 2024, 5:30 PM - 6:30 PM", model.TimeRange{Start: "5:30pm", End: "6:30pm"}},
		{"Sat 9:15am to 10:45am", model.TimeRange{Start: "9:15am", End: "10:45am"}},
		{"Sun 11:30 AM-12:00 PM", model.TimeRange{Start: "11:30am", End: "12pm"}},
		{"Fri 12:00 AM - 1:00 AM", model.TimeRange{Start: "12am", End: "1am"}},
	}
	for _, tc := range cases {
		t.Run(tc.summary, func(t *testing.T) {
			got, ok := ParseTimeRange(tc.summary)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTimeRange_NotFound(t *testing.T) {
	for _, s := range []string{
		"",
		"Mondays and Wednesdays",
		"Mondays 6 PM - 7 PM",
		"Tuesdays 18:00 - 19:00",
	} {
		_, ok := ParseTimeRange(s)
		assert.False(t, ok, s)
	}
}
