package model

import "time"

// Activity is a single upstream activity record. Its recurrence lives only in
// the free-text ScheduleSummary; Start/End bound the recurring form.
type Activity struct {
	Name string

	// Start / End are calendar dates at local midnight. Either may be the
	// zero time when the upstream record did not carry a bound.
	Start time.Time
	End   time.Time

	ScheduleSummary string
}

// TimeRange is a clock-time range in compact 12-hour form, e.g. "6pm" or
// "6:30pm". Minutes are omitted when they are ":00".
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Occurrence represents a single concrete instance of an activity.
type Occurrence struct {
	Activity

	// Date is the calendar day (local midnight) the occurrence falls on.
	Date time.Time

	TimeRange TimeRange
}
