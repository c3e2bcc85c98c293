package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "actcal/internal/log"
	"actcal/internal/model"
	"actcal/internal/schedule"
)

// ErrUnparseableSchedule marks an activity whose summary carries no time
// range. It is a per-activity condition; the batch continues.
var ErrUnparseableSchedule = errors.New("unparseable schedule")

// Diagnostic records why an activity produced no occurrences.
type Diagnostic struct {
	Activity string `json:"activity"`
	Summary  string `json:"summary"`
	Reason   string `json:"reason"`
}

// ExpandResult wraps the expanded occurrences of a batch together with the
// activities that had to be skipped.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Skipped     []Diagnostic
}

// rruleWeekdays is indexed by time.Weekday.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Generate expands one activity into its occurrences, ordered by date.
//
//   - No time range in the summary: no occurrences and an error wrapping
//     ErrUnparseableSchedule.
//   - Explicit date in the summary: exactly one occurrence on that date; the
//     activity's Start/End are ignored.
//   - Otherwise: one occurrence for every day in [Start, End] (inclusive,
//     compared at local midnight) whose weekday is in the parsed set.
func Generate(a model.Activity) ([]model.Occurrence, error) {
	desc := schedule.ParseDescriptor(a.ScheduleSummary)
	tr, ok := schedule.ParseTimeRange(a.ScheduleSummary)
	if !ok {
		return nil, fmt.Errorf("%w: no time range for activity %q", ErrUnparseableSchedule, a.Name)
	}

	if date, ok := desc.Date(); ok {
		return []model.Occurrence{makeOccurrence(a, date, tr)}, nil
	}
	if desc.IsEmpty() {
		appLog.Debug("expand: no weekdays in schedule", "activity", a.Name)
		return nil, nil
	}

	dates := weekdayDates(desc.Weekdays(), a.Start, a.End)
	out := make([]model.Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, makeOccurrence(a, d, tr))
	}
	return out, nil
}

// weekdayDates lists every day in [start, end] falling on one of days. The
// walk is a weekly rule bounded by UNTIL=end, so a start after end yields
// nothing.
func weekdayDates(days []time.Weekday, start, end time.Time) []time.Time {
	if len(days) == 0 || start.IsZero() || end.IsZero() {
		return nil
	}
	from := midnight(start)
	until := midnight(end)
	if until.Before(from) {
		return nil
	}

	byDay := make([]rrule.Weekday, 0, len(days))
	for _, wd := range days {
		byDay = append(byDay, rruleWeekdays[wd])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   from,
		Until:     until,
		Byweekday: byDay,
	})
	if err != nil {
		appLog.Error("expand: failed to build weekly rule", err, "from", from.Format(time.DateOnly), "until", until.Format(time.DateOnly))
		return nil
	}
	return r.All()
}

// ExpandAll generates occurrences for every activity in order. Activities
// without a usable schedule are recorded in Skipped and logged; they never
// abort the batch.
func ExpandAll(activities []model.Activity) ExpandResult {
	var result ExpandResult
	result.Occurrences = make([]model.Occurrence, 0)

	for _, a := range activities {
		occ, err := Generate(a)
		if err != nil {
			result.Skipped = append(result.Skipped, Diagnostic{
				Activity: a.Name,
				Summary:  a.ScheduleSummary,
				Reason:   err.Error(),
			})
			appLog.Warn("expand: skipping activity", "activity", a.Name, "reason", err)
			continue
		}
		if len(occ) == 0 {
			appLog.Debug("expand: activity has no occurrences in range", "activity", a.Name)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	appLog.Info("expand completed",
		"activities", len(activities),
		"occurrences", len(result.Occurrences),
		"skipped", len(result.Skipped),
	)
	return result
}

func makeOccurrence(a model.Activity, date time.Time, tr model.TimeRange) model.Occurrence {
	return model.Occurrence{
		Activity:  a,
		Date:      midnight(date),
		TimeRange: tr,
	}
}

// midnight drops the clock part, keeping the calendar day as seen in t's
// own location.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
