package schedule

import (
	"regexp"
	"strings"
	"time"

	"actcal/internal/model"
)

// Descriptor is the recurrence rule extracted from a schedule summary.
// It is either a single explicit date or a set of recurring weekdays, never
// both. Use IsSpecificDate to tell the two forms apart.
type Descriptor struct {
	date     time.Time
	specific bool
	weekdays [7]bool
}

// SpecificDate returns a descriptor for a single explicit calendar date.
func SpecificDate(d time.Time) Descriptor {
	return Descriptor{
		date:     time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()),
		specific: true,
	}
}

// Weekdays returns a recurring descriptor. Duplicate days collapse.
func Weekdays(days ...time.Weekday) Descriptor {
	var d Descriptor
	for _, wd := range days {
		if wd >= time.Sunday && wd <= time.Saturday {
			d.weekdays[wd] = true
		}
	}
	return d
}

// IsSpecificDate reports whether d names a single explicit date rather than
// recurring weekdays.
func (d Descriptor) IsSpecificDate() bool { return d.specific }

// Date returns the explicit date and true for the specific-date form.
func (d Descriptor) Date() (time.Time, bool) {
	return d.date, d.specific
}

// Weekdays lists the recurring weekdays in ascending order (Sunday first).
// It is empty for the specific-date form.
func (d Descriptor) Weekdays() []time.Weekday {
	if d.specific {
		return nil
	}
	out := make([]time.Weekday, 0, 7)
	for i, on := range d.weekdays {
		if on {
			out = append(out, time.Weekday(i))
		}
	}
	return out
}

// IsEmpty is true for a recurring descriptor with no weekdays. Such a
// descriptor yields no occurrences.
func (d Descriptor) IsEmpty() bool {
	return !d.specific && len(d.Weekdays()) == 0
}

var (
	// "Thursday, November 14, 2024"
	explicitDatePattern = regexp.MustCompile(`(?i)([a-z]+day),\s+([a-z]+)\s+(\d{1,2}),\s+(\d{4})`)

	// "6:00 PM - 7:00 PM", "5:30pm to 6:30pm"
	timeRangePattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(am|pm)\s*(?:-|to)\s*(\d{1,2}):(\d{2})\s*(am|pm)`)

	dateLayouts = []string{"January 2 2006", "Jan 2 2006"}

	weekdayNames = []struct {
		name string
		day  time.Weekday
	}{
		{"sunday", time.Sunday}, {"sun", time.Sunday},
		{"monday", time.Monday}, {"mon", time.Monday},
		{"tuesday", time.Tuesday}, {"tue", time.Tuesday},
		{"wednesday", time.Wednesday}, {"wed", time.Wednesday},
		{"thursday", time.Thursday}, {"thu", time.Thursday},
		{"friday", time.Friday}, {"fri", time.Friday},
		{"saturday", time.Saturday}, {"sat", time.Saturday},
	}
)

// ParseDescriptor extracts the recurrence rule from a schedule summary.
//
//   - An embedded "<Weekday>, <Month> <Day>, <Year>" token that forms a valid
//     date wins outright; the weekday label is not checked against the date.
//   - Otherwise every weekday name or 3-letter abbreviation found anywhere in
//     the lowercased text contributes its day.
//
// A summary with neither yields an empty recurring descriptor.
func ParseDescriptor(summary string) Descriptor {
	if d, ok := parseExplicitDate(summary); ok {
		return SpecificDate(d)
	}

	lower := strings.ToLower(summary)
	var days []time.Weekday
	for _, wn := range weekdayNames {
		if strings.Contains(lower, wn.name) {
			days = append(days, wn.day)
		}
	}
	return Weekdays(days...)
}

func parseExplicitDate(summary string) (time.Time, bool) {
	m := explicitDatePattern.FindStringSubmatch(summary)
	if m == nil {
		return time.Time{}, false
	}
	value := m[2] + " " + m[3] + " " + m[4]
	for _, layout := range dateLayouts {
		// Month names match case-insensitively; invalid days are rejected.
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimeRange finds an "H:MM AM - H:MM PM" style range in summary and
// returns it in compact form. ok is false when no range is present.
func ParseTimeRange(summary string) (tr model.TimeRange, ok bool) {
	m := timeRangePattern.FindStringSubmatch(summary)
	if m == nil {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: compactClock(m[1], m[2], m[3]),
		End:   compactClock(m[4], m[5], m[6]),
	}, true
}

// compactClock keeps the hour digits as written.
func compactClock(hour, minute, meridiem string) string {
	meridiem = strings.ToLower(meridiem)
	if minute == "00" {
		return hour + meridiem
	}
	return hour + ":" + minute + meridiem
}
