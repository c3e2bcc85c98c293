package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "actcal/internal/log"
	"actcal/internal/model"
)

// ErrSerialization marks an occurrence that cannot be encoded. Any such
// failure aborts the whole export.
var ErrSerialization = errors.New("calendar serialization failed")

const (
	DefaultProductID = "-//actcal//Activity Calendar//EN"
	DefaultFilename  = "activities.ics"
	MIMEType         = "text/calendar"

	// floatingLayout is a DATE-TIME without "Z" or TZID: local wall-clock.
	floatingLayout = "20060102T150405"
)

// uidNamespace scopes the name-based UUIDs used as VEVENT UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://actcal.local/occurrence"))

// ExportOptions controls calendar-level properties of the document.
type ExportOptions struct {
	// ProductID is written as PRODID. Defaults to DefaultProductID.
	ProductID string
	// CalendarName, if set, is written as X-WR-CALNAME.
	CalendarName string
	// Now stamps every VEVENT (DTSTAMP). Defaults to time.Now().
	Now time.Time
}

// Payload is a finished calendar document ready for delivery.
type Payload struct {
	Filename string
	MIMEType string
	Body     []byte
}

// Deliverer receives finished calendar documents, e.g. by writing a file
// or publishing over HTTP.
type Deliverer interface {
	Deliver(ctx context.Context, p Payload) error
}

// Export serializes occurrences into a single VCALENDAR document with one
// VEVENT per occurrence. Input order does not matter: events are written
// sorted by start, then name. If any occurrence cannot be encoded, no
// document is returned.
func Export(occurrences []model.Occurrence, opts ExportOptions) ([]byte, error) {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	type record struct {
		occ        model.Occurrence
		start, end time.Time
	}
	records := make([]record, 0, len(occurrences))
	for i, occ := range occurrences {
		start, end, err := eventBounds(occ)
		if err != nil {
			return nil, fmt.Errorf("%w: occurrence %d (%q): %v", ErrSerialization, i, occ.Name, err)
		}
		records = append(records, record{occ: occ, start: start, end: end})
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].start.Equal(records[j].start) {
			return records[i].start.Before(records[j].start)
		}
		return records[i].occ.Name < records[j].occ.Name
	})

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.CalendarName != "" {
		cal.SetXWRCalName(opts.CalendarName)
	}

	for _, r := range records {
		ev := cal.AddEvent(occurrenceUID(r.occ, r.start))
		ev.SetDtStampTime(opts.Now)
		ev.SetProperty(ical.ComponentPropertyDtStart, r.start.Format(floatingLayout))
		ev.SetProperty(ical.ComponentPropertyDtEnd, r.end.Format(floatingLayout))
		ev.SetSummary(r.occ.Name)
		ev.SetDescription(r.occ.ScheduleSummary)
	}

	var buf bytes.Buffer
	// RFC 5545 content lines end in CRLF.
	if err := cal.SerializeTo(&buf, ical.WithNewLineWindows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	appLog.Debug("ics export completed", "events", len(records), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// ExportTo exports occurrences and hands the same document to every
// deliverer. Nothing is delivered when the export fails. A failing
// deliverer does not stop the others; their errors are joined. The
// returned payload is set whenever the export itself succeeded.
func ExportTo(ctx context.Context, occurrences []model.Occurrence, opts ExportOptions, ds ...Deliverer) (Payload, error) {
	body, err := Export(occurrences, opts)
	if err != nil {
		return Payload{}, err
	}
	p := Payload{
		Filename: DefaultFilename,
		MIMEType: MIMEType,
		Body:     body,
	}

	var errs []error
	for _, d := range ds {
		if err := d.Deliver(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return p, fmt.Errorf("deliver calendar: %w", errors.Join(errs...))
	}
	return p, nil
}

// eventBounds combines the occurrence date with its converted clock times.
// An end earlier than the start is taken to run past midnight.
func eventBounds(occ model.Occurrence) (time.Time, time.Time, error) {
	if strings.TrimSpace(occ.Name) == "" {
		return time.Time{}, time.Time{}, errors.New("empty name")
	}
	if occ.Date.IsZero() {
		return time.Time{}, time.Time{}, errors.New("missing date")
	}
	sh, sm, err := Clock24(occ.TimeRange.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh, em, err := Clock24(occ.TimeRange.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, mo, d := occ.Date.Date()
	loc := occ.Date.Location()
	start := time.Date(y, mo, d, sh, sm, 0, 0, loc)
	end := time.Date(y, mo, d, eh, em, 0, 0, loc)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// Clock24 converts a compact 12-hour clock ("6pm", "6:30pm", "12am") to a
// 24-hour hour and minute. 12am is hour 0 and 12pm is hour 12.
func Clock24(s string) (hour, minute int, err error) {
	v := strings.ToLower(strings.TrimSpace(s))
	var pm bool
	switch {
	case strings.HasSuffix(v, "pm"):
		pm = true
	case strings.HasSuffix(v, "am"):
	default:
		return 0, 0, fmt.Errorf("clock %q: missing am/pm suffix", s)
	}
	v = strings.TrimSpace(v[:len(v)-2])

	hs, ms, hasMinutes := strings.Cut(v, ":")
	hour, err = strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q: bad hour: %w", s, err)
	}
	if hasMinutes {
		minute, err = strconv.Atoi(ms)
		if err != nil {
			return 0, 0, fmt.Errorf("clock %q: bad minute: %w", s, err)
		}
	}
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q: out of range", s)
	}

	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour, minute, nil
}

// occurrenceUID is stable across runs for the same activity and start.
func occurrenceUID(occ model.Occurrence, start time.Time) string {
	key := occ.Name + "\x00" + occ.ScheduleSummary + "\x00" + start.Format(floatingLayout)
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@actcal"
}
