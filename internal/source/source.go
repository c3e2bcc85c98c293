package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	appLog "actcal/internal/log"
	"actcal/internal/model"
)

// ErrMalformedInput means the activity collection could not be understood.
// It aborts the whole batch.
var ErrMalformedInput = errors.New("malformed activity input")

// record mirrors one item of the upstream activity API.
type record struct {
	Name            string `json:"Name"`
	StartDate       string `json:"StartDate"`
	EndDate         string `json:"EndDate"`
	ScheduleSummary string `json:"ScheduleSummary"`
}

// envelope is the upstream response; only Items is consumed.
type envelope struct {
	Items  *[]record `json:"Items"`
	Paging struct {
		TotalCount int    `json:"TotalCount"`
		Next       string `json:"Next"`
	} `json:"Paging"`
}

var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// Decode parses an activity feed: either the API envelope
// ({"Items": [...], "Paging": {...}}) or a bare array of items. Activities
// come back stably sorted by start bound.
func Decode(data []byte) ([]model.Activity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedInput)
	}

	var records []record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if env.Items == nil {
			return nil, fmt.Errorf("%w: missing Items", ErrMalformedInput)
		}
		records = *env.Items
		if env.Paging.Next != "" {
			appLog.Debug("source has further pages; only the first is used", "total", env.Paging.TotalCount)
		}
	}

	activities := make([]model.Activity, 0, len(records))
	for i, r := range records {
		start, err := parseBound(r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%q) StartDate: %v", ErrMalformedInput, i, r.Name, err)
		}
		end, err := parseBound(r.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%q) EndDate: %v", ErrMalformedInput, i, r.Name, err)
		}
		activities = append(activities, model.Activity{
			Name:            r.Name,
			Start:           start,
			End:             end,
			ScheduleSummary: r.ScheduleSummary,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Start.Before(activities[j].Start)
	})
	return activities, nil
}

// parseBound reduces a date or date-time to its calendar day at local
// midnight. Empty values yield the zero time.
func parseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range boundLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Load reads and decodes the activity feed at location, which is either an
// http(s) URL (fetched through f) or a local file path.
func Load(ctx context.Context, f *Fetcher, location string) ([]model.Activity, error) {
	var body []byte
	switch {
	case location == "":
		return nil, errors.New("source location is empty")
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		if f == nil {
			f = NewFetcher("")
		}
		res, err := f.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch source: %w", err)
		}
		body = res.Body
	default:
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		body = data
	}

	activities, err := Decode(body)
	if err != nil {
		return nil, err
	}
	appLog.Info("source loaded", "activities", len(activities))
	return activities, nil
}
