package pipeline

import (
	"context"
	"fmt"
	"time"

	"actcal/internal/config"
	"actcal/internal/ics"
	appLog "actcal/internal/log"
	"actcal/internal/model"
	"actcal/internal/source"
)

// Report summarizes one pipeline run.
type Report struct {
	Activities  int
	Occurrences []model.Occurrence
	Skipped     []ics.Diagnostic
	Bytes       int
	Duration    time.Duration

	// Exported is true once the calendar document was built, even if a
	// deliverer later failed.
	Exported bool
}

// Runner loads the configured activity feed, expands it and delivers the
// resulting calendar to every deliverer.
type Runner struct {
	Config  *config.Config
	Fetcher *source.Fetcher
	// Now stamps exported events; nil means time.Now.
	Now func() time.Time
}

// NewRunner builds a Runner whose fetcher caches under cfg.CacheDir.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		Config:  cfg,
		Fetcher: source.NewFetcher(cfg.CacheDir),
	}
}

// Run performs one load → expand → export → deliver cycle. Malformed input
// and serialization failures abort the run before anything is delivered;
// activities with unusable schedules are reported in Report.Skipped. A
// delivery error is returned alongside a Report with Exported set, since
// the other deliverers still received the document.
func (r *Runner) Run(ctx context.Context, deliverers ...ics.Deliverer) (Report, error) {
	start := time.Now()
	var rep Report

	activities, err := source.Load(ctx, r.Fetcher, r.Config.Source)
	if err != nil {
		return rep, fmt.Errorf("load activities: %w", err)
	}
	rep.Activities = len(activities)

	expanded := ics.ExpandAll(activities)
	rep.Occurrences = expanded.Occurrences
	rep.Skipped = expanded.Skipped

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	payload, err := ics.ExportTo(ctx, expanded.Occurrences, ics.ExportOptions{
		ProductID:    r.Config.Calendar.ProductID,
		CalendarName: r.Config.Calendar.Name,
		Now:          now,
	}, deliverers...)
	rep.Bytes = len(payload.Body)
	rep.Exported = payload.Body != nil
	if err != nil {
		return rep, err
	}

	rep.Duration = time.Since(start)
	appLog.Info("pipeline run completed",
		"activities", rep.Activities,
		"occurrences", len(rep.Occurrences),
		"skipped", len(rep.Skipped),
		"bytes", rep.Bytes,
		"duration_ms", rep.Duration.Milliseconds(),
	)
	return rep, nil
}
