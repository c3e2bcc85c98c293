package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actcal/internal/config"
	"actcal/internal/ics"
	"actcal/internal/model"
)

var calendarBody = []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")

func newServer(t *testing.T, auth *config.BasicAuthConfig) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BasicAuth = auth
	return NewServer(cfg)
}

func publish(t *testing.T, s *Server) {
	t.Helper()
	require.NoError(t, s.Deliver(context.Background(), ics.Payload{
		Filename: ics.DefaultFilename,
		MIMEType: ics.MIMEType,
		Body:     calendarBody,
	}))
}

func do(s *Server, method, path string, mutate func(*http.Request)) *http.Response {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func TestHealth(t *testing.T) {
	resp := do(newServer(t, nil), http.MethodGet, "/health", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestCalendar_NotReady(t *testing.T) {
	resp := do(newServer(t, nil), http.MethodGet, "/activities.ics", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestCalendar_ServesDownload(t *testing.T) {
	s := newServer(t, nil)
	publish(t, s)

	resp := do(s, http.MethodGet, "/activities.ics", nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="activities.ics"`, resp.Header.Get("Content-Disposition"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, calendarBody, body)
}

func TestCalendar_NotModified(t *testing.T) {
	s := newServer(t, nil)
	publish(t, s)

	first := do(s, http.MethodGet, "/activities.ics", nil)
	first.Body.Close()
	etag := first.Header.Get("ETag")
	require.NotEmpty(t, etag)

	second := do(s, http.MethodGet, "/activities.ics", func(r *http.Request) {
		r.Header.Set("If-None-Match", etag)
	})
	defer second.Body.Close()

	assert.Equal(t, http.StatusNotModified, second.StatusCode)
	body, _ := io.ReadAll(second.Body)
	assert.Empty(t, body)
}

func TestCalendar_MethodNotAllowed(t *testing.T) {
	s := newServer(t, nil)
	publish(t, s)

	resp := do(s, http.MethodPost, "/activities.ics", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestOccurrences(t *testing.T) {
	s := newServer(t, nil)

	resp := do(s, http.MethodGet, "/api/occurrences", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetOccurrences([]model.Occurrence{
		{
			Activity:  model.Activity{Name: "Swim", ScheduleSummary: "Wednesdays 6:00 PM - 7:00 PM"},
			Date:      time.Date(2024, 11, 6, 0, 0, 0, 0, time.Local),
			TimeRange: model.TimeRange{Start: "6pm", End: "7pm"},
		},
		{
			Activity:  model.Activity{Name: "Swim", ScheduleSummary: "Mondays 6:00 PM - 7:00 PM"},
			Date:      time.Date(2024, 11, 4, 0, 0, 0, 0, time.Local),
			TimeRange: model.TimeRange{Start: "6pm", End: "7pm"},
		},
	}, []ics.Diagnostic{{Activity: "Broken", Summary: "Mondays", Reason: "unparseable schedule"}})

	resp = do(s, http.MethodGet, "/api/occurrences", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got occurrencesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Occurrences, 2)
	assert.Equal(t, "2024-11-04", got.Occurrences[0].Date)
	assert.Equal(t, "2024-11-06", got.Occurrences[1].Date)
	assert.Equal(t, model.TimeRange{Start: "6pm", End: "7pm"}, got.Occurrences[0].TimeRange)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, "Broken", got.Skipped[0].Activity)
}

func TestBasicAuth(t *testing.T) {
	s := newServer(t, &config.BasicAuthConfig{Username: "admin", Password: "secret"})
	publish(t, s)

	health := do(s, http.MethodGet, "/health", nil)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode, "/health stays open")

	denied := do(s, http.MethodGet, "/activities.ics", nil)
	denied.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, denied.StatusCode)
	assert.Contains(t, denied.Header.Get("WWW-Authenticate"), "Basic")

	wrong := do(s, http.MethodGet, "/activities.ics", func(r *http.Request) { r.SetBasicAuth("admin", "nope") })
	wrong.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)

	ok := do(s, http.MethodGet, "/activities.ics", func(r *http.Request) { r.SetBasicAuth("admin", "secret") })
	ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}
