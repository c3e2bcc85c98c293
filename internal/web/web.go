package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"actcal/internal/config"
	"actcal/internal/ics"
	appLog "actcal/internal/log"
	"actcal/internal/model"
)

// Server publishes the most recent calendar build over HTTP:
//
//	/health           liveness, never authenticated
//	/api/occurrences  JSON list of occurrences plus skipped activities
//	/activities.ics   the calendar document
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu       sync.RWMutex
	calendar *calendarSnapshot
	listing  *occurrencesResponse
}

type calendarSnapshot struct {
	payload   ics.Payload
	etag      string
	updatedAt time.Time
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences []occurrenceDTO  `json:"occurrences"`
	Skipped     []ics.Diagnostic `json:"skipped"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// occurrenceDTO is a JSON-friendly view of an occurrence.
type occurrenceDTO struct {
	Name            string          `json:"name"`
	Date            string          `json:"date"`
	TimeRange       model.TimeRange `json:"time_range"`
	ScheduleSummary string          `json:"schedule_summary"`
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Deliver publishes a finished calendar document. It satisfies
// ics.Deliverer so the server can be handed to the pipeline directly.
func (s *Server) Deliver(_ context.Context, p ics.Payload) error {
	sum := sha256.Sum256(p.Body)
	snap := &calendarSnapshot{
		payload:   p,
		etag:      `"` + hex.EncodeToString(sum[:16]) + `"`,
		updatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.calendar = snap
	s.mu.Unlock()

	appLog.Debug("calendar published", "bytes", len(p.Body), "etag", snap.etag)
	return nil
}

// SetOccurrences replaces the occurrence listing served at /api/occurrences.
// Occurrences are listed by date, then name.
func (s *Server) SetOccurrences(occ []model.Occurrence, skipped []ics.Diagnostic) {
	dtos := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		dtos = append(dtos, occurrenceDTO{
			Name:            o.Name,
			Date:            o.Date.Format(time.DateOnly),
			TimeRange:       o.TimeRange,
			ScheduleSummary: o.ScheduleSummary,
		})
	}
	sort.SliceStable(dtos, func(i, j int) bool {
		if dtos[i].Date != dtos[j].Date {
			return dtos[i].Date < dtos[j].Date
		}
		return dtos[i].Name < dtos[j].Name
	})
	if skipped == nil {
		skipped = []ics.Diagnostic{}
	}

	resp := &occurrencesResponse{
		Occurrences: dtos,
		Skipped:     skipped,
		UpdatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.listing = resp
	s.mu.Unlock()
}

// Start serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("/"+ics.DefaultFilename, s.handleCalendar)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="actcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.RLock()
	listing := s.listing
	s.mu.RUnlock()

	if listing == nil {
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "occurrences not built yet")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// handleCalendar serves the latest document as a download, honoring
// If-None-Match.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	snap := s.calendar
	s.mu.RUnlock()

	if snap == nil {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "calendar not built yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", snap.payload.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.payload.Filename))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", snap.etag)
	w.Header().Set("Last-Modified", snap.updatedAt.Format(http.TimeFormat))

	if r.Header.Get("If-None-Match") == snap.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		if _, err := w.Write(snap.payload.Body); err != nil {
			appLog.Error("failed to write calendar response", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
