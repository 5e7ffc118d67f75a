// Package web exposes the harvester over HTTP: health, manual runs, dry-run
// extraction and a read-only view of the calendar window.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"harvester/internal/calendar"
	"harvester/internal/config"
	"harvester/internal/harvest"
	appLog "harvester/internal/log"
)

// Runner is the pipeline side the server drives.
type Runner interface {
	Run(ctx context.Context) (harvest.Stats, error)
	TestFirst(ctx context.Context) (harvest.TestResult, error)
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	runner Runner
	cal    calendar.Calendar
	mux    *http.ServeMux

	// 마지막 실행 결과. cron 실행과 수동 실행 모두 RecordRun 으로 갱신된다.
	statusMu sync.RWMutex
	last     *runStatus

	// In-memory cache for /api/events so the calendar backend is not hit on
	// every request.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// NewServer constructs a new Server. cal may be nil, which disables
// /api/events.
func NewServer(cfg *config.Config, runner Runner, cal calendar.Calendar) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		cal:    cal,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="Harvester", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/test", s.handleTest)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// runStatus is the JSON shape for /api/run and /api/status.
type runStatus struct {
	Stats      harvest.Stats `json:"stats"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// RecordRun stores the outcome of a run for /api/status.
func (s *Server) RecordRun(stats harvest.Stats, err error, started, finished time.Time) {
	st := &runStatus{Stats: stats, StartedAt: started, FinishedAt: finished}
	if err != nil {
		st.Error = err.Error()
	}
	s.statusMu.Lock()
	s.last = st
	s.statusMu.Unlock()

	// 새 이벤트가 생겼을 수 있으므로 events 캐시를 비운다.
	s.eventsMu.Lock()
	s.eventsCache = nil
	s.eventsMu.Unlock()
}

// handleRun triggers one harvest pass synchronously.
//
// POST /api/run
//   - 200: run finished, body is the run status
//   - 409: another run is in progress
//   - 500: feed or calendar listing failed
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	stats, err := s.runner.Run(r.Context())
	if errors.Is(err, harvest.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.RecordRun(stats, err, started, time.Now())

	s.statusMu.RLock()
	st := *s.last
	s.statusMu.RUnlock()

	if err != nil {
		appLog.Error("manual run failed", err)
		writeJSON(w, http.StatusInternalServerError, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.statusMu.RLock()
	last := s.last
	s.statusMu.RUnlock()
	if last == nil {
		writeError(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// handleTest runs event extraction on the first feed item without
// publishing anything.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.TestFirst(r.Context())
	if err != nil {
		appLog.Error("test extraction failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
	TimeZone   string     `json:"timezone"`
}

type eventDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end,omitempty"`
	AllDay       bool   `json:"all_day"`
	SourceItemID string `json:"source_item_id,omitempty"`
	Link         string `json:"link,omitempty"`
}

// eventsCache holds a cached /api/events response keyed by its query.
type eventsCache struct {
	key       string
	resp      eventsResponse
	updatedAt time.Time
}

// handleEvents lists published events around now.
//
// GET /api/events?days=30&backfill=7
//   - days:     앞으로 몇 일을 볼 것인지 (기본 30)
//   - backfill: 과거 몇 일을 포함할지 (기본 7)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cal == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not configured")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 30)
	if days <= 0 {
		days = 30
	}
	backfill := parseIntDefault(q.Get("backfill"), 7)
	if backfill < 0 {
		backfill = 0
	}

	const eventsCacheTTL = 30 * time.Second
	key := strconv.Itoa(days) + "/" + strconv.Itoa(backfill)

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.key == key && time.Since(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events, err := s.cal.List(r.Context(), rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusBadGateway, "failed to list calendar events")
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dto := eventDTO{
			ID:           ev.ID,
			Title:        ev.Title,
			AllDay:       ev.Start.Date != "",
			SourceItemID: ev.SourceItemID,
			Link:         ev.HTMLLink,
		}
		if dto.AllDay {
			dto.Start, dto.End = ev.Start.Date, ev.End.Date
		} else {
			dto.Start, dto.End = ev.Start.DateTime, ev.End.DateTime
		}
		dtos = append(dtos, dto)
	}

	resp := eventsResponse{
		Events:     dtos,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		TimeZone:   loc.String(),
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{key: key, resp: resp, updatedAt: time.Now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
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
