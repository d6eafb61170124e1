// Package api serves read access to the channel stores over HTTP
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/ingest"
)

// SessionControl starts and stops ingestion
type SessionControl interface {
	Toggle() bool
	Running() bool
	Uptime() time.Duration
}

type Server struct {
	coord   *ingest.Coordinator
	session SessionControl
	guard   func(http.Handler) http.Handler
}

// NewServer creates an API server. session may be nil, in which case the
// session endpoints are not registered.
func NewServer(coord *ingest.Coordinator, session SessionControl) *Server {
	return &Server{
		coord:   coord,
		session: session,
	}
}

// WithGuard wraps every route except /health in guard, e.g. an API-key check
func (s *Server) WithGuard(guard func(http.Handler) http.Handler) *Server {
	s.guard = guard
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Channel reads
	s.handle(mux, "GET /api/v1/channels", s.handleListChannels)
	s.handle(mux, "GET /api/v1/channels/{id}/samples", s.handleSamples)
	s.handle(mux, "GET /api/v1/channels/{id}/latest", s.handleLatest)
	s.handle(mux, "GET /api/v1/stats", s.handleStats)

	if s.session != nil {
		s.handle(mux, "POST /api/v1/session/toggle", s.handleToggle)
	}
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.guard == nil {
		mux.Handle(pattern, h)
		return
	}
	mux.Handle(pattern, s.guard(h))
}

// Channel summarizes one store
type Channel struct {
	ID       buffer.ChannelID `json:"id"`
	Stored   int              `json:"stored"`
	Capacity int              `json:"capacity"`
	Pushed   uint64           `json:"pushed"`
	Latest   *buffer.Sample   `json:"latest,omitempty"`
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	ingest.Stats
	Running       bool    `json:"running"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels := []Channel{}
	for _, id := range s.coord.Channels() {
		ring, ok := s.coord.Store(id)
		if !ok {
			continue
		}
		c := Channel{
			ID:       id,
			Stored:   ring.Len(),
			Capacity: ring.Cap(),
			Pushed:   ring.Pushed(),
		}
		if latest, ok := ring.Latest(); ok {
			c.Latest = &latest
		}
		channels = append(channels, c)
	}
	writeJSON(w, channels)
}

// handleSamples returns a channel's history oldest first. With ?recent=N
// only the last N samples are returned.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	id, ok := channelID(r)
	if !ok {
		writeError(w, "invalid channel id", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Has("recent") {
		n, ok := getQueryInt(r, "recent")
		if !ok {
			writeError(w, "recent must be an integer", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.coord.SnapshotRecent(id, int(n)))
		return
	}
	writeJSON(w, s.coord.SnapshotAll(id))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, ok := channelID(r)
	if !ok {
		writeError(w, "invalid channel id", http.StatusBadRequest)
		return
	}

	latest, ok := s.coord.Latest(id)
	if !ok {
		writeError(w, "no samples for channel "+id.String(), http.StatusNotFound)
		return
	}
	writeJSON(w, latest)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Stats: s.coord.Stats()}
	if s.session != nil {
		resp.Running = s.session.Running()
		resp.UptimeSeconds = s.session.Uptime().Seconds()
	}
	writeJSON(w, resp)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"running": s.session.Toggle()})
}

func channelID(r *http.Request) (buffer.ChannelID, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return buffer.ChannelID(id), true
}

// Helper functions
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func getQueryInt(r *http.Request, param string) (int64, bool) {
	val := r.URL.Query().Get(param)
	if val == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
