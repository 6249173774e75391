// Package httpsrv serves a small read-only introspection surface over the
// broker's store: health and per-topic backlog depth. It carries no write
// path — every state mutation goes through the binary protocol in internal/wire
// and internal/command. This is an operator convenience, not part of the
// wire protocol.
package httpsrv

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atopx/tinyq/internal/logger"
	"github.com/atopx/tinyq/internal/store"
)

// Server is the broker's admin HTTP server (health, topic listing).
type Server struct {
	log    *logger.Logger
	store  *store.Store
	server *http.Server
}

// NewServer creates an admin HTTP server bound to addr, reading state from st.
func NewServer(addr string, log *logger.Logger, st *store.Store) *Server {
	s := &Server{log: log, store: st}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/topics", s.handleTopics)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving admin HTTP until the server is stopped.
func (s *Server) Start() error {
	s.log.Info("admin http listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop closes the admin HTTP server immediately; in-flight requests are
// dropped rather than drained, since this surface is diagnostic only.
func (s *Server) Stop() error {
	return s.server.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// topicInfo is one entry of the /topics response: name and current backlog
// depth. Subscriber counts are not exposed here since they are only ever
// correct at the instant they're read; keeping the surface to the
// invariant-checkable backlog length avoids implying a liveness guarantee
// the HTTP snapshot can't give.
type topicInfo struct {
	Name   string `json:"name"`
	Length uint32 `json:"length"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	names := s.store.ListTopics()
	out := make([]topicInfo, 0, len(names))
	for _, name := range names {
		out = append(out, topicInfo{Name: name, Length: s.store.Len(name)})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
