// Package web provides an HTTP status server for the am2302-sensor daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sweeney/am2302-sensor/internal/metrics"
	"github.com/sweeney/am2302-sensor/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker

	metricsHandler http.Handler
	metrics        *metrics.Metrics
	accessLog      io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h on /metrics and counts requests in m. m may be nil.
func WithMetrics(h http.Handler, m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metricsHandler = h
		s.metrics = m
	}
}

// WithAccessLog writes Apache-style access logs to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{tracker: tracker}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	s.route(r, "/", s.handleIndex)
	s.route(r, "/index.html", s.handleIndex)
	s.route(r, "/index.json", s.handleJSON)
	s.route(r, "/reading", s.handleReading)
	if s.metricsHandler != nil {
		s.handle(r, "/metrics", s.metricsHandler)
	}

	var h http.Handler = r
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, r)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: h,
	}
	return s
}

func (s *Server) route(r *mux.Router, path string, fn http.HandlerFunc) {
	s.handle(r, path, fn)
}

// handle mounts h for GET and HEAD, counted under path.
func (s *Server) handle(r *mux.Router, path string, h http.Handler) {
	r.Handle(path, s.metrics.WrapHandler(path, h)).Methods(http.MethodGet, http.MethodHead)
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !snap.HasReading {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	io.WriteString(w, status.FormatText(snap))
}
