package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/router"
)

// Exchange is one request handed from an HTTP goroutine to the control loop.
type Exchange struct {
	Path  string
	Query url.Values
	reply chan router.Result
}

func NewExchange(path string, query url.Values) *Exchange {
	return &Exchange{Path: path, Query: query, reply: make(chan router.Result, 1)}
}

// Respond delivers the result. Only the first call has any effect and it
// never blocks, even if the HTTP side already gave up.
func (e *Exchange) Respond(res router.Result) {
	select {
	case e.reply <- res:
	default:
	}
}

// Reply yields the result once the loop has responded.
func (e *Exchange) Reply() <-chan router.Result { return e.reply }

func (e *Exchange) Request() router.Request {
	return router.Request{Path: e.Path, Query: e.Query}
}

// Server is the HTTP front. It never touches controller state: every request
// is queued for the loop, which owns all of it.
type Server struct {
	requests     chan *Exchange
	replyTimeout time.Duration
	metrics      http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

func NewServer(replyTimeout time.Duration, metrics http.Handler) *Server {
	return &Server{
		requests:     make(chan *Exchange),
		replyTimeout: replyTimeout,
		metrics:      metrics,
	}
}

func (s *Server) Requests() <-chan *Exchange { return s.requests }

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.PathPrefix("/").HandlerFunc(s.handle)

	logged := handlers.CustomLoggingHandler(io.Discard, r, logRequest)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)(logged)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ex := NewExchange(r.URL.Path, r.URL.Query())
	timer := time.NewTimer(s.replyTimeout)
	defer timer.Stop()

	select {
	case s.requests <- ex:
	case <-timer.C:
		unavailable(w)
		return
	case <-r.Context().Done():
		return
	}

	select {
	case res := <-ex.Reply():
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Connection", "close")
		w.WriteHeader(res.Status)
		io.WriteString(w, res.Body)
	case <-timer.C:
		unavailable(w)
	case <-r.Context().Done():
	}
}

func unavailable(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
	http.Error(w, "controller busy", http.StatusServiceUnavailable)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	log.Info().Str("address", ln.Addr().String()).Msg("Starting HTTP server")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
	return nil
}

// Addr is the bound listen address, or empty when not serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Rebind replaces the listener, used after the network comes back with a
// new address.
func (s *Server) Rebind(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Previous listener did not close cleanly")
	}
	return s.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	path := p.URL.Path
	ev := log.Info()
	if router.Quiet(path) || path == "/metrics" {
		ev = log.Debug()
	}
	ev.Str("method", p.Request.Method).
		Str("path", path).
		Str("remote", p.Request.RemoteAddr).
		Int("status", p.StatusCode).
		Int("size", p.Size).
		Msg("Request")
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
