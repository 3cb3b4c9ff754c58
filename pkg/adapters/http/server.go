package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TransitBody is the request body of the transit endpoints.
type TransitBody struct {
	Action    string `json:"action"`
	Input     any    `json:"input,omitempty"`
	Automaton string `json:"automaton,omitempty"`
}

// TransitResponse reports a completed transition and its rendered views.
type TransitResponse struct {
	Automaton string         `json:"automaton"`
	Next      string         `json:"next"`
	Output    runtime.Output `json:"output,omitempty"`
	Views     []string       `json:"views,omitempty"`
	Rendered  []any          `json:"rendered,omitempty"`
}

// Server exposes a Factory over HTTP and streams transitions over SSE.
type Server struct {
	Factory *runtime.Factory
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves metrics from g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a server and connects its stream App to every automaton
// currently registered on f.
func NewServer(f *runtime.Factory, opts ...Option) (*Server, error) {
	s := &Server{
		Factory: f,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	for _, a := range f.Automata() {
		if err := f.Connect(s.Streams, a.Name()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewHandler creates a new HTTP handler for the factory.
func NewHandler(f *runtime.Factory, opts ...Option) (http.Handler, error) {
	s, err := NewServer(f, opts...)
	if err != nil {
		return nil, err
	}
	return s.Routes(), nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/automata", s.ListAutomata)
	r.Get("/automata/{name}", s.GetAutomaton)
	r.Post("/automata/{name}/transit", s.TransitAutomaton)
	r.Get("/automata/{name}/events", s.SubscribeEvents)
	r.Post("/transit", s.Transit)

	metrics := promhttp.Handler()
	if s.gatherer != nil {
		metrics = promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	r.Handle("/metrics", metrics)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "automata-http",
		"version": strings.TrimSpace(automata.Version),
	})
}

// ListAutomata handles the GET /automata request.
func (s *Server) ListAutomata(w http.ResponseWriter, r *http.Request) {
	list := s.Factory.Automata()
	snaps := make([]runtime.Snapshot, 0, len(list))
	for _, a := range list {
		snaps = append(snaps, a.Snapshot())
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

// GetAutomaton handles the GET /automata/{name} request.
func (s *Server) GetAutomaton(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, a.Snapshot())
}

// TransitAutomaton handles the POST /automata/{name}/transit request.
// Actions the active state does not define route the automaton to "failed".
func (s *Server) TransitAutomaton(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	d := runtime.NewDelta(body.Action, body.Input, "")
	omega, err := a.Transit(r.Context(), d)
	if err != nil {
		s.writeError(w, "Transit", err)
		return
	}
	s.respond(w, r, a, d, omega)
}

// Transit handles the POST /transit request. Without an automaton in the body the
// first registered automaton accepting the action performs it.
func (s *Server) Transit(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	req := runtime.TransitRequest{
		Action:    body.Action,
		Input:     body.Input,
		Automaton: body.Automaton,
		Name:      "http",
	}
	a, omega, err := s.Factory.Route(r.Context(), req)
	if err != nil {
		s.writeError(w, "Transit", err)
		return
	}
	s.respond(w, r, a, runtime.NewDelta(body.Action, body.Input, ""), omega)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, a *runtime.Automaton, d *runtime.Delta, omega *runtime.Omega) {
	rendered, err := runtime.RenderAll(r.Context(), a, d, omega)
	if err != nil {
		s.logger.Warn("View render failed", "automaton", a.Name(), "err", err)
	}

	output := make(runtime.Output, len(omega.Output))
	for k, v := range omega.Output {
		if k == domain.OutputBuffer {
			continue
		}
		output[k] = v
	}

	s.writeJSON(w, http.StatusOK, TransitResponse{
		Automaton: a.Name(),
		Next:      omega.Next,
		Output:    output,
		Views:     omega.ViewNames(),
		Rendered:  rendered,
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*runtime.Automaton, bool) {
	name := chi.URLParam(r, "name")
	a, ok := s.Factory.Automaton(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown automaton: %s", name), http.StatusNotFound)
		return nil, false
	}
	return a, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (TransitBody, bool) {
	var body TransitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "err", err)
		return body, false
	}
	if body.Action == "" {
		http.Error(w, "Missing action", http.StatusBadRequest)
		return body, false
	}
	return body, true
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownAutomaton):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoMatchingTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransitionInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// StreamManager handles active SSE connections. It is a runtime.App, so it can be
// connected to automata and fan their transitions out to subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // automaton -> set of channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(automaton string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[automaton]; !ok {
		sm.subscribers[automaton] = make(map[chan<- string]struct{})
	}
	sm.subscribers[automaton][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[automaton]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, automaton)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(automaton string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[automaton] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "automaton", automaton)
		}
	}
}

// OnTransition implements runtime.App.
func (sm *StreamManager) OnTransition(ctx context.Context, e runtime.Event) {
	msg := streamEvent{
		ID:        e.ID,
		Automaton: e.Automaton,
		Action:    e.Delta.Action,
		From:      e.Delta.From,
		Next:      e.Omega.Next,
		Views:     e.Omega.ViewNames(),
		Context:   e.Omega.Output[domain.OutputContext],
	}
	data, err := json.Marshal(msg)
	if err != nil {
		sm.logger.Warn("SSE: Failed to encode event", "automaton", e.Automaton, "err", err)
		return
	}
	sm.Broadcast(e.Automaton, string(data))
}

type streamEvent struct {
	ID        string   `json:"id"`
	Automaton string   `json:"automaton"`
	Action    string   `json:"action"`
	From      string   `json:"from"`
	Next      string   `json:"next"`
	Views     []string `json:"views,omitempty"`
	Context   any      `json:"context,omitempty"`
}

// SubscribeEvents handles the GET /automata/{name}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to automaton", "automaton", a.Name())
	ch, cancel := s.Streams.Subscribe(a.Name())
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "automaton", a.Name())
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: transition\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
