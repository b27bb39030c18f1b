// Package devtools exposes a proxy over HTTP for inspection during
// development: current state, path lookups, expression evaluation, action
// dispatch, a JSON Schema of the state and a websocket stream of changes.
package devtools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/schema/jsonschema"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Option configures a Server.
type Option func(*config)

type config struct {
	logger      redux.Logger
	schemaOpts  []jsonschema.Option
	readOnly    bool
	checkOrigin func(*http.Request) bool
	maxBody     int64
}

// WithLogger attaches a logger.
func WithLogger(logger redux.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSchemaOptions customises the /schema document.
func WithSchemaOptions(opts ...jsonschema.Option) Option {
	return func(c *config) {
		c.schemaOpts = append(c.schemaOpts, opts...)
	}
}

// WithReadOnly disables POST /dispatch.
func WithReadOnly() Option {
	return func(c *config) {
		c.readOnly = true
	}
}

// WithCheckOrigin replaces the origin check applied to /watch upgrades and
// POST /dispatch. The default only accepts requests without an Origin
// header or whose Origin host matches the request host.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.checkOrigin = fn
		}
	}
}

// SameOrigin reports whether r carries no Origin header or one whose host
// equals r.Host.
func SameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Server serves the devtools routes for one proxy.
type Server[S any] struct {
	proxy    *redux.Proxy[S]
	cfg      config
	schema   *jsonschema.Generator
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the devtools server for proxy.
func New[S any](proxy *redux.Proxy[S], opts ...Option) *Server[S] {
	cfg := config{
		logger:      nopLogger{},
		checkOrigin: SameOrigin,
		maxBody:     1 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := &Server[S]{
		proxy:  proxy,
		cfg:    cfg,
		schema: jsonschema.NewGenerator(cfg.schemaOpts...),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/state", s.handleState)
	r.Get("/select", s.handleSelect)
	r.Get("/schema", s.handleSchema)
	r.Get("/paths", s.handlePaths)
	r.Get("/watch", s.handleWatch)
	if !cfg.readOnly {
		r.With(s.requireOrigin).Post("/dispatch", s.handleDispatch)
	}
	s.router = r
	return s
}

// Handler returns the router. Mount it under a prefix with chi's Mount or
// http.StripPrefix.
func (s *Server[S]) Handler() http.Handler {
	return s.router
}

func (s *Server[S]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server[S]) requireOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.checkOrigin(r) {
			s.cfg.logger.Warn("devtools: origin rejected", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			s.writeJSON(w, http.StatusForbidden, errorBody(errOriginRejected))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server[S]) handleState(w http.ResponseWriter, _ *http.Request) {
	state, err := s.proxy.GetState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// SelectResponse is the body returned by GET /select.
type SelectResponse struct {
	Path  string           `json:"path,omitempty"`
	Expr  string           `json:"expr,omitempty"`
	Found bool             `json:"found"`
	Value any              `json:"value,omitempty"`
	Trace *redux.PathTrace `json:"trace,omitempty"`
}

func (s *Server[S]) handleSelect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if expr := strings.TrimSpace(query.Get("expr")); expr != "" {
		value, err := s.proxy.Evaluate(expr)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, SelectResponse{Expr: expr, Found: true, Value: value})
		return
	}

	state, err := s.proxy.GetState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	path := query.Get("path")
	trace := redux.TracePath(state, redux.ParsePath(path))
	resp := SelectResponse{Path: path, Found: trace.Found, Value: trace.Value}
	if query.Has("trace") {
		resp.Trace = &trace
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// DispatchResponse is the body returned by POST /dispatch.
type DispatchResponse struct {
	Result any `json:"result,omitempty"`
	State  any `json:"state"`
}

func (s *Server[S]) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.maxBody))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	var action redux.Action
	if err := json.Unmarshal(body, &action); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	result, err := s.proxy.Dispatch(action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	state, err := s.proxy.GetState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.cfg.logger.Debug("devtools: action dispatched", "action", action.Type)
	s.writeJSON(w, http.StatusOK, DispatchResponse{Result: result, State: state})
}

func (s *Server[S]) handleSchema(w http.ResponseWriter, _ *http.Request) {
	state, err := s.proxy.GetState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.schema.Generate(state)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server[S]) handlePaths(w http.ResponseWriter, _ *http.Request) {
	state, err := s.proxy.GetState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, redux.Describe(state))
}

// WatchMessage is one websocket frame sent by GET /watch.
type WatchMessage struct {
	Path  string `json:"path,omitempty"`
	Value any    `json:"value"`
}

func (s *Server[S]) handleWatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	var sel redux.Selector
	if strings.TrimSpace(path) != "" {
		sel = redux.DottedPath(path)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.logger.Warn("devtools: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Holds the newest unsent message. The callback never runs concurrently
	// with itself, so replacing a stale message cannot lose a newer one.
	updates := make(chan WatchMessage, 1)
	sub := s.proxy.Select(sel, nil).Watch(ctx, func(value any) {
		msg := WatchMessage{Path: path, Value: value}
		select {
		case updates <- msg:
			return
		default:
		}
		select {
		case <-updates:
			s.cfg.logger.Debug("devtools: watch client lagging, stale update replaced", "path", path)
		default:
		}
		updates <- msg
	})
	defer sub.Unsubscribe()
	s.cfg.logger.Debug("devtools: watch opened", "subscription", sub.ID(), "path", path)

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-updates:
			data, err := json.Marshal(msg)
			if err != nil {
				s.cfg.logger.Warn("devtools: encode watch message", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *Server[S]) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, redux.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, redux.ErrNoEvaluator):
		status = http.StatusNotImplemented
	}
	s.writeJSON(w, status, errorBody(err))
}

func (s *Server[S]) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.cfg.logger.Error("devtools: encode response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

var errOriginRejected = errors.New("devtools: origin not allowed")

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
