// Package server exposes discovery and stored snapshots over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/yairfalse/sweep/internal/emitter"
	"github.com/yairfalse/sweep/internal/store"
	"github.com/yairfalse/sweep/pkg/resource"
)

// Discoverer runs one discovery pass.
type Discoverer interface {
	Discover(ctx context.Context, account string) (*resource.Snapshot, error)
}

// SnapshotReader reads persisted snapshots.
type SnapshotReader interface {
	List() ([]resource.SnapshotInfo, error)
	Get(id string) (*resource.Snapshot, error)
}

// AccountResolver returns the account label used when a request names none.
type AccountResolver func(ctx context.Context) string

// Server serves the HTTP API.
type Server struct {
	router     *mux.Router
	discoverer Discoverer
	snapshots  SnapshotReader
	emit       emitter.Emitter
	resolve    AccountResolver
	metrics    http.Handler
	health     func() any
	log        zerolog.Logger
	timeout    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithSnapshots enables the /snapshots routes.
func WithSnapshots(r SnapshotReader) Option {
	return func(s *Server) { s.snapshots = r }
}

// WithEmitter sends every snapshot produced by /discover-aws to e.
func WithEmitter(e emitter.Emitter) Option {
	return func(s *Server) { s.emit = e }
}

// WithAccountResolver sets the fallback account label lookup.
func WithAccountResolver(r AccountResolver) Option {
	return func(s *Server) { s.resolve = r }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealth replaces the static /healthz body with the result of fn.
func WithHealth(fn func() any) Option {
	return func(s *Server) { s.health = fn }
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithTimeout bounds each discovery request. Zero means no bound beyond the
// client connection.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server for d.
func New(d Discoverer, opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		discoverer: d,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/discover-aws", s.discoverHandler).Methods(http.MethodGet)

	if s.snapshots != nil {
		s.router.HandleFunc("/snapshots", s.listHandler).Methods(http.MethodGet)
		s.router.HandleFunc("/snapshots/{id}", s.getHandler).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler returns the router wrapped with CORS for the browser frontend.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	if s.health != nil {
		writeJSON(w, http.StatusOK, s.health())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	account := r.URL.Query().Get("accountId")
	if account == "" {
		account = resource.NotAvailable
		if s.resolve != nil {
			account = s.resolve(ctx)
		}
	}

	snap, err := s.discoverer.Discover(ctx, account)
	if err != nil {
		s.log.Error().Err(err).Str("account", account).Msg("discovery failed")
		writeError(w, http.StatusInternalServerError, discoveryErrorMessage(err))
		return
	}

	if s.emit != nil {
		if err := s.emit.Emit(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("snapshot", snap.ID).Msg("emit failed")
		}
	}

	s.log.Info().
		Str("snapshot", snap.ID).
		Str("account", account).
		Int("resources", snap.Resources.Count()).
		Bool("partial", snap.Partial).
		Msg("discovery served")

	writeJSON(w, http.StatusOK, snap.Resources)
}

func discoveryErrorMessage(err error) string {
	switch {
	case errors.Is(err, resource.ErrAuthorization):
		return "Could not retrieve AWS regions. Check AWS credentials and permissions."
	case errors.Is(err, resource.ErrUnreachable):
		return "Could not retrieve AWS regions. Check network connectivity."
	default:
		return "Could not retrieve AWS regions. Check AWS credentials and network connectivity."
	}
}

func (s *Server) listHandler(w http.ResponseWriter, _ *http.Request) {
	infos, err := s.snapshots.List()
	if err != nil {
		s.log.Error().Err(err).Msg("list snapshots failed")
		writeError(w, http.StatusInternalServerError, "could not list snapshots")
		return
	}
	if infos == nil {
		infos = []resource.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := s.snapshots.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("snapshot", id).Msg("get snapshot failed")
		writeError(w, http.StatusInternalServerError, "could not read snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
