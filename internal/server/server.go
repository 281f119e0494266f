// Package server hosts the wizard over HTTP. Each client opens a session,
// fills in details, uploads evidence and then triggers verification and
// minting, which run on the processing pool while the client polls.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/api"
	"github.com/dharsanguruparan/VaultAI/internal/config"
	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/mint"
	"github.com/dharsanguruparan/VaultAI/internal/processing"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/signing"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/submission"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
	"github.com/dharsanguruparan/VaultAI/internal/wizard"
)

// TokenHeader carries the session token on every session route.
const TokenHeader = "X-Session-Token"

const (
	tokenTTL      = 24 * time.Hour
	sweepInterval = time.Minute
)

// Deps are the collaborators shared by every session. API is optional and
// is mounted for the asset routes. Reverify, when set, queues every
// finalized asset for a background re-check.
type Deps struct {
	Verifier  verification.Verifier
	Minter    mint.Minter
	Files     storage.FileStore
	Assets    storage.AssetStore
	Activity  storage.ActivityLog
	Processor *processing.Processor
	Signer    *signing.Signer
	API       *api.Server
	Reverify  func(ctx context.Context, payload queue.ReverifyPayload) error
	Logger    *zap.Logger
}

// Server hosts HTTP handlers for the wizard.
type Server struct {
	cfg      *config.Config
	deps     Deps
	log      *zap.Logger
	registry *Registry
	base     context.Context
	once     sync.Once
}

// New creates a configured server.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Processor == nil {
		deps.Processor = processing.New(cfg.ProcessingPool, deps.Logger)
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger,
		registry: NewRegistry(cfg.SessionTTL, deps.Logger),
		base:     context.Background(),
	}
}

// Registry exposes the live sessions.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start launches the processing workers and the session sweeper. Work
// started by sessions is bound to ctx.
func (s *Server) Start(ctx context.Context) {
	s.once.Do(func() {
		s.base = ctx
		s.deps.Processor.Start(ctx)
		go s.registry.Run(ctx, sweepInterval)
	})
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.Start(ctx)
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.Info("server listening", zap.String("addr", s.cfg.Address))
	err := httpServer.ListenAndServe()
	s.deps.Processor.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns every route wrapped in the access log and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	return api.CORSMiddleware(api.LoggingMiddleware(s.log)(s.routes()))
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	if s.deps.API != nil {
		s.deps.API.Register(mux)
	} else {
		mux.HandleFunc("/healthz", s.handleHealth)
	}
	mux.HandleFunc("/asset-types", s.handleAssetTypes)
	mux.HandleFunc("/sessions", s.handleOpen)
	mux.HandleFunc("/sessions/", s.handleSessionRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	sess, ok := s.session(w, r, parts[0])
	if !ok {
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			respondJSON(w, http.StatusOK, sess.Snapshot())
		case http.MethodDelete:
			s.registry.Remove(sess.ID())
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w)
		}
		return
	}
	action := parts[1]
	switch {
	case action == "details" && r.Method == http.MethodPut:
		s.handleDetails(w, r, sess)
	case action == "files" && len(parts) == 2 && r.Method == http.MethodPost:
		s.handleUpload(w, r, sess)
	case action == "files" && len(parts) == 3 && r.Method == http.MethodDelete:
		s.handleRemoveFile(w, r, sess, parts[2])
	case action == "advance" && r.Method == http.MethodPost:
		s.handleAdvance(w, r, sess)
	case action == "retreat" && r.Method == http.MethodPost:
		s.handleRetreat(w, r, sess)
	case action == "verify" && r.Method == http.MethodPost:
		s.handleVerify(w, r, sess)
	case action == "mint" && r.Method == http.MethodPost:
		s.handleMint(w, r, sess)
	case action == "finalize" && r.Method == http.MethodPost:
		s.handleFinalize(w, r, sess)
	default:
		respondError(w, http.StatusNotFound, "no such route", nil)
	}
}

// session authenticates the token before looking the id up so unknown ids
// and bad tokens look the same to a caller without a token.
func (s *Server) session(w http.ResponseWriter, r *http.Request, id string) (*wizard.Session, bool) {
	if !s.deps.Signer.Validate(id, r.Header.Get(TokenHeader)) {
		respondError(w, http.StatusUnauthorized, "invalid session token", nil)
		return nil, false
	}
	sess, ok := s.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found", nil)
		return nil, false
	}
	return sess, true
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wizard.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrBusy),
		errors.Is(err, wizard.ErrWrongStage),
		errors.Is(err, wizard.ErrVerificationRequired),
		errors.Is(err, wizard.ErrMintRequired),
		errors.Is(err, wizard.ErrComplete),
		errors.Is(err, wizard.ErrNoContent),
		errors.Is(err, mint.ErrNotVerified),
		errors.Is(err, submission.ErrNotMinted),
		errors.Is(err, submission.ErrNoEvidence),
		errors.Is(err, verification.ErrNoFiles):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrDiscarded):
		return http.StatusGone
	case errors.Is(err, intake.ErrIndexOutOfRange), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, processing.ErrQueueFull), errors.Is(err, processing.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err, attaching the draft's field errors for
// validation failures.
func (s *Server) writeError(w http.ResponseWriter, sess *wizard.Session, err error) {
	status := statusFor(err)
	var fields map[string]string
	if status == http.StatusUnprocessableEntity && sess != nil {
		fields = sess.Snapshot().Draft.Errors
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error(), fields)
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}

func respondError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	if len(fields) == 0 {
		fields = nil
	}
	respondJSON(w, status, errorBody{Error: msg, Fields: fields})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		zap.L().Warn("encode json failed", zap.Error(err))
	}
}
