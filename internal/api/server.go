package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/config"
	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/model"
	pdfutil "github.com/dharsanguruparan/VaultAI/internal/pdf"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
)

const defaultActivityLimit = 50

// Deps are the backends behind the asset routes. Reverify is optional.
type Deps struct {
	Assets   storage.AssetStore
	Files    storage.FileStore
	Activity storage.ActivityLog
	Scorer   verification.Scorer
	Reverify func(ctx context.Context, payload queue.ReverifyPayload) error
	Logger   *zap.Logger
}

// Server exposes the asset submission and listing endpoints.
type Server struct {
	cfg  *config.Config
	deps Deps
	log  *zap.Logger
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{cfg: cfg, deps: deps, log: deps.Logger}
}

// Handler returns the routes without middleware so they can be mounted
// under another mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register adds the asset routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/assets/submit", s.handleSubmit)
	mux.HandleFunc("/assets", s.handleAssets)
	mux.HandleFunc("/assets/", s.handleAsset)
	mux.HandleFunc("/activity", s.handleActivity)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	assets, err := s.deps.Assets.List(r.Context())
	if err != nil {
		s.log.Error("list assets", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		filtered := assets[:0]
		for _, a := range assets {
			if strings.EqualFold(a.Owner, owner) {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	respondJSON(w, http.StatusOK, assets)
}

// createRequest mirrors the record fields a client may set directly.
type createRequest struct {
	FileURL  string          `json:"fileUrl"`
	Metadata json.RawMessage `json:"metadata"`
	Status   string          `json:"status"`
	Score    *int            `json:"score"`
	Owner    string          `json:"owner"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.FileURL) == "" {
		fields["fileUrl"] = "fileUrl is required"
	}
	if req.Score == nil {
		fields["score"] = "score is required"
	} else if *req.Score < 0 || *req.Score > 100 {
		fields["score"] = "score must be between 0 and 100"
	}
	switch req.Status {
	case "", model.VerificationApproved, model.VerificationFlagged:
	default:
		fields["status"] = "status must be approved or flagged"
	}
	if len(fields) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid asset", Fields: fields})
		return
	}
	rec := &model.AssetRecord{
		FileURL:  req.FileURL,
		Metadata: normalizeMetadata(req.Metadata),
		Status:   req.Status,
		Score:    *req.Score,
		Owner:    req.Owner,
	}
	if rec.Status == "" {
		rec.Status = verification.Classify(rec.Score, s.cfg.ApproveAtScore)
	}
	if err := s.deps.Assets.Create(r.Context(), rec); err != nil {
		s.log.Error("create asset", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store asset")
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/assets/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "asset not found")
		return
	}
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rec, err := s.deps.Assets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "asset not found")
			return
		}
		s.log.Error("get asset", zap.String("asset_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load asset")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if s.deps.Activity == nil {
		respondJSON(w, http.StatusOK, []model.Activity{})
		return
	}
	entries, err := s.deps.Activity.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list activity", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// document is the buffered "document" part of a submit request.
type document struct {
	name        string
	contentType string
	data        []byte
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	doc, metadata, owner, err := s.readSubmission(mr)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), errors.Is(err, errDocumentTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, intake.ReasonSize)
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if !intake.AllowedType(doc.contentType) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:  intake.ReasonType,
			Fields: map[string]string{"document": doc.contentType},
		})
		return
	}

	id := uuid.NewString()
	key := fmt.Sprintf("uploads/%s/%s", id, filepath.Base(doc.name))
	url, err := s.deps.Files.Put(ctx, key, bytes.NewReader(doc.data), int64(len(doc.data)), doc.contentType)
	if err != nil {
		s.log.Error("upload to storage failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	s.record(ctx, model.Activity{Type: model.ActivityDocumentsUploaded, Status: model.ActivityCompleted, AssetID: id, Detail: doc.name})

	score, err := s.deps.Scorer.Score(ctx, url, scoringInput(metadata, doc, s.log))
	if err != nil {
		s.log.Warn("scoring failed", zap.String("asset_id", id), zap.Error(err))
		s.record(ctx, model.Activity{Type: model.ActivityVerificationFailed, Status: model.ActivityFailed, AssetID: id, Detail: err.Error()})
		respondError(w, http.StatusBadGateway, "verification failed")
		return
	}
	rec := &model.AssetRecord{
		ID:        id,
		FileURL:   url,
		ObjectKey: key,
		Metadata:  metadata,
		Status:    score.Status,
		Score:     score.Score,
		Owner:     owner,
	}
	if err := s.deps.Assets.Create(ctx, rec); err != nil {
		s.log.Error("store asset", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store asset")
		return
	}
	s.record(ctx, model.Activity{Type: model.ActivityVerification, Status: model.ActivityCompleted, AssetID: id,
		Detail: fmt.Sprintf("score %d (%s)", score.Score, score.Status)})
	if s.deps.Reverify != nil {
		if err := s.deps.Reverify(ctx, queue.ReverifyPayload{AssetID: id, ObjectKey: key}); err != nil {
			s.log.Warn("queue reverification", zap.String("asset_id", id), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusCreated, rec)
}

var errDocumentTooLarge = errors.New("document too large")

func (s *Server) readSubmission(mr *multipart.Reader) (*document, json.RawMessage, string, error) {
	var (
		doc      *document
		metadata json.RawMessage
		owner    string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, "", err
		}
		switch part.FormName() {
		case "document":
			data, err := io.ReadAll(io.LimitReader(part, s.cfg.MaxFileSize+1))
			part.Close()
			if err != nil {
				return nil, nil, "", fmt.Errorf("read document: %w", err)
			}
			if int64(len(data)) > s.cfg.MaxFileSize {
				return nil, nil, "", errDocumentTooLarge
			}
			name := part.FileName()
			if name == "" {
				name = "document"
			}
			head := data
			if len(head) > 512 {
				head = head[:512]
			}
			doc = &document{name: name, contentType: intake.SniffMIME(part.Header.Get("Content-Type"), head), data: data}
		case "metadata":
			raw, err := io.ReadAll(io.LimitReader(part, 1<<20))
			part.Close()
			if err != nil {
				return nil, nil, "", fmt.Errorf("read metadata: %w", err)
			}
			if len(bytes.TrimSpace(raw)) > 0 {
				if !json.Valid(raw) {
					return nil, nil, "", errors.New("metadata must be json")
				}
				metadata = raw
			}
		case "owner":
			raw, err := io.ReadAll(io.LimitReader(part, 256))
			part.Close()
			if err != nil {
				return nil, nil, "", fmt.Errorf("read owner: %w", err)
			}
			owner = strings.TrimSpace(string(raw))
		default:
			part.Close()
		}
	}
	if doc == nil {
		return nil, nil, "", errors.New("missing document part")
	}
	if len(doc.data) == 0 {
		return nil, nil, "", errors.New("empty document")
	}
	return doc, normalizeMetadata(metadata), owner, nil
}

// scoringInput adds what a PDF reveals about itself to the submitted
// metadata. Unreadable PDFs are scored on metadata alone.
func scoringInput(metadata json.RawMessage, doc *document, log *zap.Logger) json.RawMessage {
	if !pdfutil.IsPDF(doc.contentType, doc.data) {
		return metadata
	}
	sum, err := pdfutil.Inspect(doc.data)
	if err != nil {
		log.Info("evidence not readable as pdf", zap.String("file", doc.name), zap.Error(err))
		return metadata
	}
	out, err := json.Marshal(struct {
		Metadata json.RawMessage `json:"metadata"`
		Evidence pdfutil.Summary `json:"evidence"`
	}{metadata, sum})
	if err != nil {
		return metadata
	}
	return out
}

func (s *Server) record(ctx context.Context, a model.Activity) {
	if s.deps.Activity == nil {
		return
	}
	if err := s.deps.Activity.Record(context.WithoutCancel(ctx), &a); err != nil {
		s.log.Warn("record activity", zap.Error(err))
	}
}

func normalizeMetadata(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return json.RawMessage(`{}`)
	}
	return raw
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}
