package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/processing"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/wizard"
)

// maxUploadBody bounds one upload request, oversized parts included.
const maxUploadBody = 8 * intake.MaxFileSize

func (s *Server) handleAssetTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, model.AssetTypes)
}

type openRequest struct {
	Owner string `json:"owner"`
}

type openResponse struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	Stage     model.Stage `json:"stage"`
	StageName string      `json:"stageName"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req openRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid json body", nil)
			return
		}
	}
	id := uuid.NewString()
	sess := wizard.NewSession(id, req.Owner, wizard.Deps{
		Verifier:  s.deps.Verifier,
		Minter:    s.deps.Minter,
		Activity:  s.deps.Activity,
		Persisted: s.queueReverify,
		Logger:    s.log,
	})
	s.registry.Put(sess)
	view := sess.Snapshot()
	respondJSON(w, http.StatusCreated, openResponse{
		ID:        id,
		Token:     s.deps.Signer.Token(id, tokenTTL),
		Stage:     view.Draft.Stage,
		StageName: view.StageName,
	})
}

type detailsRequest struct {
	AssetType        *string `json:"assetType"`
	AssetName        *string `json:"assetName"`
	AssetDescription *string `json:"assetDescription"`
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	var req detailsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	if req.AssetType != nil {
		if err := sess.SetAssetType(*req.AssetType); err != nil {
			s.writeError(w, sess, err)
			return
		}
	}
	if req.AssetName != nil {
		if err := sess.SetAssetName(*req.AssetName); err != nil {
			s.writeError(w, sess, err)
			return
		}
	}
	if req.AssetDescription != nil {
		if err := sess.SetAssetDescription(*req.AssetDescription); err != nil {
			s.writeError(w, sess, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form", nil)
		return
	}
	candidates, err := readCandidates(mr)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if len(candidates) == 0 {
		respondError(w, http.StatusBadRequest, "missing file part", nil)
		return
	}
	out, err := sess.AddFiles(r.Context(), candidates)
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	if out.Accepted == nil {
		out.Accepted = []model.AcceptedFile{}
	}
	if out.Rejected == nil {
		out.Rejected = []intake.Rejection{}
	}
	respondJSON(w, http.StatusOK, out)
}

// readCandidates buffers every "file" part up to the per-file ceiling.
// Larger parts are drained and only their size is kept, so intake rejects
// them without their content ever being held.
func readCandidates(mr *multipart.Reader) ([]intake.Candidate, error) {
	var out []intake.Candidate
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		c, err := readPart(part, intake.MaxFileSize)
		part.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}

func readPart(part *multipart.Part, limit int64) (intake.Candidate, error) {
	name := part.FileName()
	if name == "" {
		name = "upload-" + uuid.NewString()[:8]
	}
	declared := part.Header.Get("Content-Type")
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, limit+1))
	if err != nil {
		return intake.Candidate{}, fmt.Errorf("read %s: %w", name, err)
	}
	if n > limit {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return intake.Candidate{}, fmt.Errorf("read %s: %w", name, err)
		}
		return intake.Candidate{Name: name, MimeType: declared, Size: n + rest}, nil
	}
	data := buf.Bytes()
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return intake.Candidate{
		Name:     name,
		MimeType: intake.SniffMIME(declared, head),
		Size:     n,
		Content:  bytes.NewReader(data),
	}, nil
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request, sess *wizard.Session, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file index", nil)
		return
	}
	if err := sess.RemoveFile(index); err != nil {
		s.writeError(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	if _, err := sess.Advance(); err != nil {
		s.writeError(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	if _, err := sess.Retreat(); err != nil {
		s.writeError(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	s.dispatch(w, sess, sess.BeginVerify)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	s.dispatch(w, sess, sess.BeginMint)
}

// dispatch checks the operation synchronously and hands the slow part to
// the processing pool. The operation outlives the request, so it is bound
// to the server's context rather than the request's.
func (s *Server) dispatch(w http.ResponseWriter, sess *wizard.Session, begin func(context.Context) (*wizard.Operation, error)) {
	op, err := begin(s.base)
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	job := processing.Job{
		DraftID: sess.ID(),
		Op:      op.Name,
		Run:     func(context.Context) error { return op.Run() },
		Abort:   op.Abort,
	}
	if err := s.deps.Processor.Submit(job); err != nil {
		op.Abort()
		s.writeError(w, sess, err)
		return
	}
	s.log.Debug("operation queued", zap.String("draft_id", sess.ID()), zap.String("op", op.Name))
	respondJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) queueReverify(ctx context.Context, rec model.AssetRecord) {
	if s.deps.Reverify == nil {
		return
	}
	payload := queue.ReverifyPayload{AssetID: rec.ID, ObjectKey: rec.ObjectKey}
	if err := s.deps.Reverify(ctx, payload); err != nil {
		s.log.Warn("queue reverification", zap.String("asset_id", rec.ID), zap.Error(err))
	}
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	rec, err := sess.Finalize(r.Context(), s.deps.Files, s.deps.Assets)
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}
