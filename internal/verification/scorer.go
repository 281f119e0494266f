package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

// Score is the two-field answer of an external scoring service.
type Score struct {
	Status string `json:"status"`
	Score  int    `json:"score"`
}

// Scorer rates a stored document and its metadata.
type Scorer interface {
	Score(ctx context.Context, fileURL string, metadata json.RawMessage) (Score, error)
}

// SimulatedScorer answers with a Simulator so the asset API and the worker
// run without a scoring endpoint.
type SimulatedScorer struct {
	sim *Simulator
}

// NewSimulatedScorer wraps sim.
func NewSimulatedScorer(sim *Simulator) *SimulatedScorer {
	return &SimulatedScorer{sim: sim}
}

// Score ignores its inputs apart from requiring a file URL.
func (s *SimulatedScorer) Score(ctx context.Context, fileURL string, _ json.RawMessage) (Score, error) {
	if fileURL == "" {
		return Score{}, ErrNoFiles
	}
	res, err := s.sim.Verify(ctx, []model.AcceptedFile{{Name: fileURL}})
	if err != nil {
		return Score{}, err
	}
	return Score{Status: res.Status, Score: res.Score}, nil
}

// HTTPScorer posts {doc_url, metadata} to a scoring endpoint.
type HTTPScorer struct {
	endpoint   string
	client     *http.Client
	threshold  int
	fractional bool
}

// HTTPOption tunes an HTTPScorer.
type HTTPOption func(*HTTPScorer)

// FractionalScores declares that the endpoint answers with scores in [0,1].
// They are scaled to percentages. Without it scores are read as
// percentages already.
func FractionalScores(on bool) HTTPOption {
	return func(h *HTTPScorer) { h.fractional = on }
}

// NewHTTPScorer builds a scorer for endpoint. A nil client gets a 30s timeout.
func NewHTTPScorer(endpoint string, client *http.Client, threshold int, opts ...HTTPOption) *HTTPScorer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	h := &HTTPScorer{endpoint: endpoint, client: client, threshold: threshold}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type scoreRequest struct {
	DocURL   string          `json:"doc_url"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type scoreResponse struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// Score calls the endpoint. A missing status is derived from the threshold.
func (h *HTTPScorer) Score(ctx context.Context, fileURL string, metadata json.RawMessage) (Score, error) {
	body, err := json.Marshal(scoreRequest{DocURL: fileURL, Metadata: metadata})
	if err != nil {
		return Score{}, fmt.Errorf("marshal score request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return Score{}, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return Score{}, fmt.Errorf("call scorer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Score{}, fmt.Errorf("scorer returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Score{}, fmt.Errorf("decode score response: %w", err)
	}
	value := out.Score
	if h.fractional {
		if value < 0 || value > 1 {
			return Score{}, fmt.Errorf("%w: %v outside [0,1]", ErrBadScore, value)
		}
		value *= 100
	}
	score := int(math.Round(value))
	if score < 0 || score > 100 {
		return Score{}, fmt.Errorf("%w: %d outside [0,100]", ErrBadScore, score)
	}
	status := out.Status
	if status == "" {
		status = Classify(score, h.threshold)
	}
	return Score{Status: status, Score: score}, nil
}
