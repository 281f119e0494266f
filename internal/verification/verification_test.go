package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

var oneFile = []model.AcceptedFile{{ID: "f1", Name: "deed.png", MimeType: "image/png", SizeBytes: 1024}}

func TestSimulatorScoreRange(t *testing.T) {
	sim := NewSimulator(WithDelay(0), WithSeed(7))
	for i := 0; i < 500; i++ {
		res, err := sim.Verify(context.Background(), oneFile)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 80)
		assert.LessOrEqual(t, res.Score, 99)
		assert.Equal(t, model.VerificationApproved, res.Status)
		assert.False(t, res.CompletedAt.IsZero())
	}
}

func TestSimulatorRejectsEmptyBeforeWaiting(t *testing.T) {
	sim := NewSimulator(WithDelay(time.Hour))
	start := time.Now()
	_, err := sim.Verify(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimulatorHonorsCancellation(t *testing.T) {
	sim := NewSimulator(WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Verify(ctx, oneFile)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, model.VerificationApproved, Classify(80, 80))
	assert.Equal(t, model.VerificationFlagged, Classify(79, 80))
}

func TestSimulatedScorer(t *testing.T) {
	scorer := NewSimulatedScorer(NewSimulator(WithDelay(0), WithScoreRange(50, 50), WithThreshold(60)))
	got, err := scorer.Score(context.Background(), "mem://evidence/1", nil)
	require.NoError(t, err)
	assert.Equal(t, Score{Status: model.VerificationFlagged, Score: 50}, got)

	_, err = scorer.Score(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestHTTPScorer(t *testing.T) {
	var received scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score":0.91}`))
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, srv.Client(), 80, FractionalScores(true))
	got, err := scorer.Score(context.Background(), "https://files/doc.pdf", json.RawMessage(`{"assetName":"Loft"}`))
	require.NoError(t, err)
	assert.Equal(t, Score{Status: model.VerificationApproved, Score: 91}, got)
	assert.Equal(t, "https://files/doc.pdf", received.DocURL)
	assert.JSONEq(t, `{"assetName":"Loft"}`, string(received.Metadata))
}

func TestHTTPScorerScale(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		fractional bool
		want       Score
		wantErr    bool
	}{
		{name: "percent one stays one", body: `{"score":1}`, want: Score{Status: model.VerificationFlagged, Score: 1}},
		{name: "percent", body: `{"score":87}`, want: Score{Status: model.VerificationApproved, Score: 87}},
		{name: "fraction one is full marks", body: `{"score":1}`, fractional: true, want: Score{Status: model.VerificationApproved, Score: 100}},
		{name: "fraction", body: `{"score":0.42,"status":"flagged"}`, fractional: true, want: Score{Status: model.VerificationFlagged, Score: 42}},
		{name: "fraction out of range", body: `{"score":42}`, fractional: true, wantErr: true},
		{name: "percent out of range", body: `{"score":140}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := NewHTTPScorer(srv.URL, srv.Client(), 80, FractionalScores(tc.fractional)).
				Score(context.Background(), "u", nil)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadScore)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHTTPScorerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPScorer(srv.URL, nil, 80).Score(context.Background(), "u", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
