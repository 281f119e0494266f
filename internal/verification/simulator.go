// Package verification produces authenticity scores for submitted evidence.
// The Simulator stands in for a real scoring model; Scorer implementations
// talk to an external scoring service.
package verification

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

// ErrNoFiles is returned when verification is requested without evidence.
var ErrNoFiles = errors.New("verification requires at least one file")

// ErrBadScore is returned when a scoring service answers out of range.
var ErrBadScore = errors.New("score out of range")

const (
	DefaultDelay     = 4 * time.Second
	DefaultMinScore  = 80
	DefaultMaxScore  = 99
	DefaultThreshold = 80
)

// Verifier scores the accepted files of a draft.
type Verifier interface {
	Verify(ctx context.Context, files []model.AcceptedFile) (model.VerificationResult, error)
}

// Simulator returns a uniformly distributed score after a fixed delay.
type Simulator struct {
	delay     time.Duration
	minScore  int
	maxScore  int
	threshold int
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithDelay sets the simulated latency.
func WithDelay(d time.Duration) Option {
	return func(s *Simulator) { s.delay = d }
}

// WithScoreRange sets the inclusive score bounds.
func WithScoreRange(lo, hi int) Option {
	return func(s *Simulator) {
		s.minScore = lo
		s.maxScore = hi
	}
}

// WithThreshold sets the lowest score classified as approved.
func WithThreshold(threshold int) Option {
	return func(s *Simulator) { s.threshold = threshold }
}

// WithSeed makes the score sequence deterministic.
func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// NewSimulator builds a Simulator with the default 4s delay and 80..99 range.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		delay:     DefaultDelay,
		minScore:  DefaultMinScore,
		maxScore:  DefaultMaxScore,
		threshold: DefaultThreshold,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxScore < s.minScore {
		s.minScore, s.maxScore = s.maxScore, s.minScore
	}
	if s.delay < 0 {
		s.delay = 0
	}
	return s
}

// Verify waits for the configured delay and returns a score. Empty input is
// rejected before any waiting happens.
func (s *Simulator) Verify(ctx context.Context, files []model.AcceptedFile) (model.VerificationResult, error) {
	if len(files) == 0 {
		return model.VerificationResult{}, ErrNoFiles
	}
	if err := sleep(ctx, s.delay); err != nil {
		return model.VerificationResult{}, err
	}
	score := s.nextScore()
	return model.VerificationResult{
		Score:       score,
		Status:      Classify(score, s.threshold),
		CompletedAt: s.now().UTC(),
	}, nil
}

func (s *Simulator) nextScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minScore + s.rnd.Intn(s.maxScore-s.minScore+1)
}

// Classify maps a score to approved or flagged.
func Classify(score, threshold int) string {
	if score >= threshold {
		return model.VerificationApproved
	}
	return model.VerificationFlagged
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
