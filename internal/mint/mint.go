// Package mint issues token records for verified drafts. No ledger is
// written; identifiers are produced locally after a simulated latency.
package mint

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

// ErrNotVerified is returned when minting is attempted without a
// verification result. Callers treat it as a programming error.
var ErrNotVerified = errors.New("mint requires a completed verification")

// ErrMissingDraft is returned for an empty draft id.
var ErrMissingDraft = errors.New("mint requires a draft id")

// DefaultDelay is the simulated confirmation latency.
const DefaultDelay = 3 * time.Second

// Minter issues one token per draft.
type Minter interface {
	Mint(ctx context.Context, draftID string, v model.VerificationResult) (model.MintResult, error)
}

// Forgetter is implemented by minters that remember results per draft.
// Forget is called once a draft can no longer be minted again.
type Forgetter interface {
	Forget(draftID string)
}

// Simulator hands out sequential token ids, starting at zero like an
// ERC-721 counter, and remembers what it issued per draft.
type Simulator struct {
	delay time.Duration
	now   func() time.Time

	mu     sync.Mutex
	next   uint64
	issued map[string]model.MintResult
}

// NewSimulator builds a Simulator with the given latency.
func NewSimulator(delay time.Duration) *Simulator {
	if delay < 0 {
		delay = 0
	}
	return &Simulator{
		delay:  delay,
		now:    time.Now,
		issued: make(map[string]model.MintResult),
	}
}

// Mint waits for the simulated confirmation and returns the token for
// draftID. Repeated calls for the same draft return the first result.
func (s *Simulator) Mint(ctx context.Context, draftID string, v model.VerificationResult) (model.MintResult, error) {
	if draftID == "" {
		return model.MintResult{}, ErrMissingDraft
	}
	if v.IsZero() {
		return model.MintResult{}, ErrNotVerified
	}
	if res, ok := s.lookup(draftID); ok {
		return res, nil
	}
	if err := wait(ctx, s.delay); err != nil {
		return model.MintResult{}, err
	}
	txRef, err := transactionReference()
	if err != nil {
		return model.MintResult{}, fmt.Errorf("generate transaction reference: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Another call may have finished while this one was waiting.
	if res, ok := s.issued[draftID]; ok {
		return res, nil
	}
	tokenID := strconv.FormatUint(s.next, 10)
	s.next++
	res := model.MintResult{
		TokenID:              tokenID,
		TransactionReference: txRef,
		TokenURI:             "ipfs://vault/" + draftID + "/" + tokenID,
		CompletedAt:          s.now().UTC(),
	}
	s.issued[draftID] = res
	return res, nil
}

// Forget drops the result remembered for draftID.
func (s *Simulator) Forget(draftID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.issued, draftID)
}

// Len reports how many drafts have a remembered result.
func (s *Simulator) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}

func (s *Simulator) lookup(draftID string) (model.MintResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.issued[draftID]
	return res, ok
}

func transactionReference() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}

func wait(ctx context.Context, d time.Duration) error {
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
