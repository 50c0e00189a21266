package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// wordlist is the BIP39 English wordlist (2048 words).
// Using two words plus a number gives 2048 × 2048 × 100 = 419 million combinations.
var wordlist = wordlists.English

// maxReferenceAttempts bounds collision retries in Generate.
const maxReferenceAttempts = 100

// ErrReferenceExhausted is returned when no unused reference was found.
var ErrReferenceExhausted = errors.New("failed to generate unique reference")

// ReferenceChecker reports whether a reference is already taken (non-zero when it is).
type ReferenceChecker interface {
	ReferenceExists(ctx context.Context, reference string) (int64, error)
}

// ReferenceService generates unique, human-readable report references that
// users can read out to support ("apple-river-42").
type ReferenceService struct {
	checker ReferenceChecker

	mu  sync.Mutex
	rng *rand.Rand
}

// NewReferenceService creates a ReferenceService with its own random source.
func NewReferenceService(checker ReferenceChecker) *ReferenceService {
	return &ReferenceService{
		checker: checker,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate creates a unique reference, retrying if collisions occur.
func (s *ReferenceService) Generate(ctx context.Context) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := s.candidate()

		exists, err := s.checker.ReferenceExists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to check reference existence: %w", err)
		}

		if exists == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrReferenceExhausted, maxReferenceAttempts)
}

// rand.Rand is not safe for concurrent use.
func (s *ReferenceService) candidate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	word1 := wordlist[s.rng.Intn(len(wordlist))]
	word2 := wordlist[s.rng.Intn(len(wordlist))]
	num := s.rng.Intn(100)
	return fmt.Sprintf("%s-%s-%d", word1, word2, num)
}
