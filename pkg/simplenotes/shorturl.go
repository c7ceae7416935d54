package simplenotes

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"strconv"

	"github.com/google/uuid"
)

// DefaultShortURLMaxProbes bounds the candidates tried by ShortURLAllocator.
const DefaultShortURLMaxProbes = 100

// ShortURLAllocator derives short aliases for stored objects.
//
// The first candidate is a pure function of (source url, note id) so a retried
// upload of the same object usually gets the same code. Taken candidates are
// followed by base_1, base_2, ... up to maxProbes candidates in total.
type ShortURLAllocator struct {
	checker   ShortURLChecker
	maxProbes int
}

// NewShortURLAllocator creates an allocator probing checker for collisions.
// maxProbes <= 0 selects DefaultShortURLMaxProbes.
func NewShortURLAllocator(checker ShortURLChecker, maxProbes int) *ShortURLAllocator {
	if maxProbes <= 0 {
		maxProbes = DefaultShortURLMaxProbes
	}
	return &ShortURLAllocator{checker: checker, maxProbes: maxProbes}
}

// BaseShortURL returns the deterministic first candidate for sourceURL and
// noteID: the first 6 bytes of md5("url:note_id") in URL-safe base64.
func BaseShortURL(sourceURL string, noteID uuid.UUID) string {
	sum := md5.Sum([]byte(sourceURL + ":" + noteID.String()))
	return base64.URLEncoding.EncodeToString(sum[:6])
}

// Candidate returns the n-th candidate for base. Candidate 0 is base itself.
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "_" + strconv.Itoa(n)
}

// Allocate returns the first unused candidate. It fails with
// ErrShortURLExhausted when maxProbes candidates are all taken.
func (a *ShortURLAllocator) Allocate(ctx context.Context, sourceURL string, noteID uuid.UUID) (string, error) {
	base := BaseShortURL(sourceURL, noteID)
	for n := 0; n < a.maxProbes; n++ {
		candidate := Candidate(base, n)
		taken, err := a.checker.ShortURLExists(ctx, candidate)
		if err != nil {
			return "", persistenceError("image", "allocate_short_url", uuid.Nil, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrShortURLExhausted
}
