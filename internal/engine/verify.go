package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/blit/internal/job"
)

// Verifier folds transferred bytes into a rolling digest. It must see bytes
// in the logical order of the copied region: offsets are relative to the
// first byte transferred, not to the start of the file, so skip/seek jobs
// verify exactly what moved.
type Verifier struct {
	algo job.Hash
	h    hash.Hash
	next int64 // next expected logical offset
}

// NewVerifier builds an accumulator for algo. The algorithm is dispatched
// here, once, not per block.
func NewVerifier(algo job.Hash) (*Verifier, error) {
	var h hash.Hash
	switch algo {
	case job.HashSHA256:
		h = sha256.New()
	case job.HashBLAKE3:
		h = blake3.New()
	case job.HashXXH64:
		h = xxhash.New()
	default:
		return nil, fmt.Errorf("%w: no verifier for algorithm %q", job.ErrConfig, algo)
	}
	return &Verifier{algo: algo, h: h}, nil
}

// Update folds p into the digest. off must equal the running total of bytes
// already folded; a gap or reordering is an engine bug and is reported as a
// coordination fault rather than silently producing a wrong digest.
func (v *Verifier) Update(off int64, p []byte) error {
	if off != v.next {
		return fmt.Errorf("%w: digest update at offset %d, expected %d", job.ErrCoordination, off, v.next)
	}
	v.h.Write(p) // hash.Hash.Write never fails
	v.next += int64(len(p))
	return nil
}

// Sum finalizes the digest as lowercase hex. The accumulator can keep
// receiving updates afterwards; hash.Hash.Sum does not consume state.
func (v *Verifier) Sum() string {
	return hex.EncodeToString(v.h.Sum(nil))
}

// Compare checks the computed digest against an expected hex string. The
// comparison is byte-wise on the decoded digests, so hex case differences
// cannot mask (or fake) a mismatch.
func (v *Verifier) Compare(expected string) error {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return fmt.Errorf("%w: expected digest is not valid hex: %v", job.ErrConfig, err)
	}
	got := v.h.Sum(nil)
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: %s mismatch: expected %s, got %s",
			job.ErrVerify, v.algo, strings.ToLower(expected), hex.EncodeToString(got))
	}
	return nil
}
