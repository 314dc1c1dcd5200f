package job

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash selects the verification algorithm. Dispatch happens once, when the
// accumulator is built, never per block.
type Hash int

const (
	HashNone Hash = iota
	HashSHA256
	HashBLAKE3
	HashXXH64
)

var hashNames = [...]string{
	HashNone:   "none",
	HashSHA256: "sha256",
	HashBLAKE3: "blake3",
	HashXXH64:  "xxh64",
}

func (h Hash) String() string {
	if int(h) < len(hashNames) {
		return hashNames[h]
	}
	return "unknown"
}

// Size returns the digest width in bytes, or 0 for HashNone.
func (h Hash) Size() int {
	switch h {
	case HashSHA256, HashBLAKE3:
		return 32
	case HashXXH64:
		return 8
	default:
		return 0
	}
}

// ParseHash maps a CLI/config string to a Hash. The empty string and "none"
// both disable verification.
func ParseHash(s string) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return HashNone, nil
	case "sha256":
		return HashSHA256, nil
	case "blake3":
		return HashBLAKE3, nil
	case "xxh64":
		return HashXXH64, nil
	default:
		return HashNone, fmt.Errorf("%w: unknown hash algorithm %q (use sha256, blake3 or xxh64)", ErrConfig, s)
	}
}

// ValidExpected checks that expect is hex of the right width for h.
func ValidExpected(h Hash, expect string) error {
	raw, err := hex.DecodeString(expect)
	if err != nil {
		return fmt.Errorf("%w: expected digest is not valid hex: %v", ErrConfig, err)
	}
	if len(raw) != h.Size() {
		return fmt.Errorf("%w: expected digest is %d bytes, %s digests are %d",
			ErrConfig, len(raw), h, h.Size())
	}
	return nil
}
