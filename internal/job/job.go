// Package job defines the validated description of one block-copy operation
// and the result it produces.
package job

import (
	"fmt"
	"math"
)

// Params are the raw, unvalidated knobs for a copy operation, as collected by
// the CLI layer. New turns them into a Descriptor or a configuration error.
type Params struct {
	Input      string
	Output     string
	BlockSize  uint  // bytes per block
	Count      int64 // blocks to copy; 0 = until input exhausted
	SkipBlocks int64 // input offset, in blocks
	SeekBlocks int64 // output offset, in blocks
	Threads    int
	Hash       Hash
	Expect     string // expected digest, lowercase/uppercase hex; "" = report only
	DirectIO   bool
	UseIOURing bool
	Progress   bool
	BWLimit    int64 // bytes/sec; 0 = unlimited
}

// Descriptor is an immutable, validated copy job. Byte offsets are
// precomputed so the engines never repeat the overflow checks.
type Descriptor struct {
	Input      string
	Output     string
	BlockSize  int64
	Count      int64
	SkipBytes  int64
	SeekBytes  int64
	Threads    int
	Hash       Hash
	Expect     string
	DirectIO   bool
	UseIOURing bool
	Progress   bool
	BWLimit    int64
}

// New validates p and builds a Descriptor. All failures are ErrConfig; no
// file is touched here.
func New(p Params) (Descriptor, error) {
	if p.Input == "" {
		return Descriptor{}, fmt.Errorf("%w: input path is required", ErrConfig)
	}
	if p.Output == "" {
		return Descriptor{}, fmt.Errorf("%w: output path is required", ErrConfig)
	}
	if p.BlockSize == 0 {
		return Descriptor{}, fmt.Errorf("%w: block size cannot be zero", ErrConfig)
	}
	if uint64(p.BlockSize) > math.MaxInt64 {
		return Descriptor{}, fmt.Errorf("%w: block size %d does not fit a file offset", ErrConfig, p.BlockSize)
	}
	bs := int64(p.BlockSize)

	if p.Count < 0 || p.SkipBlocks < 0 || p.SeekBlocks < 0 {
		return Descriptor{}, fmt.Errorf("%w: count, skip and seek must be non-negative", ErrConfig)
	}
	if p.Threads < 1 {
		return Descriptor{}, fmt.Errorf("%w: thread count must be at least 1", ErrConfig)
	}

	skipBytes, err := mulBlocks(p.SkipBlocks, bs)
	if err != nil {
		return Descriptor{}, fmt.Errorf("skip offset: %w", err)
	}
	seekBytes, err := mulBlocks(p.SeekBlocks, bs)
	if err != nil {
		return Descriptor{}, fmt.Errorf("seek offset: %w", err)
	}
	if p.Count > 0 {
		// Total length and end offsets must stay addressable too.
		if _, err := mulBlocks(p.SkipBlocks+p.Count, bs); err != nil {
			return Descriptor{}, fmt.Errorf("skip+count extent: %w", err)
		}
		if _, err := mulBlocks(p.SeekBlocks+p.Count, bs); err != nil {
			return Descriptor{}, fmt.Errorf("seek+count extent: %w", err)
		}
	}

	if p.Expect != "" {
		if p.Hash == HashNone {
			return Descriptor{}, fmt.Errorf("%w: --expect requires a hash algorithm", ErrConfig)
		}
		if err := ValidExpected(p.Hash, p.Expect); err != nil {
			return Descriptor{}, err
		}
	}

	return Descriptor{
		Input:      p.Input,
		Output:     p.Output,
		BlockSize:  bs,
		Count:      p.Count,
		SkipBytes:  skipBytes,
		SeekBytes:  seekBytes,
		Threads:    p.Threads,
		Hash:       p.Hash,
		Expect:     p.Expect,
		DirectIO:   p.DirectIO,
		UseIOURing: p.UseIOURing,
		Progress:   p.Progress,
		BWLimit:    p.BWLimit,
	}, nil
}

// TotalBytes returns count*block_size, or 0 when the length is unknown
// (count == 0). Overflow was ruled out in New.
func (d Descriptor) TotalBytes() int64 {
	if d.Count == 0 {
		return 0
	}
	return d.Count * d.BlockSize
}

func mulBlocks(blocks, blockSize int64) (int64, error) {
	if blocks == 0 {
		return 0, nil
	}
	if blocks > math.MaxInt64/blockSize {
		return 0, fmt.Errorf("%w: %d blocks of %d bytes overflow the addressable range",
			ErrConfig, blocks, blockSize)
	}
	return blocks * blockSize, nil
}

// Result is the outcome of one copy job, folded from all shards in index
// order so totals are deterministic.
type Result struct {
	BlocksCopied int64
	BytesCopied  int64
	Digest       string // lowercase hex; empty when hashing is off
	VerifyErr    error  // digest mismatch; independent of Err
	Err          error  // first fatal error
}
