package engine

import "golang.org/x/time/rate"

// NewBWLimiter creates a rate.Limiter that caps aggregate throughput to
// bytesPerSec across every shard. The burst must admit one full block, since
// the engines call WaitN with up to blockSize bytes at a time.
func NewBWLimiter(bytesPerSec, blockSize int64) *rate.Limiter {
	burst := int64(1 << 20) // 1 MB floor keeps small blocks from throttling on burst
	if blockSize > burst {
		burst = blockSize
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(burst))
}
