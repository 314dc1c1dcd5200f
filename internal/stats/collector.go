// Package stats tracks copy progress with lock-free counters and a small
// throughput ring for rate/ETA display.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks a running copy job. Engines write counters with atomics;
// presenters read snapshots and tick the throughput ring.
type Collector struct {
	blocksCopied atomic.Int64
	bytesCopied  atomic.Int64
	bytesTotal   atomic.Int64 // 0 when the copy length is unknown
	shardsActive atomic.Int64
	startTime    time.Time

	// Ring buffer — written only by the presenter's Tick(), not workers.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetBytesTotal records the known total copy length (count × block size).
// Left at zero for until-EOF jobs.
func (c *Collector) SetBytesTotal(n int64) { c.bytesTotal.Store(n) }

func (c *Collector) AddBlocksCopied(n int64) { c.blocksCopied.Add(n) }
func (c *Collector) AddBytesCopied(n int64)  { c.bytesCopied.Add(n) }
func (c *Collector) ShardStarted()           { c.shardsActive.Add(1) }
func (c *Collector) ShardFinished()          { c.shardsActive.Add(-1) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BlocksCopied int64
	BytesCopied  int64
	BytesTotal   int64
	ShardsActive int64
	Elapsed      time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BlocksCopied: c.blocksCopied.Load(),
		BytesCopied:  c.bytesCopied.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		ShardsActive: c.shardsActive.Load(),
		Elapsed:      c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the
// presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	delta := currentBytes - c.lastBytes
	c.lastBytes = currentBytes

	c.throughput[c.ringIdx] = delta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
// Returns 0 when the total is unknown.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("blocks=%d bytes=%d total=%d elapsed=%s",
		s.BlocksCopied, s.BytesCopied, s.BytesTotal, s.Elapsed.Round(time.Millisecond))
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
