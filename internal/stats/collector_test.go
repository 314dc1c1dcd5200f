package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddBlocksCopied(1)
				c.AddBytesCopied(256)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.BlocksCopied)
	assert.Equal(t, expected*256, s.BytesCopied)
}

func TestShardTracking(t *testing.T) {
	c := NewCollector()
	c.ShardStarted()
	c.ShardStarted()
	assert.Equal(t, int64(2), c.Snapshot().ShardsActive)
	c.ShardFinished()
	c.ShardFinished()
	assert.Zero(t, c.Snapshot().ShardsActive)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		BlocksCopied: 10,
		BytesCopied:  4096,
		BytesTotal:   8192,
		Elapsed:      1500 * time.Millisecond,
	}
	expected := "blocks=10 bytes=4096 total=8192 elapsed=1.5s"
	assert.Equal(t, expected, s.String())
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.startTime.IsZero())
	assert.InDelta(t, 0, c.Elapsed().Seconds(), 1)
}

func TestSetBytesTotal(t *testing.T) {
	c := NewCollector()
	c.SetBytesTotal(1024 * 1024)
	assert.Equal(t, int64(1024*1024), c.Snapshot().BytesTotal)
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()

	// Simulate 5 seconds of 1000 bytes/sec.
	for range 5 {
		c.AddBytesCopied(1000)
		c.Tick()
	}

	speed := c.RollingSpeed(5)
	assert.InDelta(t, 1000.0, speed, 0.01)
}

func TestRollingSpeedPartialWindow(t *testing.T) {
	c := NewCollector()

	// Only 2 samples; asking for 10 averages over what exists.
	c.AddBytesCopied(500)
	c.Tick()
	c.AddBytesCopied(500)
	c.Tick()

	speed := c.RollingSpeed(10)
	assert.InDelta(t, 500.0, speed, 0.01)
}

func TestRollingSpeedSamplePeriod(t *testing.T) {
	c := NewCollector()

	// Each Tick closes out one second; a single 5000-byte sample reads as
	// 5000 B/s regardless of the window requested.
	c.AddBytesCopied(5000)
	c.Tick()
	assert.InDelta(t, 5000.0, c.RollingSpeed(10), 0.01)

	// Four idle seconds drag the 5-second average down to 1000.
	for range 4 {
		c.Tick()
	}
	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
}

func TestRollingSpeedEmpty(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RollingSpeed(10))
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetBytesTotal(10000)

	// 1000 bytes/sec with 5000 remaining.
	for range 5 {
		c.AddBytesCopied(1000)
		c.Tick()
	}

	eta := c.ETA()
	require.Positive(t, eta)
	assert.Equal(t, 5*time.Second, eta)
}

func TestETAUnknownTotal(t *testing.T) {
	c := NewCollector()
	c.AddBytesCopied(1000)
	c.Tick()
	assert.Zero(t, c.ETA())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}
