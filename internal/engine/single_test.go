package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/job"
	"github.com/bamsammich/blit/internal/stats"
)

// writeInput creates an input file with n random bytes and returns its path
// and contents.
func writeInput(t *testing.T, dir string, n int) (string, []byte) {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(dir, "input")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func mustDescriptor(t *testing.T, p job.Params) job.Descriptor {
	t.Helper()
	if p.Threads == 0 {
		p.Threads = 1
	}
	d, err := job.New(p)
	require.NoError(t, err)
	return d
}

func TestRunCopiesWholeFile(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 10000)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 4096})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)

	// Two full blocks plus one short final block.
	assert.Equal(t, int64(3), res.BlocksCopied)
	assert.Equal(t, int64(10000), res.BytesCopied)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRunCountLimitsBlocks(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 5*512)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512, Count: 2})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(2), res.BlocksCopied)
	assert.Equal(t, int64(1024), res.BytesCopied)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data[:1024], got)
}

func TestRunSkipOffsetsInput(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 4*512)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512, SkipBlocks: 2})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)

	// The copy starts at input byte 1024.
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data[1024:], got)
}

func TestRunSeekOffsetsOutput(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 3*512)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512, SeekBlocks: 2})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, got, 2*512+len(data))
	assert.Equal(t, make([]byte, 1024), got[:1024], "seek gap must read as zeros")
	assert.Equal(t, data, got[1024:])
}

func TestRunTruncatesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 1000)
	out := filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte{0xff}, 1<<16), 0o644))

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)

	// No trailing garbage from the previous contents survives.
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRunSkipPastEndOfInput(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeInput(t, dir, 512)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512, SkipBlocks: 10})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)
	assert.Zero(t, res.BlocksCopied)
	assert.Zero(t, res.BytesCopied)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeInput(t, dir, 12345)
	out := filepath.Join(dir, "output")

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 4096})
	res1 := Run(context.Background(), d, Options{})
	require.NoError(t, res1.Err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	res2 := Run(context.Background(), d, Options{})
	require.NoError(t, res2.Err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, res1.BlocksCopied, res2.BlocksCopied)
	assert.Equal(t, first, second)
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	d := mustDescriptor(t, job.Params{
		Input:     filepath.Join(dir, "does-not-exist"),
		Output:    filepath.Join(dir, "output"),
		BlockSize: 512,
	})
	res := Run(context.Background(), d, Options{})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, job.ErrIO)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeInput(t, dir, 4096)
	out := filepath.Join(dir, "output")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 512})
	res := Run(ctx, d, Options{})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunReportsStatsAndEvents(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeInput(t, dir, 3*1024)
	out := filepath.Join(dir, "output")

	collector := stats.NewCollector()
	events := make(chan event.Event, 64)

	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 1024, Count: 3})
	res := Run(context.Background(), d, Options{Stats: collector, Events: events})
	require.NoError(t, res.Err)
	close(events)

	snap := collector.Snapshot()
	assert.Equal(t, int64(3), snap.BlocksCopied)
	assert.Equal(t, int64(3*1024), snap.BytesCopied)
	assert.Equal(t, int64(3*1024), snap.BytesTotal)

	seen := map[event.Type]bool{}
	for ev := range events {
		seen[ev.Type] = true
	}
	assert.True(t, seen[event.JobStarted])
	assert.True(t, seen[event.Progress])
	assert.True(t, seen[event.Flushing])
	assert.True(t, seen[event.JobCompleted])
}

func TestRunWithBandwidthLimit(t *testing.T) {
	dir := t.TempDir()
	in, data := writeInput(t, dir, 8*1024)
	out := filepath.Join(dir, "output")

	// A generous limit: the copy must still complete promptly and intact.
	d := mustDescriptor(t, job.Params{Input: in, Output: out, BlockSize: 1024, BWLimit: 64 << 20})
	res := Run(context.Background(), d, Options{})
	require.NoError(t, res.Err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

// memEndpoint is an in-memory Endpoint whose reads can be made artificially
// short, to exercise the partial-read path files cannot produce mid-stream.
type memEndpoint struct {
	data    []byte
	maxRead int
	writes  []int
	written map[int64][]byte
}

func (m *memEndpoint) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := len(p)
	if m.maxRead > 0 && n > m.maxRead {
		n = m.maxRead
	}
	if rem := int(int64(len(m.data)) - off); n > rem {
		n = rem
	}
	copy(p, m.data[off:off+int64(n)])
	if off+int64(n) == int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memEndpoint) WriteAt(p []byte, off int64) (int, error) {
	if m.written == nil {
		m.written = make(map[int64][]byte)
	}
	m.written[off] = append([]byte(nil), p...)
	m.writes = append(m.writes, len(p))
	return len(p), nil
}

func (m *memEndpoint) Sync() error      { return nil }
func (m *memEndpoint) Close() error     { return nil }
func (m *memEndpoint) Fd() uintptr      { return 0 }
func (m *memEndpoint) Alignment() int64 { return 1 }

func TestCopyBlocksShortReadShortWrite(t *testing.T) {
	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}
	in := &memEndpoint{data: data, maxRead: 100}
	out := &memEndpoint{}

	s := &shardState{
		in:   in,
		out:  out,
		pump: &ioPump{},
		buf:  make([]byte, 4096),
	}
	blocks, n, err := s.copyBlocks(context.Background(), 0, 0, 0)
	require.NoError(t, err)

	// Every read, short or not, counts as one block, and each write is
	// exactly as long as its read.
	assert.Equal(t, int64(3), blocks)
	assert.Equal(t, int64(250), n)
	assert.Equal(t, []int{100, 100, 50}, out.writes)

	var joined []byte
	for _, off := range []int64{0, 100, 200} {
		joined = append(joined, out.written[off]...)
	}
	assert.Equal(t, data, joined)
}

func TestCopyBlocksHonorsMaxBlocks(t *testing.T) {
	in := &memEndpoint{data: make([]byte, 10*64)}
	out := &memEndpoint{}
	s := &shardState{in: in, out: out, pump: &ioPump{}, buf: make([]byte, 64)}

	blocks, n, err := s.copyBlocks(context.Background(), 0, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), blocks)
	assert.Equal(t, int64(4*64), n)
}
