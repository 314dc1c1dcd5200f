package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bamsammich/blit/internal/blockio"
	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/job"
)

// ticketBytes is how much each cursor claim covers. Large enough that the
// mutex is uncontended, small enough that shards finish within a few claims
// of each other.
const ticketBytes = 32 << 20

// blockRange is a contiguous run of blocks, relative to the start of the
// copied region.
type blockRange struct {
	start int64
	count int64
}

// cursor hands out disjoint block ranges to shards. It is the sharded
// engine's single point of synchronization; workers never hold the lock
// during I/O.
type cursor struct {
	mu      sync.Mutex
	next    int64
	span    int64
	stopped bool
}

func newCursor(blockSize int64) *cursor {
	span := int64(ticketBytes) / blockSize
	if span < 1 {
		span = 1
	}
	return &cursor{span: span}
}

// claim returns the next unclaimed range. ok is false once a shard has
// observed end of input.
func (c *cursor) claim() (r blockRange, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return blockRange{}, false
	}
	r = blockRange{start: c.next, count: c.span}
	c.next += c.span
	return r, true
}

// stop prevents further claims. Called by the shard that hit end of input.
func (c *cursor) stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

// partition splits count blocks into shards contiguous ranges, as evenly as
// possible with the remainder on the last shard.
func partition(count int64, shards int) []blockRange {
	per := count / int64(shards)
	ranges := make([]blockRange, 0, shards)
	var start int64
	for i := range shards {
		n := per
		if i == shards-1 {
			n = count - start
		}
		ranges = append(ranges, blockRange{start: start, count: n})
		start += n
	}
	return ranges
}

type shardResult struct {
	blocks int64
	bytes  int64
	err    error
}

// runSharded partitions the copy across threads worker goroutines, each
// owning an independently opened endpoint pair. Completed writes by healthy
// shards are not rolled back when another shard fails; the job reports the
// first error.
func runSharded(ctx context.Context, d job.Descriptor, threads int, limiter *rate.Limiter, opts Options) job.Result {
	var res job.Result

	// The coordinator performs the one create/truncate open. Shards reopen
	// the existing file strictly for positioned writes so no shard can
	// re-truncate another shard's work.
	out, err := blockio.OpenOutput(d.Output, d.DirectIO, d.BlockSize)
	if err != nil {
		res.Err = err
		return res
	}
	if total := d.TotalBytes(); total > 0 {
		blockio.Preallocate(out, d.SeekBytes, total)
	}
	if err := out.Close(); err != nil {
		res.Err = fmt.Errorf("%w: close output: %v", job.ErrIO, err)
		return res
	}

	var (
		ranges []blockRange
		cur    *cursor
	)
	if d.Count > 0 {
		if int64(threads) > d.Count {
			threads = int(d.Count)
		}
		ranges = partition(d.Count, threads)
	} else {
		// Length unknown: shards pull tickets from the shared cursor.
		cur = newCursor(d.BlockSize)
	}

	results := make([]shardResult, threads)
	g, gctx := errgroup.WithContext(ctx)

	for i := range threads {
		g.Go(func() (err error) {
			// A worker dying before reporting its range is an engine bug,
			// not a device problem; keep the two distinguishable.
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%w: shard %d panicked: %v", job.ErrCoordination, i, p)
					results[i].err = err
				}
			}()

			var static *blockRange
			if ranges != nil {
				static = &ranges[i]
			}
			results[i] = runShard(gctx, d, i, static, cur, limiter, opts)
			return results[i].err
		})
	}

	err = g.Wait()

	// Aggregate in index order, not completion order, so totals are
	// deterministic.
	for i := range results {
		res.BlocksCopied += results[i].blocks
		res.BytesCopied += results[i].bytes
	}
	res.Err = err
	return res
}

// runShard copies this shard's ranges through its own endpoint pair and
// flushes its writes before reporting success.
func runShard(ctx context.Context, d job.Descriptor, idx int, static *blockRange, cur *cursor, limiter *rate.Limiter, opts Options) shardResult {
	var sr shardResult

	fail := func(err error) shardResult {
		sr.err = err
		event.Emit(opts.Events, event.Event{
			Type:   event.ShardFailed,
			Shard:  idx,
			Blocks: sr.blocks,
			Bytes:  sr.bytes,
			Error:  err,
		})
		return sr
	}

	in, err := blockio.OpenInput(d.Input, d.DirectIO, d.BlockSize)
	if err != nil {
		return fail(err)
	}
	defer in.Close()

	out, err := blockio.OpenOutputShard(d.Output, d.DirectIO, d.BlockSize)
	if err != nil {
		return fail(err)
	}
	defer out.Close()

	pump, err := newPump(d.UseIOURing)
	if err != nil {
		return fail(err)
	}
	defer pump.Close()

	s := &shardState{
		idx:     idx,
		in:      in,
		out:     out,
		pump:    pump,
		buf:     blockio.AlignedBlock(d.BlockSize, max(in.Alignment(), out.Alignment())),
		limiter: limiter,
		stats:   opts.Stats,
		events:  opts.Events,
	}

	if opts.Stats != nil {
		opts.Stats.ShardStarted()
		defer opts.Stats.ShardFinished()
	}
	event.Emit(opts.Events, event.Event{Type: event.ShardStarted, Shard: idx})

	if static != nil {
		blocks, bytes, cerr := s.copyBlocks(ctx,
			d.SkipBytes+static.start*d.BlockSize,
			d.SeekBytes+static.start*d.BlockSize,
			static.count)
		sr.blocks += blocks
		sr.bytes += bytes
		if cerr != nil {
			return fail(cerr)
		}
	} else {
		for {
			r, ok := cur.claim()
			if !ok {
				break
			}
			blocks, bytes, cerr := s.copyBlocks(ctx,
				d.SkipBytes+r.start*d.BlockSize,
				d.SeekBytes+r.start*d.BlockSize,
				r.count)
			sr.blocks += blocks
			sr.bytes += bytes
			if cerr != nil {
				return fail(cerr)
			}
			if blocks < r.count {
				// Input exhausted inside this claim; nothing past it.
				cur.stop()
				break
			}
		}
	}

	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("%w: flush shard %d output: %v", job.ErrIO, idx, err))
	}

	event.Emit(opts.Events, event.Event{
		Type:   event.ShardCompleted,
		Shard:  idx,
		Blocks: sr.blocks,
		Bytes:  sr.bytes,
	})
	return sr
}
