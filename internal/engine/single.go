package engine

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/bamsammich/blit/internal/blockio"
	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/job"
	"github.com/bamsammich/blit/internal/stats"
)

// shardState is everything one copy path owns exclusively: its endpoint pair,
// its buffer, its pump. Nothing here is ever touched by another goroutine;
// the limiter and collector are the only shared objects and both are safe for
// concurrent use.
type shardState struct {
	idx      int
	in       blockio.Endpoint
	out      blockio.Endpoint
	pump     *ioPump
	buf      []byte
	verifier *Verifier // single path only; nil disables hashing
	limiter  *rate.Limiter
	stats    *stats.Collector
	events   chan<- event.Event
}

// copyBlocks runs the read→hash→write loop over one contiguous range.
// readOff and writeOff are absolute byte offsets; maxBlocks of 0 means copy
// until the input is exhausted. Returns the blocks and bytes moved before
// any error.
func (s *shardState) copyBlocks(ctx context.Context, readOff, writeOff, maxBlocks int64) (int64, int64, error) {
	var blocks, bytes int64
	for {
		if maxBlocks > 0 && blocks >= maxBlocks {
			break
		}
		// Cancellation is honored only between blocks; a read or write in
		// flight runs to completion.
		select {
		case <-ctx.Done():
			return blocks, bytes, fmt.Errorf("copy interrupted: %w", ctx.Err())
		default:
		}

		n, rerr := s.pump.readAt(s.in, s.buf, readOff)
		if rerr != nil && rerr != io.EOF {
			return blocks, bytes, fmt.Errorf("%w: read block at offset %d: %v", job.ErrIO, readOff, rerr)
		}
		if n == 0 {
			break // end of input, a normal terminal state
		}

		if s.limiter != nil {
			if err := s.limiter.WaitN(ctx, n); err != nil {
				return blocks, bytes, fmt.Errorf("copy interrupted: %w", err)
			}
		}

		if s.verifier != nil {
			if err := s.verifier.Update(bytes, s.buf[:n]); err != nil {
				return blocks, bytes, err
			}
		}

		// Write exactly what was read. A short final read must produce a
		// proportionally short write, never the stale remainder of the
		// buffer.
		if _, werr := s.pump.writeAt(s.out, s.buf[:n], writeOff); werr != nil {
			return blocks, bytes, fmt.Errorf("%w: write block at offset %d: %v", job.ErrIO, writeOff, werr)
		}

		readOff += int64(n)
		writeOff += int64(n)
		blocks++
		bytes += int64(n)

		if s.stats != nil {
			s.stats.AddBlocksCopied(1)
			s.stats.AddBytesCopied(int64(n))
		}
		event.Emit(s.events, event.Event{Type: event.Progress, Shard: s.idx, Blocks: blocks, Bytes: bytes})

		if rerr == io.EOF {
			break
		}
	}
	return blocks, bytes, nil
}

// runSingle is the baseline engine: open, seek (implicit in the positioned
// offsets), copy, flush. Every other engine's output must be byte-identical
// to this one's.
func runSingle(ctx context.Context, d job.Descriptor, limiter *rate.Limiter, opts Options) job.Result {
	var res job.Result

	in, err := blockio.OpenInput(d.Input, d.DirectIO, d.BlockSize)
	if err != nil {
		res.Err = err
		return res
	}
	defer in.Close()

	out, err := blockio.OpenOutput(d.Output, d.DirectIO, d.BlockSize)
	if err != nil {
		res.Err = err
		return res
	}
	defer out.Close()

	if total := d.TotalBytes(); total > 0 {
		blockio.Preallocate(out, d.SeekBytes, total)
	}

	pump, err := newPump(d.UseIOURing)
	if err != nil {
		res.Err = err
		return res
	}
	defer pump.Close()

	var verifier *Verifier
	if d.Hash != job.HashNone {
		verifier, err = NewVerifier(d.Hash)
		if err != nil {
			res.Err = err
			return res
		}
	}

	s := &shardState{
		in:       in,
		out:      out,
		pump:     pump,
		buf:      blockio.AlignedBlock(d.BlockSize, max(in.Alignment(), out.Alignment())),
		verifier: verifier,
		limiter:  limiter,
		stats:    opts.Stats,
		events:   opts.Events,
	}

	res.BlocksCopied, res.BytesCopied, res.Err = s.copyBlocks(ctx, d.SkipBytes, d.SeekBytes, d.Count)
	if res.Err != nil {
		return res
	}

	// Durability: success is only reported once the output has reached
	// stable storage.
	event.Emit(opts.Events, event.Event{Type: event.Flushing, Shard: -1})
	if err := out.Sync(); err != nil {
		res.Err = fmt.Errorf("%w: flush output: %v", job.ErrIO, err)
		return res
	}

	if verifier != nil {
		res.Digest = verifier.Sum()
		event.Emit(opts.Events, event.Event{Type: event.VerifyComputed, Shard: -1, Digest: res.Digest})
		if d.Expect != "" {
			if res.VerifyErr = verifier.Compare(d.Expect); res.VerifyErr != nil {
				event.Emit(opts.Events, event.Event{
					Type:   event.VerifyMismatch,
					Shard:  -1,
					Digest: res.Digest,
					Error:  res.VerifyErr,
				})
			}
		}
	}
	return res
}
