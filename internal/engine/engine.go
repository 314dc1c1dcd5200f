// Package engine moves blocks. It turns a validated job descriptor into
// bytes on the output, either on one path or sharded across several, and
// folds the outcome into a single result.
package engine

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/job"
	"github.com/bamsammich/blit/internal/stats"
)

// Options carries the collaborators the CLI wires in. All fields are
// optional; a nil collector or events channel just disables reporting.
type Options struct {
	Stats  *stats.Collector
	Events chan<- event.Event
}

// Run executes one copy job, blocking until complete. The returned Result
// always carries the blocks/bytes moved before any failure; Err and
// VerifyErr are reported separately so "copied fine, digest mismatched" is
// observable.
func Run(ctx context.Context, d job.Descriptor, opts Options) job.Result {
	if opts.Stats != nil {
		opts.Stats.SetBytesTotal(d.TotalBytes())
	}
	event.Emit(opts.Events, event.Event{Type: event.JobStarted, Shard: -1})

	var limiter *rate.Limiter
	if d.BWLimit > 0 {
		limiter = NewBWLimiter(d.BWLimit, d.BlockSize)
	}

	threads := d.Threads
	if d.Hash != job.HashNone && threads > 1 {
		// The digest must consume bytes in logical order; reordering shard
		// output would hold unbounded memory for unknown-length inputs.
		slog.Warn("hash verification forces a single copy path", "hash", d.Hash.String())
		threads = 1
	}

	var res job.Result
	if threads == 1 {
		res = runSingle(ctx, d, limiter, opts)
	} else {
		res = runSharded(ctx, d, threads, limiter, opts)
	}

	event.Emit(opts.Events, event.Event{
		Type:   event.JobCompleted,
		Shard:  -1,
		Blocks: res.BlocksCopied,
		Bytes:  res.BytesCopied,
		Error:  res.Err,
	})
	return res
}
