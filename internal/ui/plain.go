package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/blit/internal/event"
)

// The throughput ring holds one sample per second; progress lines print on
// every fifth sample so logs stay quiet without skewing the rate math.
const printEverySamples = 5

// plainPresenter prints periodic progress lines for non-TTY output (pipes,
// CI logs). With progress display off it reports only failures, digests and
// the final summary.
type plainPresenter struct {
	w            io.Writer
	stats        statsSource
	showProgress bool
	interval     time.Duration // sample period; 0 means one second
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	interval := p.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var samples int
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			samples++
			if p.showProgress && samples%printEverySamples == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ShardFailed:
		fmt.Fprintf(p.w, "shard %d failed: %v\n", ev.Shard, ev.Error)
	case event.VerifyComputed:
		fmt.Fprintf(p.w, "digest: %s\n", ev.Digest)
	case event.VerifyMismatch:
		fmt.Fprintf(p.w, "MISMATCH: %v\n", ev.Error)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	speed := p.stats.RollingSpeed(10)
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesCopied) / float64(snap.BytesTotal) * 100
		fmt.Fprintf(p.w, "progress: %.0f%% %s/%s %s blocks %s eta %s\n",
			pct,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal),
			FormatCount(snap.BlocksCopied),
			FormatRate(speed),
			FormatETA(p.stats.ETA()),
		)
	} else {
		fmt.Fprintf(p.w, "progress: %s copied %s blocks %s\n",
			FormatBytes(snap.BytesCopied),
			FormatCount(snap.BlocksCopied),
			FormatRate(speed),
		)
	}
}

func (p *plainPresenter) Summary() string {
	return completionSummary(p.stats.Snapshot())
}
