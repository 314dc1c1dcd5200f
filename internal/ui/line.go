package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bamsammich/blit/internal/event"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

const progressBarWidth = 20

// linePresenter redraws a single progress line in place on a TTY.
type linePresenter struct {
	w     io.Writer
	stats statsSource

	drawn  bool
	notice []string // digest / mismatch lines printed after the bar clears
}

func (p *linePresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clear()
				for _, n := range p.notice {
					fmt.Fprintln(p.w, n)
				}
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.draw()
		}
	}
}

func (p *linePresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.Flushing:
		p.clear()
		fmt.Fprintf(p.w, "%sflushing...%s\n", ansiDim, ansiReset)
	case event.VerifyComputed:
		p.notice = append(p.notice, fmt.Sprintf("digest: %s", ev.Digest))
	case event.VerifyMismatch:
		p.notice = append(p.notice, fmt.Sprintf("%sMISMATCH%s: %v", ansiBold, ansiReset, ev.Error))
	case event.ShardFailed:
		p.clear()
		fmt.Fprintf(p.w, "shard %d failed: %v\n", ev.Shard, ev.Error)
	}
}

func (p *linePresenter) draw() {
	snap := p.stats.Snapshot()
	speed := p.stats.RollingSpeed(10)

	var line string
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesCopied) / float64(snap.BytesTotal)
		line = fmt.Sprintf("%s %3.0f%%  %s/%s  %s  eta %s",
			ProgressBar(pct, progressBarWidth),
			pct*100,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal),
			FormatRate(speed),
			FormatETA(p.stats.ETA()),
		)
	} else {
		line = fmt.Sprintf("%s blocks  %s  %s  %s",
			FormatCount(snap.BlocksCopied),
			FormatBytes(snap.BytesCopied),
			FormatRate(speed),
			FormatDuration(snap.Elapsed),
		)
	}

	// Trim to the terminal so the redraw never wraps. The bar glyphs are
	// multibyte UTF-8, so the cut is by columns, not bytes.
	line = trimToWidth(line, TermWidth(2))

	fmt.Fprintf(p.w, "\r\033[K%s", line)
	p.drawn = true
}

func (p *linePresenter) clear() {
	if p.drawn {
		fmt.Fprint(p.w, "\r\033[K")
		p.drawn = false
	}
}

func (p *linePresenter) Summary() string {
	return completionSummary(p.stats.Snapshot())
}

// trimToWidth cuts line to at most w columns without splitting a rune.
func trimToWidth(line string, w int) string {
	if w <= 0 {
		return ""
	}
	runes := []rune(line)
	if len(runes) <= w {
		return line
	}
	return string(runes[:w])
}

// ProgressBar renders a progress bar of the given width using ▪/□ characters.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}

	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}

	var b strings.Builder
	for range filled {
		b.WriteRune('▪') // ▪ (filled)
	}
	for range width - filled {
		b.WriteRune('□') // □ (empty)
	}
	return b.String()
}
