// Package ui renders copy progress. Presenters only read from the stats
// collector; the engine is the sole writer.
package ui

import (
	"io"
	"time"

	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// statsSource is the read side of stats.Collector that presenters depend on.
type statsSource interface {
	Snapshot() stats.Snapshot
	Tick()
	RollingSpeed(seconds int) float64
	ETA() time.Duration
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      *stats.Collector
	IsTTY      bool
	Quiet      bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:     cfg.ErrWriter,
			stats: cfg.Stats,
			// --no-progress means no periodic lines anywhere; failures,
			// digests and the summary still print.
			showProgress: !cfg.NoProgress,
		}
	}
	return &linePresenter{
		w:     cfg.ErrWriter, // the progress line renders to stderr (the TTY)
		stats: cfg.Stats,
	}
}
